// Package manifest implements the gRPC transport for the manifest service.
//
// It converts builder results to protobuf Structs and exposes a server that
// calls into a provided manifest provider.
package manifest
