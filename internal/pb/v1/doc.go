// Package v1 declares the ManifestService gRPC API.
//
// The service is expressed with protobuf well-known types (Empty and Struct),
// so its descriptor, client and server registration are written by hand
// rather than generated. The Struct payload mirrors the JSON manifest:
// {"url": ..., "binary": ..., "files": {...}}.
package v1
