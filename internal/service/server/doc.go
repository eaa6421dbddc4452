// Package server runs the manifest HTTP and gRPC endpoints.
//
// With a refresh interval the manifest is rebuilt in the background and the
// last good result is served. Without one every request builds it again.
package server
