// Package version exposes build metadata for the manifest binaries.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// Full is printed by the `version` subcommand and UserAgent is sent by the
// updater on every HTTP request and gRPC connection.
package version
