// Package updater brings a local directory in line with a remote manifest.
//
// It fetches the manifest over HTTP or gRPC, diffs it against a manifest of
// the local directory, downloads missing and changed files to a temporary
// directory, verifies their checksums and moves them into place. The client
// binary is replaced with go-update once no other process is running it.
package updater
