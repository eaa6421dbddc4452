// Package snapshot persists the last published manifest between restarts.
//
// The FileRepository stores and loads the manifest as JSON on disk and
// exposes a Repository interface that the refresher depends on.
package snapshot
