// Package manifest contains the core domain types of the update manifest.
//
// A Manifest maps every regular file under a published directory, keyed by
// its slash-separated path relative to that directory, to the MD5 checksum
// of its content, and carries the download base URL and the binary key.
// Diff compares two manifests to find what a client has to download.
package manifest
