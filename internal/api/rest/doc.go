// Package rest implements the HTTP surface of the manifest server and the
// matching client helper.
//
// The handler serves the manifest at /updater in the legacy JSON shape, the
// published files under /files/ and the static news feed at /news. Fetch
// downloads a remote manifest and validates it against a JSON schema before
// decoding.
package rest
