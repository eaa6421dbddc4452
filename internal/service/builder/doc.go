// Package builder computes the checksum manifest of a directory tree.
//
// Build walks the root directory with an explicit stack, hashes every
// regular file on a bounded worker pool and returns the manifest together
// with the entries it had to skip. It keeps no state between calls.
package builder
