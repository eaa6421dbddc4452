package manifest

import "errors"

var (
	// ErrNotFound is returned when the root directory is missing or is not a directory.
	ErrNotFound = errors.New("root directory not found")
	// ErrUnreadable marks a file or directory that could not be read during a scan.
	ErrUnreadable = errors.New("entry is unreadable")
	// ErrEncoding is returned when a manifest cannot be encoded or decoded.
	ErrEncoding = errors.New("manifest encoding failed")
)

// SkippedFile describes an entry left out of a manifest.
type SkippedFile struct {
	// Key is the manifest key the entry would have had.
	Key string
	// Err wraps ErrUnreadable with the underlying cause.
	Err error
}
