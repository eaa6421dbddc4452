package manifest

import (
	"encoding/json"
	"maps"
	"path"
	"slices"
	"strings"
)

// ChecksumLength is the number of hex characters in an MD5 checksum.
const ChecksumLength = 32

// Manifest describes a downloadable file set.
type Manifest struct {
	// URL is the remote base URL the files are downloaded from.
	URL string `json:"url"`
	// Binary is the key of the client executable.
	Binary string `json:"binary"`
	// Files maps relative keys to lowercase hex checksums.
	Files map[string]string `json:"files"`
}

// New returns an empty manifest with the metadata set.
func New(url, binary string) *Manifest {
	return &Manifest{
		URL:    url,
		Binary: binary,
		Files:  make(map[string]string),
	}
}

// MarshalJSON keeps the "files" member an object even when no files were found.
func (m Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest

	if m.Files == nil {
		m.Files = map[string]string{}
	}

	return json.Marshal(plain(m))
}

// Keys returns the manifest keys in lexical order.
func (m *Manifest) Keys() []string {
	keys := make([]string, 0, len(m.Files))
	for key := range m.Files {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

// Clone returns a copy that shares nothing with m.
func (m *Manifest) Clone() *Manifest {
	result := New(m.URL, m.Binary)
	maps.Copy(result.Files, m.Files)

	return result
}

// Normalized returns a copy with every key passed through NormalizeKey.
func (m *Manifest) Normalized() *Manifest {
	result := New(m.URL, m.Binary)
	for key, checksum := range m.Files {
		result.Files[NormalizeKey(key)] = strings.ToLower(checksum)
	}

	if m.Binary != "" {
		result.Binary = NormalizeKey(m.Binary)
	}

	return result
}

// NormalizeKey converts a key to the canonical form: forward slashes,
// cleaned, with a single leading slash. Keys written by a Windows server start
// with a backslash and use it as the separator. In any other key a backslash
// is part of a file name and is kept.
func NormalizeKey(p string) string {
	if strings.HasPrefix(p, `\`) {
		p = strings.ReplaceAll(p, `\`, "/")
	}

	return path.Clean("/" + p)
}

// IsChecksum reports whether s looks like an MD5 hex digest.
func IsChecksum(s string) bool {
	if len(s) != ChecksumLength {
		return false
	}

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}

	return true
}
