package builder

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure MD5 is available for checksum calculation.
	_ "crypto/md5"
)

// DefaultChecksumFunction is used to calculate file checksums.
// Clients compare against it, so changing it breaks existing manifests.
const DefaultChecksumFunction crypto.Hash = crypto.MD5

var errHashUnavailable = errors.New("hash function unavailable")

// Checksum streams the file at path through DefaultChecksumFunction and
// returns the lowercase hex digest.
func Checksum(path string) (string, error) {
	if !DefaultChecksumFunction.Available() {
		return "", fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DefaultChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
