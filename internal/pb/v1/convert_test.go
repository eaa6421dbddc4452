package v1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
)

// TestStructRoundtrip converts a manifest to a Struct and back.
func TestStructRoundtrip(t *testing.T) {
	t.Parallel()

	m := manifest.New("http://x/files", "/bin.exe")
	m.Files["/a.txt"] = "5d41402abc4b2a76b9719d911017c592"

	s, err := ToStruct(m)
	require.NoError(t, err)
	require.Equal(t, "http://x/files", s.GetFields()["url"].GetStringValue())

	got, err := FromStruct(s)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

// TestFromStruct_BadChecksum rejects checksums that are not md5 hex digests.
func TestFromStruct_BadChecksum(t *testing.T) {
	t.Parallel()

	for _, checksum := range []any{
		42.0,
		"not-a-checksum",
		"5d41402abc4b2a76b9719d911017c59",
		"zz41402abc4b2a76b9719d911017c592",
	} {
		s, err := structpb.NewStruct(map[string]any{
			"url":   "u",
			"files": map[string]any{"/a.txt": checksum},
		})
		require.NoError(t, err)

		m, err := FromStruct(s)
		require.ErrorIs(t, err, manifest.ErrEncoding, checksum)
		require.Nil(t, m)
	}
}
