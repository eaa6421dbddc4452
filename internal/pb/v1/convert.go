package v1

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
)

var (
	errBadField    = errors.New("unexpected field type")
	errBadChecksum = errors.New("not an md5 hex digest")
)

// ToStruct converts a manifest into its Struct representation.
func ToStruct(m *manifest.Manifest) (*structpb.Struct, error) {
	files := make(map[string]any, len(m.Files))
	for key, checksum := range m.Files {
		files[key] = checksum
	}

	s, err := structpb.NewStruct(map[string]any{
		"url":    m.URL,
		"binary": m.Binary,
		"files":  files,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", manifest.ErrEncoding, err)
	}

	return s, nil
}

// FromStruct converts a Struct produced by ToStruct back into a manifest.
// Every checksum must be a 32 character hex digest.
func FromStruct(s *structpb.Struct) (*manifest.Manifest, error) {
	fields := s.GetFields()

	m := manifest.New(
		fields["url"].GetStringValue(),
		fields["binary"].GetStringValue(),
	)

	files := fields["files"].GetStructValue()
	for key, value := range files.GetFields() {
		checksum, ok := value.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: files[%q]: %w", manifest.ErrEncoding, key, errBadField)
		}

		if !manifest.IsChecksum(checksum.StringValue) {
			return nil, fmt.Errorf("%w: files[%q] = %q: %w", manifest.ErrEncoding, key, checksum.StringValue, errBadChecksum)
		}

		m.Files[key] = checksum.StringValue
	}

	return m, nil
}
