package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/version"
)

// manifestSchema describes the manifest accepted from remote servers.
// An empty "files" array is tolerated because older servers encode an empty
// file set that way.
const manifestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["url", "binary", "files"],
	"properties": {
		"url": {"type": "string"},
		"binary": {"type": "string"},
		"files": {
			"anyOf": [
				{
					"type": "object",
					"additionalProperties": {"type": "string", "pattern": "^[0-9a-fA-F]{32}$"}
				},
				{"type": "array", "maxItems": 0}
			]
		}
	}
}`

// maxManifestSize bounds the body read from a remote server.
const maxManifestSize = 64 << 20

var (
	errBadHTTPStatus = errors.New("unexpected http status")
	errTooLarge      = errors.New("manifest is too large")

	//nolint:gochecknoglobals // The schema is compiled once per process.
	compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return jsonschema.CompileString("manifest.schema.json", manifestSchema)
	})
)

// Fetch downloads the manifest at url, validates it and decodes it.
// Keys are normalized so manifests produced on any platform compare equal.
func Fetch(ctx context.Context, client *http.Client, url string) (*manifest.Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxManifestSize+1))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("%s: %w", url, errTooLarge)
	}

	return Decode(data)
}

// Decode validates data against the manifest schema and decodes it.
func Decode(data []byte) (*manifest.Manifest, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var document any
	if err = decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("%w: %w", manifest.ErrEncoding, err)
	}

	if err = schema.Validate(document); err != nil {
		return nil, fmt.Errorf("%w: %w", manifest.ErrEncoding, err)
	}

	// The schema guarantees the shape asserted below.
	fields, _ := document.(map[string]any)
	url, _ := fields["url"].(string)
	binary, _ := fields["binary"].(string)

	m := manifest.New(url, binary)

	files, _ := fields["files"].(map[string]any)
	for key, value := range files {
		checksum, _ := value.(string)
		m.Files[key] = checksum
	}

	return m.Normalized(), nil
}
