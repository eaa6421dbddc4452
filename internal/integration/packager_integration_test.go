package integration

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/update-manifest/internal/api/rest"
	"github.com/oshokin/update-manifest/internal/service/packager"
)

// TestPackager_MatchesServer writes the same manifest the server publishes.
func TestPackager_MatchesServer(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)
	s := startServer(t, root, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout bytes.Buffer

	err := packager.Run(ctx, &packager.Options{
		RootDir:  root,
		FilesURL: s.settings.FilesURL,
		Binary:   s.settings.Binary,
		Output:   packager.StdoutOutput,
		Stdout:   &stdout,
	})
	require.NoError(t, err)

	_, published := getBody(t, s.url(rest.ManifestPath))
	require.JSONEq(t, string(published), stdout.String())
}
