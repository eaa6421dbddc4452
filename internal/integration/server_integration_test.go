package integration

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/update-manifest/internal/api/rest"
	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/domain/manifest"
	pb "github.com/oshokin/update-manifest/internal/pb/v1"
	"github.com/oshokin/update-manifest/internal/service/common"
	"github.com/oshokin/update-manifest/internal/service/server"
)

// testServer is a manifest server running in the background.
type testServer struct {
	// httpAddress is the HTTP listen address.
	httpAddress string
	// grpcAddress is the gRPC listen address.
	grpcAddress string
	// settings are the values written to the config file.
	settings *config.Config
}

// url returns the HTTP URL of path.
func (s *testServer) url(path string) string {
	return "http://" + s.httpAddress + path
}

// reservePort returns address on a free TCP port and closes it.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// exampleTree creates a.txt and sub/b.txt under a temporary root.
func exampleTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world"), 0o600))

	return root
}

// startServer writes a config for root and runs the server until the test ends.
func startServer(t *testing.T, root string, configure func(*config.Config)) *testServer {
	t.Helper()

	s := &testServer{
		httpAddress: reservePort(t),
		grpcAddress: reservePort(t),
	}

	s.settings = &config.Config{
		RootDir:     root,
		HTTPAddress: s.httpAddress,
		GRPCAddress: s.grpcAddress,
		FilesURL:    s.url("/files"),
		Binary:      "/bin.exe",
		Workers:     2,
		Timeout:     5 * time.Second,
	}

	if configure != nil {
		configure(s.settings)
	}

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, s.settings))

	// Create cancellable context for server lifecycle.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{ConfigPath: cfgPath})
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Wait until the manifest endpoint answers.
	require.Eventually(t, func() bool {
		response, err := http.Get(s.url(rest.ManifestPath)) //nolint:noctx // Readiness probe.
		if err != nil {
			return false
		}

		_ = response.Body.Close()

		return response.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	return s
}

// getBody performs a GET and returns the status code with the body.
func getBody(t *testing.T, url string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, http.NoBody)
	require.NoError(t, err)

	response, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() {
		_ = response.Body.Close()
	}()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)

	return response.StatusCode, body
}

// TestServer_HTTPAndGRPC serves the same manifest on both transports.
func TestServer_HTTPAndGRPC(t *testing.T) {
	t.Parallel()

	s := startServer(t, exampleTree(t), nil)

	status, body := getBody(t, s.url(rest.ManifestPath))
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t,
		`{"url":"`+s.url("/files")+`","binary":"/bin.exe","files":{"/a.txt":"5d41402abc4b2a76b9719d911017c592","/sub/b.txt":"7d793037a0760186574b0282f2f435e7"}}`,
		string(body),
	)

	status, body = getBody(t, s.url("/files/sub/b.txt"))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "world", string(body))

	status, body = getBody(t, s.url(rest.NewsPath+"?lang=pl"))
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, body)

	ctx := context.Background()

	client, err := common.Dial(ctx, s.grpcAddress, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer func() {
		_ = client.Close()
	}()

	fromGRPC, err := client.GetManifest(ctx)
	require.NoError(t, err)

	fromHTTP, err := fetchManifest(s.url(rest.ManifestPath))
	require.NoError(t, err)
	require.Equal(t, fromHTTP.Files, fromGRPC.Files)
	require.Equal(t, fromHTTP.URL, fromGRPC.URL)
	require.Equal(t, fromHTTP.Binary, fromGRPC.Binary)
}

// fetchManifest downloads and decodes the published manifest.
func fetchManifest(url string) (*manifest.Manifest, error) {
	return rest.Fetch(context.Background(), http.DefaultClient, url)
}

// TestServer_Health reports the manifest service as serving.
func TestServer_Health(t *testing.T) {
	t.Parallel()

	s := startServer(t, exampleTree(t), nil)

	conn, err := grpc.NewClient(s.grpcAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	response, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: pb.ManifestServiceName,
	})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, response.GetStatus())
}

// TestServer_Refresh picks up new files in the background and keeps a snapshot.
func TestServer_Refresh(t *testing.T) {
	t.Parallel()

	root := exampleTree(t)
	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")

	s := startServer(t, root, func(settings *config.Config) {
		settings.RefreshInterval = 50 * time.Millisecond
		settings.SnapshotFile = snapshotPath
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), []byte("hello"), 0o600))

	require.Eventually(t, func() bool {
		m, err := fetchManifest(s.url(rest.ManifestPath))
		if err != nil {
			return false
		}

		return m.Files["/c.txt"] == "5d41402abc4b2a76b9719d911017c592"
	}, 5*time.Second, 25*time.Millisecond)

	_, err := os.Stat(snapshotPath)
	require.NoError(t, err)
}
