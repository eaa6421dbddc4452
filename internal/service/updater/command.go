package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/update-manifest/internal/api/rest"
	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/builder"
	"github.com/oshokin/update-manifest/internal/service/common"
)

var (
	errLocalDirRequired = errors.New("local directory must be provided")
	errSourceRequired   = errors.New("exactly one of manifest URL or server address must be provided")
	errEmptyDescription = errors.New("remote manifest is empty")
	errNoDownloadURL    = errors.New("remote manifest has no download URL")
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ManifestURL is the HTTP address of the remote manifest.
	ManifestURL string
	// ServerAddress is the gRPC address of the manifest server, used instead of ManifestURL.
	ServerAddress string
	// LocalDir is the directory brought in line with the manifest.
	LocalDir string
	// BinaryPath is the local executable matching the manifest binary key, optional.
	BinaryPath string
	// Workers is the number of concurrent downloads.
	Workers int
	// DryRun reports the changes without downloading anything.
	DryRun bool
	// TerminateRunning kills other processes running BinaryPath before it is replaced.
	TerminateRunning bool
	// Timeout bounds connecting and waiting for each response.
	Timeout time.Duration
	// Progress receives the download progress bar, os.Stderr when nil.
	Progress io.Writer
	// HTTPClient overrides the client used for HTTP requests.
	HTTPClient *http.Client
}

// Report summarizes an updater run.
type Report struct {
	// Changes is the difference between the local directory and the remote manifest.
	Changes *manifest.Changes
	// Downloaded lists the keys written to the local directory.
	Downloaded []string
	// BinaryUpdated is true when the binary was replaced.
	BinaryUpdated bool
}

// runner holds the mutable state and helpers for a single update execution.
// Call Run(ctx, Options) from callers.
type runner struct {
	opts               *Options           // Inputs of this run.
	httpClient         *http.Client       // Client for manifest and file downloads.
	remote             *manifest.Manifest // Remote manifest without the binary key when BinaryPath is set.
	binaryChecksum     string             // Remote checksum of the binary, empty when not tracked.
	changes            *manifest.Changes  // Local vs remote differences.
	binaryOutdated     bool               // Whether BinaryPath differs from the remote binary.
	temporaryDirectory string             // Where new files are downloaded before they are moved into place.
	downloadedFiles    map[string]string  // Manifest key -> local temp path.
}

// Run executes the updater lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) (*Report, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "manifest-updater")

	u, err := newRunner(opts)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithFields(ctx, "dir", opts.LocalDir, "source", u.source())

	defer u.cleanup(ctx)

	report, err := u.Run(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Updater run failed", "error", err)
		return nil, err
	}

	logger.Info(ctx, "Updater completed")

	return report, nil
}

// newRunner validates the options and prepares the run.
func newRunner(opts *Options) (*runner, error) {
	if opts.LocalDir == "" {
		return nil, errLocalDirRequired
	}

	if (opts.ManifestURL == "") == (opts.ServerAddress == "") {
		return nil, errSourceRequired
	}

	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Timeout bounds waiting for the response, not reading large bodies.
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // Always *http.Transport.
		transport.ResponseHeaderTimeout = opts.Timeout

		httpClient = &http.Client{Transport: transport}
	}

	return &runner{
		opts:            opts,
		httpClient:      httpClient,
		downloadedFiles: make(map[string]string),
	}, nil
}

// Run executes the workflow for this runner instance:
// 1) Fetch the remote manifest.
// 2) Build the local manifest and diff.
// 3) Download and verify pending files.
// 4) Move files into place and replace the binary.
func (u *runner) Run(ctx context.Context) (*Report, error) {
	logger.Info(ctx, "Downloading the manifest from the server")

	if err := u.fetchManifest(ctx); err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	logger.Info(ctx, "Comparing local files with the manifest")

	if err := u.compare(ctx); err != nil {
		return nil, fmt.Errorf("compare files: %w", err)
	}

	report := &Report{Changes: u.changes}

	pending := u.changes.Pending()
	if len(pending) == 0 && !u.binaryOutdated {
		logger.Info(ctx, "No update required - files are current")
		return report, nil
	}

	u.logUpdateReasons(ctx)

	if u.opts.DryRun {
		logger.Info(ctx, "Dry run, nothing downloaded")
		return report, nil
	}

	if u.remote.URL == "" {
		return nil, errNoDownloadURL
	}

	if err := u.downloadFiles(ctx, u.downloadKeys(pending)); err != nil {
		return nil, fmt.Errorf("download files: %w", err)
	}

	logger.Info(ctx, "Updating files on the client")

	if err := u.installFiles(ctx, pending); err != nil {
		return nil, fmt.Errorf("install files: %w", err)
	}

	report.Downloaded = pending

	if u.binaryOutdated {
		if err := u.applyBinary(ctx); err != nil {
			return nil, fmt.Errorf("update binary: %w", err)
		}

		report.BinaryUpdated = true
	}

	return report, nil
}

// fetchManifest downloads the remote manifest over HTTP or gRPC.
// The binary key is split off when a local binary is tracked separately.
func (u *runner) fetchManifest(ctx context.Context) error {
	var (
		remote *manifest.Manifest
		err    error
	)

	if u.opts.ManifestURL != "" {
		remote, err = rest.Fetch(ctx, u.httpClient, u.opts.ManifestURL)
	} else {
		remote, err = u.fetchManifestGRPC(ctx)
	}

	if err != nil {
		return err
	}

	if remote == nil {
		return errEmptyDescription
	}

	if u.opts.BinaryPath != "" && remote.Binary != "" {
		checksum, ok := remote.Files[remote.Binary]
		if ok {
			u.binaryChecksum = checksum
			delete(remote.Files, remote.Binary)
		} else {
			logger.WarnKV(ctx, "Binary has no checksum in the manifest", "binary", remote.Binary)
		}
	}

	u.remote = remote

	logger.InfoKV(ctx, "Fetched manifest", "files", len(remote.Files), "url", remote.URL)

	return nil
}

// fetchManifestGRPC asks the manifest server for the manifest.
func (u *runner) fetchManifestGRPC(ctx context.Context) (*manifest.Manifest, error) {
	client, err := common.Dial(ctx, u.opts.ServerAddress, common.WithCallTimeout(u.opts.Timeout))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = client.Close()
	}()

	return client.GetManifest(ctx)
}

// compare builds the local manifest and diffs it against the remote one.
func (u *runner) compare(ctx context.Context) error {
	if err := os.MkdirAll(u.opts.LocalDir, DefaultDirMode); err != nil {
		return err
	}

	var exclude []string
	if u.binaryChecksum != "" {
		exclude = append(exclude, u.remote.Binary)
	}

	local, err := builder.Build(ctx, &builder.Options{
		RootDir: u.opts.LocalDir,
		Workers: u.opts.Workers,
		Exclude: exclude,
	})
	if err != nil {
		return err
	}

	// Unreadable local files are treated as missing and downloaded again.
	u.changes = manifest.Diff(local.Manifest, u.remote)

	if u.binaryChecksum != "" {
		u.binaryOutdated, err = isOutdated(u.opts.BinaryPath, u.binaryChecksum)
		if err != nil {
			return err
		}
	}

	return nil
}

// logUpdateReasons logs the reasons why an update is needed.
func (u *runner) logUpdateReasons(ctx context.Context) {
	if len(u.changes.Missing) > 0 {
		logger.InfoKV(ctx, "Files missing locally", "count", len(u.changes.Missing))
	}

	if len(u.changes.Changed) > 0 {
		logger.InfoKV(ctx, "Files with checksum mismatch", "count", len(u.changes.Changed))
	}

	if len(u.changes.Extra) > 0 {
		logger.InfoKV(ctx, "Local files not in the manifest are kept", "count", len(u.changes.Extra))
	}

	if u.binaryOutdated {
		logger.InfoKV(ctx, "Binary update required", "binary", u.opts.BinaryPath)
	}
}

// downloadKeys returns the keys to fetch, including the binary when it is outdated.
func (u *runner) downloadKeys(pending []string) []string {
	keys := append([]string(nil), pending...)
	if u.binaryOutdated {
		keys = append(keys, u.remote.Binary)
	}

	return keys
}

// isOutdated reports whether the file at path differs from checksum. Missing files are outdated.
func isOutdated(path, checksum string) (bool, error) {
	local, err := builder.Checksum(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}

		return false, err
	}

	return local != checksum, nil
}

// cleanup removes temporary artifacts.
func (u *runner) cleanup(ctx context.Context) {
	if u.temporaryDirectory != "" {
		if err := os.RemoveAll(u.temporaryDirectory); err != nil {
			logger.WarnKV(ctx, "Failed to remove temporary directory", "path", u.temporaryDirectory, "error", err)
		}
	}

	logger.Debug(ctx, "The updater has been stopped")
}

// source names where the manifest is fetched from.
func (u *runner) source() string {
	if u.opts.ManifestURL != "" {
		return u.opts.ManifestURL
	}

	return "grpc://" + u.opts.ServerAddress
}

// localPath maps a manifest key to a path under dir.
func localPath(dir, key string) string {
	return filepath.Join(dir, filepath.FromSlash(manifest.NormalizeKey(key)))
}
