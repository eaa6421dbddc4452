package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/builder"
	"github.com/oshokin/update-manifest/internal/version"
)

var (
	errBadHTTPStatus    = errors.New("unexpected http status")
	errChecksumMismatch = errors.New("checksum mismatch")
)

// downloadFiles fetches keys into a temporary directory inside LocalDir on a
// pool of workers, verifying each file against the manifest checksum.
// Nothing is installed unless every download succeeds.
func (u *runner) downloadFiles(ctx context.Context, keys []string) error {
	temporaryDirectory, err := os.MkdirTemp(u.opts.LocalDir, ".manifest-updater-")
	if err != nil {
		return err
	}

	u.temporaryDirectory = temporaryDirectory

	workers := u.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workers = min(workers, max(len(keys), 1))

	bar := progressbar.NewOptions(len(keys),
		progressbar.OptionSetWriter(u.progressWriter()),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
	)

	var (
		jobs = make(chan string)
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)

	for range workers {
		wg.Go(func() {
			for key := range jobs {
				path, downloadErr := u.downloadFile(ctx, key)

				mu.Lock()
				if downloadErr != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, downloadErr))
				} else {
					u.downloadedFiles[key] = path
				}
				mu.Unlock()

				_ = bar.Add(1)
			}
		})
	}

	go func() {
		defer close(jobs)

		for _, key := range keys {
			select {
			case jobs <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	_ = bar.Finish()

	if err = ctx.Err(); err != nil {
		return err
	}

	return errors.Join(errs...)
}

// downloadFile fetches one file and verifies its checksum.
func (u *runner) downloadFile(ctx context.Context, key string) (string, error) {
	fileURL, err := url.JoinPath(u.remote.URL, key)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
	if err != nil {
		return "", err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := u.httpClient.Do(req)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s, %s: %w", fileURL, response.Status, errBadHTTPStatus)
	}

	outputFileName := localPath(u.temporaryDirectory, key)
	if err = os.MkdirAll(filepath.Dir(outputFileName), DefaultDirMode); err != nil {
		return "", err
	}

	outputFile, err := os.Create(filepath.Clean(outputFileName))
	if err != nil {
		return "", err
	}

	if _, err = io.Copy(outputFile, response.Body); err != nil {
		_ = outputFile.Close()
		return "", err
	}

	if err = outputFile.Close(); err != nil {
		return "", err
	}

	want := u.expectedChecksum(key)

	got, err := builder.Checksum(outputFileName)
	if err != nil {
		return "", err
	}

	if got != want {
		return "", fmt.Errorf("expected %s, got %s: %w", want, got, errChecksumMismatch)
	}

	logger.DebugKV(ctx, "Downloaded file", "key", key, "path", outputFileName)

	return outputFileName, nil
}

// expectedChecksum returns the manifest checksum of key, including the split-off binary.
func (u *runner) expectedChecksum(key string) string {
	if u.binaryChecksum != "" && key == u.remote.Binary {
		return u.binaryChecksum
	}

	return u.remote.Files[key]
}

// progressWriter returns where the progress bar is drawn.
func (u *runner) progressWriter() io.Writer {
	if u.opts.Progress != nil {
		return u.opts.Progress
	}

	return os.Stderr
}
