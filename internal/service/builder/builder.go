package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/logger"
)

// Options are the inputs of a single build.
type Options struct {
	// RootDir is the directory whose files are listed.
	RootDir string
	// URL is copied verbatim into the manifest.
	URL string
	// Binary is copied verbatim into the manifest.
	Binary string
	// Workers is the number of files hashed concurrently (defaults to the CPU count).
	Workers int
	// Exclude lists manifest keys left out of the result.
	Exclude []string
}

// Result is the outcome of a successful build.
type Result struct {
	// Manifest lists every file that could be read.
	Manifest *manifest.Manifest
	// Skipped lists the entries that could not be read, sorted by key.
	Skipped []manifest.SkippedFile
}

// Complete reports whether no entry was skipped.
func (r *Result) Complete() bool {
	return len(r.Skipped) == 0
}

// checksumFile hashes one file found during the walk.
//
//nolint:gochecknoglobals // Replaced in tests to simulate unreadable files.
var checksumFile = Checksum

// outcome is the checksum of one file or the reason it could not be read.
type outcome struct {
	// job is the file that was hashed.
	job fileJob
	// checksum is the hex digest of the file content.
	checksum string
	// err is set when the file could not be read.
	err error
}

// Build walks opts.RootDir and returns the manifest of its regular files.
// A missing root fails with manifest.ErrNotFound. Unreadable files are
// skipped, logged and reported in Result.Skipped. Cancelling ctx aborts the
// build and discards partial results.
func Build(ctx context.Context, opts *Options) (*Result, error) {
	root := filepath.Clean(opts.RootDir)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", root, manifest.ErrNotFound, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", root, manifest.ErrNotFound)
	}

	files, skipped, err := walk(ctx, root)
	if err != nil {
		return nil, err
	}

	files = slices.DeleteFunc(files, func(job fileJob) bool {
		return slices.Contains(opts.Exclude, job.key)
	})

	logger.DebugKV(ctx, "Hashing files", "root", root, "files", len(files))

	result := &Result{
		Manifest: manifest.New(opts.URL, opts.Binary),
		Skipped:  skipped,
	}

	for out := range hashFiles(ctx, files, opts.Workers) {
		if out.err != nil {
			logger.WarnKV(ctx, "Skipping unreadable file", "path", out.job.path, "error", out.err)

			result.Skipped = append(result.Skipped, manifest.SkippedFile{
				Key: out.job.key,
				Err: fmt.Errorf("read %s: %w: %w", out.job.path, manifest.ErrUnreadable, out.err),
			})

			continue
		}

		result.Manifest.Files[out.job.key] = out.checksum
	}

	// Partial results are discarded on cancellation.
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(result.Skipped, func(a, b manifest.SkippedFile) int {
		return strings.Compare(a.Key, b.Key)
	})

	return result, nil
}

// hashFiles hashes files on a pool of workers. The returned channel is
// closed once every worker has finished or ctx is done.
func hashFiles(ctx context.Context, files []fileJob, workers int) <-chan outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	workers = min(workers, max(len(files), 1))

	var (
		jobs    = make(chan fileJob)
		results = make(chan outcome, workers)
		wg      sync.WaitGroup
	)

	for range workers {
		wg.Go(func() {
			for job := range jobs {
				checksum, err := checksumFile(job.path)
				results <- outcome{
					job:      job,
					checksum: checksum,
					err:      err,
				}
			}
		})
	}

	go func() {
		defer close(jobs)

		for _, job := range files {
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
