package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/logger"
)

// readDir lists a directory during the walk.
//
//nolint:gochecknoglobals // Replaced in tests to simulate unreadable directories.
var readDir = os.ReadDir

// fileJob is a regular file found during the walk.
type fileJob struct {
	// key is the manifest key of the file.
	key string
	// path is the filesystem path used to read the file.
	path string
}

// walk enumerates regular files under root using an explicit stack.
// os.ReadDir never returns the "." and ".." pseudo-entries, and only real
// directories are pushed, so symbolic links are neither followed nor listed.
func walk(ctx context.Context, root string) ([]fileJob, []manifest.SkippedFile, error) {
	var (
		files   []fileJob
		skipped []manifest.SkippedFile
		stack   = []string{root}
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := readDir(dir)
		if err != nil {
			unreadable := fmt.Errorf("list %s: %w: %w", dir, manifest.ErrUnreadable, err)
			if dir == root {
				return nil, nil, unreadable
			}

			logger.WarnKV(ctx, "Skipping unreadable directory", "path", dir, "error", err)

			skipped = append(skipped, manifest.SkippedFile{
				Key: relativeKey(root, dir),
				Err: unreadable,
			})

			// ReadDir may still return the entries read before the failure.
		}

		for _, entry := range entries {
			entryPath := filepath.Join(dir, entry.Name())

			switch mode := entry.Type(); {
			case mode.IsDir():
				stack = append(stack, entryPath)
			case mode.IsRegular():
				files = append(files, fileJob{
					key:  relativeKey(root, entryPath),
					path: entryPath,
				})
			default:
				logger.DebugKV(ctx, "Skipping non-regular entry", "path", entryPath, "mode", mode.String())
			}
		}
	}

	return files, skipped, nil
}

// relativeKey strips root from p and returns a slash-separated key with a
// leading slash. Only the host separator is converted, so file names keep
// every other character.
func relativeKey(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}

	return "/" + filepath.ToSlash(rel)
}
