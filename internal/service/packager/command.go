package packager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/builder"
)

// StdoutOutput makes Run write the manifest to standard output.
const StdoutOutput = "-"

// DefaultOutput is the file written when no output is given.
const DefaultOutput = "manifest.json"

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional settings file supplying defaults for the fields below.
	ConfigPath string
	// RootDir overrides the directory to scan.
	RootDir string
	// FilesURL overrides the download base URL written to the manifest.
	FilesURL string
	// Binary overrides the binary key written to the manifest.
	Binary string
	// Workers overrides the number of files hashed concurrently.
	Workers int
	// Output is the destination file, StdoutOutput for standard output.
	Output string
	// Strict fails the run when any file had to be skipped.
	Strict bool
	// SaveConfig writes the resolved settings to this path, ready for manifest-server.
	SaveConfig string
	// Stdout receives the manifest when Output is StdoutOutput.
	Stdout io.Writer
}

// ErrIncomplete indicates that strict mode rejected a manifest with skipped files.
var ErrIncomplete = errors.New("manifest is incomplete")

//nolint:gochecknoglobals // Replaced in tests to simulate skipped files.
var build = builder.Build

// Run builds the manifest and writes it to the configured output.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "manifest-packager")

	settings, err := resolveSettings(opts)
	if err != nil {
		return err
	}

	if opts.SaveConfig != "" {
		if err = config.Save(opts.SaveConfig, settings); err != nil {
			return fmt.Errorf("save settings: %w", err)
		}

		logger.InfoKV(ctx, "Settings saved", "path", opts.SaveConfig)
	}

	logger.InfoKV(ctx, "Building manifest", "root", settings.RootDir, "url", settings.FilesURL)

	result, err := build(ctx, &builder.Options{
		RootDir: settings.RootDir,
		URL:     settings.FilesURL,
		Binary:  settings.Binary,
		Workers: settings.Workers,
	})
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}

	if !result.Complete() {
		for _, skipped := range result.Skipped {
			logger.WarnKV(ctx, "File left out of manifest", "key", skipped.Key, "error", skipped.Err)
		}

		if opts.Strict {
			return fmt.Errorf("%d files skipped: %w", len(result.Skipped), ErrIncomplete)
		}
	}

	if settings.Binary != "" {
		if _, ok := result.Manifest.Files[manifest.NormalizeKey(settings.Binary)]; !ok {
			logger.WarnKV(ctx, "Binary is not part of the published files", "binary", settings.Binary)
		}
	}

	if err = write(opts, result.Manifest); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Manifest written",
		"output", outputName(opts.Output),
		"files", len(result.Manifest.Files),
		"skipped", len(result.Skipped))

	return nil
}

// resolveSettings merges the optional settings file with the explicit options.
func resolveSettings(opts *Options) (*config.Config, error) {
	settings := new(config.Config)

	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}

		settings = loaded
	}

	if opts.RootDir != "" {
		settings.RootDir = opts.RootDir
	}

	if opts.FilesURL != "" {
		settings.FilesURL = opts.FilesURL
	}

	if opts.Binary != "" {
		settings.Binary = opts.Binary
	}

	if opts.Workers > 0 {
		settings.Workers = opts.Workers
	}

	if err := config.Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// write encodes the manifest to the configured destination.
func write(opts *Options, m *manifest.Manifest) error {
	contents, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: %w", manifest.ErrEncoding, err)
	}

	if opts.Output == StdoutOutput {
		stdout := opts.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}

		_, err = fmt.Fprintln(stdout, string(contents))

		return err
	}

	path := filepath.Clean(outputName(opts.Output))

	temporary := path + ".tmp"
	if err = os.WriteFile(temporary, contents, 0o644); err != nil { //nolint:gosec // The manifest is public.
		return fmt.Errorf("write manifest: %w", err)
	}

	if err = os.Rename(temporary, path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}

	return nil
}

// outputName applies the default output file name.
func outputName(output string) string {
	if output == "" {
		return DefaultOutput
	}

	return output
}
