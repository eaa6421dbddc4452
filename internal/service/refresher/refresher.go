package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/repository/snapshot"
	"github.com/oshokin/update-manifest/internal/service/builder"
)

var (
	// ErrNotReady is returned by Current before the first successful build.
	ErrNotReady = errors.New("manifest is not built yet")
	// errInvalidInterval is returned by Run when no positive interval is configured.
	errInvalidInterval = errors.New("refresh interval must be positive")
)

// Refresher periodically rebuilds the manifest.
type Refresher struct {
	// opts are the inputs of every build.
	opts builder.Options
	// interval is the period between rebuilds.
	interval time.Duration
	// repo persists the last manifest, may be nil.
	repo snapshot.Repository

	// mu protects the fields below.
	mu sync.RWMutex
	// current is the latest successful build.
	current *builder.Result
	// previous is the manifest the next build is diffed against.
	previous *manifest.Manifest
	// lastErr is the error of the most recent build, nil on success.
	lastErr error
}

// New creates a refresher. repo may be nil to disable snapshots.
func New(opts *builder.Options, interval time.Duration, repo snapshot.Repository) *Refresher {
	return &Refresher{
		opts:     *opts,
		interval: interval,
		repo:     repo,
	}
}

// Run loads the previous snapshot, builds immediately and then on every
// tick until ctx is canceled. Build failures are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("%s: %w", r.interval, errInvalidInterval)
	}

	ctx = logger.WithName(ctx, "refresher")

	r.loadSnapshot(ctx)

	if _, err := r.Refresh(ctx); err != nil {
		logger.ErrorKV(ctx, "Initial manifest build failed", "error", err)
	}

	logger.InfoKV(ctx, "Refreshing manifest", "root", r.opts.RootDir, "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				logger.ErrorKV(ctx, "Manifest build failed", "error", err)
			}
		}
	}
}

// Refresh builds the manifest once and stores it as the current result.
// On failure the previous result stays current.
func (r *Refresher) Refresh(ctx context.Context) (*builder.Result, error) {
	start := time.Now()

	result, err := builder.Build(ctx, &r.opts)

	r.mu.Lock()

	if err != nil {
		r.lastErr = err
		r.mu.Unlock()

		return nil, fmt.Errorf("build manifest: %w", err)
	}

	r.logChanges(ctx, result)

	r.current = result
	r.previous = result.Manifest
	r.lastErr = nil

	// Readers are not blocked while the snapshot is written.
	saved := result.Manifest.Clone()

	r.mu.Unlock()

	logger.InfoKV(ctx, "Manifest built",
		"files", len(result.Manifest.Files),
		"skipped", len(result.Skipped),
		"elapsed", time.Since(start).String())

	if r.repo != nil {
		if err = r.repo.Save(ctx, saved); err != nil {
			logger.WarnKV(ctx, "Failed to persist manifest snapshot", "error", err)
		}
	}

	return result, nil
}

// Current returns the latest successful build.
func (r *Refresher) Current(_ context.Context) (*builder.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current != nil {
		return r.current, nil
	}

	if r.lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, r.lastErr)
	}

	return nil, ErrNotReady
}

// loadSnapshot seeds the previous manifest from the repository.
func (r *Refresher) loadSnapshot(ctx context.Context) {
	if r.repo == nil {
		return
	}

	previous, err := r.repo.Load(ctx)

	switch {
	case err == nil:
		r.mu.Lock()
		r.previous = previous
		r.mu.Unlock()

		logger.InfoKV(ctx, "Loaded manifest snapshot", "files", len(previous.Files))
	case errors.Is(err, snapshot.ErrNotFound):
		logger.Info(ctx, "No manifest snapshot found, starting fresh")
	default:
		logger.WarnKV(ctx, "Failed to load manifest snapshot", "error", err)
	}
}

// logChanges reports the difference between the previous and the new manifest.
// Must be called with mu held.
func (r *Refresher) logChanges(ctx context.Context, result *builder.Result) {
	if r.previous == nil {
		return
	}

	changes := manifest.Diff(r.previous, result.Manifest)
	if changes.Empty() {
		logger.Debug(ctx, "Manifest unchanged")
		return
	}

	// Relative to the previous manifest, Missing keys are new files and Extra keys are removed ones.
	logger.InfoKV(ctx, "Manifest changed",
		"added", len(changes.Missing),
		"changed", len(changes.Changed),
		"removed", len(changes.Extra))

	for _, key := range changes.Pending() {
		logger.DebugKV(ctx, "File updated", "key", key)
	}

	for _, key := range changes.Extra {
		logger.DebugKV(ctx, "File removed", "key", key)
	}
}
