package builder

import "context"

// Live builds a fresh manifest on every call.
type Live struct {
	// opts are the inputs reused by every build.
	opts Options
}

// NewLive returns a provider that rebuilds the manifest on each Current call.
func NewLive(opts *Options) *Live {
	return &Live{
		opts: *opts,
	}
}

// Current builds and returns the manifest.
func (l *Live) Current(ctx context.Context) (*Result, error) {
	return Build(ctx, &l.opts)
}
