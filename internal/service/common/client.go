//nolint:revive,nolintlint // Package common holds the shared gRPC client.
package common

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"

	manifestapi "github.com/oshokin/update-manifest/internal/api/grpc/manifest"
	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/domain/manifest"
	"github.com/oshokin/update-manifest/internal/logger"
	pb "github.com/oshokin/update-manifest/internal/pb/v1"
	"github.com/oshokin/update-manifest/internal/version"
)

// Client wraps the gRPC ManifestService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the manifest server.
	conn *grpc.ClientConn
	// api is the ManifestService client interface.
	api pb.ManifestServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the manifest server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial manifest server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewManifestServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetManifest retrieves the current manifest with normalized keys.
// An incomplete manifest is logged as a warning.
func (c *Client) GetManifest(ctx context.Context) (*manifest.Manifest, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var trailer metadata.MD

	response, err := c.api.GetManifest(callCtx, new(emptypb.Empty), grpc.Trailer(&trailer))
	if err != nil {
		return nil, fmt.Errorf("get manifest: %w", err)
	}

	if values := trailer.Get(manifestapi.SkippedTrailer); len(values) > 0 {
		if skipped, convErr := strconv.Atoi(values[0]); convErr == nil && skipped > 0 {
			logger.WarnKV(ctx, "Server reported an incomplete manifest", "skipped", skipped)
		}
	}

	m, err := pb.FromStruct(response)
	if err != nil {
		return nil, err
	}

	return m.Normalized(), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
