package manifest

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/update-manifest/internal/logger"
	pb "github.com/oshokin/update-manifest/internal/pb/v1"
	"github.com/oshokin/update-manifest/internal/service/builder"
	"github.com/oshokin/update-manifest/internal/service/refresher"
)

// SkippedTrailer carries the number of files left out of an incomplete manifest.
const SkippedTrailer = "x-manifest-skipped"

// Provider abstracts the manifest source the transport layer depends on.
type Provider interface {
	Current(ctx context.Context) (*builder.Result, error)
}

// Server implements the ManifestService gRPC API.
type Server struct {
	// provider supplies the manifest.
	provider Provider
}

// NewServer wires the provided manifest source into a gRPC handler.
func NewServer(provider Provider) *Server {
	return &Server{
		provider: provider,
	}
}

// GetManifest returns the current manifest.
func (s *Server) GetManifest(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	result, err := s.provider.Current(ctx)

	switch {
	case err == nil:
	case errors.Is(err, refresher.ErrNotReady):
		return nil, status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, status.FromContextError(err).Err()
	default:
		logger.ErrorKV(ctx, "Manifest unavailable", "error", err)
		return nil, status.Error(codes.Internal, "unable to build manifest")
	}

	if !result.Complete() {
		// Fails only outside a real RPC, for example in unit tests.
		_ = grpc.SetTrailer(ctx, metadata.Pairs(SkippedTrailer, strconv.Itoa(len(result.Skipped))))
	}

	response, err := pb.ToStruct(result.Manifest)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return response, nil
}
