package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	manifestapi "github.com/oshokin/update-manifest/internal/api/grpc/manifest"
	"github.com/oshokin/update-manifest/internal/api/rest"
	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/domain/news"
	"github.com/oshokin/update-manifest/internal/logger"
	pb "github.com/oshokin/update-manifest/internal/pb/v1"
	"github.com/oshokin/update-manifest/internal/repository/snapshot"
	"github.com/oshokin/update-manifest/internal/service/builder"
	"github.com/oshokin/update-manifest/internal/service/refresher"
)

// Options controls the manifest-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// HTTPAddress provides an optional listen address override for the HTTP endpoints.
	HTTPAddress string
	// GRPCAddress provides an optional listen address override for the gRPC endpoint.
	GRPCAddress string
}

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// Run serves the manifest until ctx is canceled or a listener fails.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "manifest-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.HTTPAddress != "" {
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.GRPCAddress != "" {
		settings.GRPCAddress = opts.GRPCAddress
	}

	group, ctx := errgroup.WithContext(ctx)

	provider := newProvider(ctx, group, settings)

	group.Go(func() error {
		return serveHTTP(ctx, settings, provider)
	})

	if settings.GRPCAddress != "" {
		group.Go(func() error {
			return serveGRPC(ctx, settings.GRPCAddress, provider)
		})
	}

	if err = group.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "Manifest server stopped")

	return nil
}

// newProvider returns a background refresher when an interval is configured,
// otherwise a builder that runs on every request.
func newProvider(ctx context.Context, group *errgroup.Group, settings *config.Config) rest.Provider {
	buildOptions := &builder.Options{
		RootDir: settings.RootDir,
		URL:     settings.FilesURL,
		Binary:  settings.Binary,
		Workers: settings.Workers,
	}

	if settings.RefreshInterval <= 0 {
		logger.InfoKV(ctx, "Building manifest on every request", "root", settings.RootDir)
		return builder.NewLive(buildOptions)
	}

	var repo snapshot.Repository
	if settings.SnapshotFile != "" {
		repo = snapshot.NewFileRepository(settings.SnapshotFile)
	}

	r := refresher.New(buildOptions, settings.RefreshInterval, repo)

	group.Go(func() error {
		return r.Run(ctx)
	})

	return r
}

// serveHTTP runs the HTTP endpoints and shuts them down when ctx is done.
func serveHTTP(ctx context.Context, settings *config.Config, provider rest.Provider) error {
	handler := rest.NewHandler(ctx, &rest.Options{
		Provider:      provider,
		RootDir:       settings.RootDir,
		DefaultLocale: news.Locale(settings.NewsLocale),
	})

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.HTTPAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.HTTPAddress, err)
	}

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: settings.Timeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	logger.InfoKV(ctx, "HTTP server listening", "listen_address", lis.Addr().String())

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.WarnKV(ctx, "HTTP shutdown incomplete", "error", shutdownErr)
		}
	}()

	if err = httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done

	return nil
}

// serveGRPC runs the gRPC endpoint and stops it gracefully when ctx is done.
func serveGRPC(ctx context.Context, address string, provider manifestapi.Provider) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	grpcServer := grpc.NewServer()
	pb.RegisterManifestServiceServer(grpcServer, manifestapi.NewServer(provider))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(pb.ManifestServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	logger.InfoKV(ctx, "gRPC server listening", "listen_address", lis.Addr().String())

	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	return nil
}
