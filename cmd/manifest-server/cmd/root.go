package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/server"
	"github.com/oshokin/update-manifest/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// grpcAddress overrides the gRPC listen address from the config.
	grpcAddress string
	// logLevel is the minimum level of printed log messages.
	logLevel string

	// rootCmd represents the base command for serving the manifest.
	rootCmd = &cobra.Command{
		Use:   "manifest-server [http-address]",
		Short: "Serve the checksum manifest of a directory over HTTP and gRPC.",
		Long: `Publishes the checksum manifest of the configured root directory.

GET /updater returns the manifest, GET /news?lang=en|pl|pt returns the news feed
and GET /files/... serves the published files themselves.
With refresh_interval set the manifest is rebuilt in the background,
otherwise every request builds it from scratch.
The HTTP listen address can be provided as argument to override config (e.g., :9090).`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return applyLogLevel(logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var httpAddress string
			if len(args) > 0 {
				httpAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:  configPath,
				HTTPAddress: httpAddress,
				GRPCAddress: grpcAddress,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the manifest-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel sets the global log level from the flag value.
func applyLogLevel(value string) error {
	level, ok := logger.ParseLogLevel(value)
	if !ok {
		return fmt.Errorf("unknown log level %q", value)
	}

	logger.SetLevel(level)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&grpcAddress, "grpc-address", "g", "", "gRPC listen address, overrides grpc_addr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
