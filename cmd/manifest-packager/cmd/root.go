package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/packager"
	"github.com/oshokin/update-manifest/internal/version"
)

var (
	// options collects the flag values passed to the packager.
	options = new(packager.Options)
	// logLevel is the minimum level of printed log messages.
	logLevel string

	// rootCmd represents the base command for writing a manifest file.
	rootCmd = &cobra.Command{
		Use:   "manifest-packager [root-dir]",
		Short: "Write the checksum manifest of a directory.",
		Long: `Scans the directory, computes the checksum of every regular file
and writes the manifest as JSON. Use --output - to print it to stdout.
Settings missing from the flags are taken from the optional --config file.`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if len(args) > 0 {
				options.RootDir = args[0]
			}

			options.Stdout = cmd.OutOrStdout()

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the manifest-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ConfigPath, "config", "c", "", "optional path to configuration file")
	flags.StringVarP(&options.FilesURL, "url", "u", "", "base URL clients download the files from")
	flags.StringVarP(&options.Binary, "binary", "b", "", "manifest key of the client executable")
	flags.IntVarP(&options.Workers, "workers", "w", 0, "files hashed concurrently, defaults to the number of CPUs")
	flags.StringVarP(&options.Output, "output", "o", packager.DefaultOutput, "output file, - for stdout")
	flags.BoolVar(&options.Strict, "strict", false, "fail when any file cannot be read")
	flags.StringVar(&options.SaveConfig, "save-config", "", "write the resolved settings to this file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
