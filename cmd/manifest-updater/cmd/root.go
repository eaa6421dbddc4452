package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/update-manifest/internal/config"
	"github.com/oshokin/update-manifest/internal/logger"
	"github.com/oshokin/update-manifest/internal/service/updater"
	"github.com/oshokin/update-manifest/internal/version"
)

var (
	// options collects the flag values passed to the updater.
	options = new(updater.Options)
	// logLevel is the minimum level of printed log messages.
	logLevel string

	// rootCmd represents the base command for bringing a directory in line with a manifest.
	rootCmd = &cobra.Command{
		Use:   "manifest-updater [manifest-url]",
		Short: "Download files that differ from a remote manifest.",
		Long: `Fetches the manifest from the given URL (or from --server over gRPC),
builds the manifest of the local directory and downloads every missing or
changed file. Files that only exist locally are reported and kept.
With --binary the executable is tracked separately and replaced in place.`,
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
				options.ManifestURL = args[0]
			}

			report, err := updater.Run(ctx, options)
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)

			return nil
		},
	}
)

// Execute runs the manifest-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// printReport writes a short summary of the run.
func printReport(w io.Writer, report *updater.Report) {
	_, _ = fmt.Fprintf(w, "missing: %d, changed: %d, extra: %d, downloaded: %d, binary updated: %t\n",
		len(report.Changes.Missing),
		len(report.Changes.Changed),
		len(report.Changes.Extra),
		len(report.Downloaded),
		report.BinaryUpdated)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&options.ServerAddress, "server", "s", "", "gRPC address of the manifest server, instead of a manifest URL")
	flags.StringVarP(&options.LocalDir, "dir", "d", ".", "local directory to update")
	flags.StringVarP(&options.BinaryPath, "binary", "b", "", "local path of the client executable")
	flags.IntVarP(&options.Workers, "workers", "w", 0, "concurrent downloads, defaults to the number of CPUs")
	flags.BoolVar(&options.DryRun, "dry-run", false, "report the changes without downloading")
	flags.BoolVar(&options.TerminateRunning, "terminate", false, "kill running copies of the binary before replacing it")
	flags.DurationVarP(&options.Timeout, "timeout", "t", config.DefaultTimeout, "timeout of each network request")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}
