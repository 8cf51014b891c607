package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dlmbl/labsetup/internal/logger"
	"github.com/dlmbl/labsetup/internal/service/bootstrap"
	"github.com/dlmbl/labsetup/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel stores the desired logging verbosity.
	logLevel string
	// skipData skips the dataset retrieval step.
	skipData bool
	// keepGoing tolerates install, registration and download failures.
	keepGoing bool
	// recreate removes a pre-existing environment before provisioning.
	recreate bool

	// rootCmd represents the base command provisioning the exercise environment.
	rootCmd = &cobra.Command{
		Use:   "labsetup",
		Short: "Provision the local exercise environment.",
		Long: `Provision a local machine-learning exercise environment in one run.

Creates an isolated conda environment pinned to the exercise interpreter
version, verifies it activates, installs the dependency manifest from the
configured channels, registers a Jupyter kernel under the environment name,
downloads the exercise dataset from the course bucket into the current
directory, and restores the base environment.

Runs with built-in course defaults when no settings file is present, so a
fresh checkout needs nothing more than running this command. Every external
operation is checked; pass --keep-going to log install, registration or
download failures and continue instead of stopping.`,
		Args: cobra.NoArgs,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			bootstrapOptions := &bootstrap.Options{
				ConfigPath: configPath,
				KeepGoing:  keepGoing,
				SkipData:   skipData,
				Recreate:   recreate,
			}

			return bootstrap.Run(ctx, bootstrapOptions)
		},
	}
)

// Execute runs the labsetup CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (built-in defaults when absent)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"logging level (debug, info, warn, error)")

	rootCmd.Flags().BoolVar(&skipData, "skip-data", false, "skip dataset retrieval")
	rootCmd.Flags().BoolVar(&keepGoing, "keep-going", false,
		"continue past install, registration and download failures")

	// Hidden flag to re-provision over a broken environment.
	rootCmd.Flags().BoolVar(&recreate, "recreate", false, "remove an existing environment first")

	err := rootCmd.Flags().MarkHidden("recreate")
	if err != nil {
		panic(err)
	}
}
