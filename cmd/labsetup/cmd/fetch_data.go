package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dlmbl/labsetup/internal/config"
	"github.com/dlmbl/labsetup/internal/dataset"
	"github.com/dlmbl/labsetup/internal/logger"
)

// fetchDataCmd downloads the exercise dataset without touching the environment.
var fetchDataCmd = &cobra.Command{
	Use:   "fetch-data",
	Short: "Download the exercise dataset only.",
	Long: `Recursively download the exercise dataset from the course bucket into the
configured destination directory, without creating or modifying any
environment. Useful after a provisioning run that was interrupted during the
download, or on a machine that already has the environment.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		ctx = logger.WithName(ctx, "labsetup")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		_, err = dataset.NewDownloader(&cfg.Dataset).Fetch(ctx)

		return err
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(fetchDataCmd)
}
