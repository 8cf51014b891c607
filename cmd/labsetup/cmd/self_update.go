package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dlmbl/labsetup/internal/service/selfupdate"
)

// selfUpdateCmd replaces the binary with the latest published release.
var selfUpdateCmd = &cobra.Command{
	Use:   "self-update",
	Short: "Update labsetup to the latest published release.",
	Long: `Fetch the release manifest from the update folder configured in the
settings file, compare it with this build and replace the binary after
checksum verification. Requires update_folder to be set.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return selfupdate.Run(ctx, &selfupdate.Options{ConfigPath: configPath})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(selfUpdateCmd)
}
