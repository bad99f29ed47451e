package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/syncer"
)

var syncInstallationID int64

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync one installation's repositories into the registry",
	Long: `Fetch the repositories accessible to a GitHub App installation and
register them as services, detecting deployment workflow bindings.

Use this to backfill the registry for an installation that predates the
webhook, or to repair it after missed webhook deliveries.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int64Var(&syncInstallationID, "installation-id", 0, "GitHub App installation ID to sync")
	syncCmd.Flags().StringVarP(&configFile, "config", "c", getEnvOrDefault("SHIPYARD_CONFIG_FILE", ""), "Path to shipyard.yaml configuration file")
	syncCmd.MarkFlagRequired("installation-id")
}

func runSync(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	_, reg, app, err := bootstrap(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer reg.Close()

	sync := syncer.New(reg, app, logger)

	count, err := sync.SyncInstallation(cmd.Context(), syncInstallationID)
	if err != nil {
		logger.Error("Sync failed", "installation_id", syncInstallationID, "error", err)
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Synced %d repositories for installation %d\n", count, syncInstallationID)
	return nil
}
