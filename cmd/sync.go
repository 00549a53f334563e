package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the inspection snapshot",
	Long:  "Fetches inspection results from the open-data API and persists them to the configured cache. Without --force a fresh cached snapshot is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refreshed, err := env.Store.Refresh(ctx, syncForce)
		if err != nil {
			return err
		}

		st := env.Store.Status()
		zap.L().Info("inspection sync complete",
			zap.Bool("refreshed", refreshed),
			zap.String("snapshot_id", st.SnapshotID),
			zap.Int("records", st.Records),
			zap.Int("restaurants", st.Restaurants),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "refetch even when the cached snapshot is fresh")
	rootCmd.AddCommand(syncCmd)
}
