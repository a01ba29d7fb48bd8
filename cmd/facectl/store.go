package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Identity store maintenance",
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts of the identity store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(ctx)
		if err != nil {
			return fmt.Errorf("store stats: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "driver:     %s\n", cfg.Database.Driver)
		fmt.Fprintf(out, "people:     %d\n", st.People)
		fmt.Fprintf(out, "embeddings: %d\n", st.Embeddings)
		fmt.Fprintf(out, "video hits: %d\n", st.VideoHits)
		return nil
	},
}

var storeMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the people, faces and video_hits tables if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeStatsCmd, storeMigrateCmd)
	rootCmd.AddCommand(storeCmd)
}
