package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill the mirror once from transaction history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		client, err := newChainClient()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("sync needs DATABASE_URL; the memory mirror does not outlive the process")
		}
		defer db.Close()

		store := newStore(db)
		svc, err := newService(client, store)
		if err != nil {
			return err
		}

		n, err := newSyncer(svc, store).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mirrored %d new records\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
