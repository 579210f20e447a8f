package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/attestation_layer/internal/platform/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the mirror database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		defer db.Close()

		if err := migrations.Apply(cmd.Context(), db); err != nil {
			return err
		}
		names, err := migrations.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
