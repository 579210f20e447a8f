package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [object-id]",
	Short: "Fetch and classify one registry object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newChainClient()
		if err != nil {
			return err
		}
		svc, err := newService(client, nil)
		if err != nil {
			return err
		}

		rec, err := svc.GetObjectByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
