package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/byanjiong/mailmerge/internal/source"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets",
	Short: "List the 30 most recently modified Google Sheets as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		client, err := a.credentials().Client(ctx)
		if err != nil {
			return err
		}
		lister, err := source.NewSpreadsheetLister(ctx, client)
		if err != nil {
			return err
		}
		files, err := lister.ListSpreadsheets(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(files)
	},
}
