package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/byanjiong/mailmerge/internal/credentials"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail and Sheets access and save the token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		err = a.credentials().Authorize(ctx, func(authURL string) error {
			fmt.Fprintf(out, "Open this URL in your browser to authorize access:\n\n%s\n\n", authURL)
			return nil
		})
		if errors.Is(err, credentials.ErrTokenExists) {
			fmt.Fprintln(out, "FAILED: Token exists.")
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "SUCCESS: Authenticated.")
		return nil
	},
}

var authRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Delete the saved token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		err = a.credentials().Remove()
		if errors.Is(err, credentials.ErrTokenNotFound) {
			a.log.Warn().Msg("attempted to remove token, but none was found")
			fmt.Fprintln(out, "No token found to remove.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Token removed.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authRemoveCmd)
}
