package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/byanjiong/mailmerge/internal/dispatch"
	"github.com/byanjiong/mailmerge/internal/email"
	"github.com/byanjiong/mailmerge/internal/record"
	"github.com/byanjiong/mailmerge/internal/scheduler"
	"github.com/byanjiong/mailmerge/internal/source"
)

var errRunAborted = errors.New("dispatch run terminated early")

var sendFlags struct {
	limit       int
	noTrack     bool
	allowResend bool
	cron        string
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a campaign from a data source",
}

var sendCSVCmd = &cobra.Command{
	Use:   "csv [file]",
	Short: "Send to the rows of a CSV file (default recipients.csv)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "recipients.csv"
		if len(args) > 0 {
			path = args[0]
		}
		return runCampaign(cmd, func(context.Context, *app) ([]record.Raw, error) {
			return source.ReadCSV(path)
		}, nil)
	},
}

var sendXLSXCmd = &cobra.Command{
	Use:   "xlsx <file> [sheet]",
	Short: "Send to the rows of a local spreadsheet (first sheet by default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sheet := ""
		if len(args) > 1 {
			sheet = args[1]
		}
		return runCampaign(cmd, func(context.Context, *app) ([]record.Raw, error) {
			return source.ReadXLSX(args[0], sheet)
		}, nil)
	},
}

var sendSheetCmd = &cobra.Command{
	Use:   "sheet <spreadsheet-id> [sheet-name]",
	Short: "Send to the rows of a Google Sheet (first tab by default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		return runCampaign(cmd, func(ctx context.Context, a *app) ([]record.Raw, error) {
			client, err := a.credentials().Client(ctx)
			if err != nil {
				return nil, err
			}
			reader, err := source.NewSheetReader(ctx, client, a.log)
			if err != nil {
				return nil, err
			}
			return reader.Read(ctx, args[0], name)
		}, nil)
	},
}

var sendOneCmd = &cobra.Command{
	Use:   "one <email> <name>",
	Short: "Send the form acknowledgement to a single recipient",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		row := record.Raw{
			{Key: "email", Value: args[0]},
			{Key: "name", Value: args[1]},
			{Key: "subject", Value: email.FormReceivedSubject},
			{Key: "body", Value: email.FormReceivedHTML},
		}
		return runCampaign(cmd, func(context.Context, *app) ([]record.Raw, error) {
			return []record.Raw{row}, nil
		}, func(cfg *dispatch.Config) {
			cfg.DailyLimit = 1
		})
	},
}

func init() {
	pf := sendCmd.PersistentFlags()
	pf.IntVar(&sendFlags.limit, "limit", 0, "maximum sends for this run (overrides dispatch.daily_limit)")
	pf.BoolVar(&sendFlags.noTrack, "no-track", false, "do not inject the tracking pixel")
	pf.BoolVar(&sendFlags.allowResend, "allow-resend", false, "send even to addresses already in the send history")
	pf.StringVar(&sendFlags.cron, "cron", "", "repeat the campaign on this cron schedule (overrides schedule.cron)")

	sendCmd.AddCommand(sendCSVCmd)
	sendCmd.AddCommand(sendXLSXCmd)
	sendCmd.AddCommand(sendSheetCmd)
	sendCmd.AddCommand(sendOneCmd)
}

type loadFunc func(ctx context.Context, a *app) ([]record.Raw, error)

// runCampaign loads rows and dispatches them once, or on every activation
// of the cron schedule until interrupted.
func runCampaign(cmd *cobra.Command, load loadFunc, adjust func(*dispatch.Config)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.historyStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open send history: %w", err)
	}

	cfg := a.runConfig()
	if cmd.Flags().Changed("limit") {
		cfg.DailyLimit = sendFlags.limit
	}
	if sendFlags.noTrack {
		cfg.Tracking.Enabled = false
	}
	if sendFlags.allowResend {
		cfg.SkipSent = false
	}
	if adjust != nil {
		adjust(&cfg)
	}

	out := cmd.OutOrStdout()
	d := dispatch.New(a.connector(), store, a.log, dispatch.WithEventSink(func(ev dispatch.Event) {
		fmt.Fprintln(out, ev.String())
	}))

	runOnce := func(ctx context.Context) error {
		records, err := load(ctx, a)
		if err != nil {
			return fmt.Errorf("failed to read recipients: %w", err)
		}
		a.log.Info().Int("records", len(records)).Msg("recipients loaded")
		if dispatch.Aborted(d.Dispatch(ctx, records, cfg)) {
			return errRunAborted
		}
		return nil
	}

	spec := sendFlags.cron
	if spec == "" {
		spec = a.cfg.Schedule.Cron
	}
	if spec == "" {
		return runOnce(ctx)
	}

	return scheduler.Run(ctx, spec, func(ctx context.Context) {
		if err := runOnce(ctx); err != nil {
			a.log.Error().Err(err).Msg("scheduled run failed")
		}
	}, a.log)
}
