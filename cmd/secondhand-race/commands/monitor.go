package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"secondhand-race/internal/components/chrono"
	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
	"secondhand-race/internal/handoff"
	"secondhand-race/internal/monitor"
	"secondhand-race/internal/notify"
	"secondhand-race/internal/reservation"
	"secondhand-race/internal/session"
	"secondhand-race/internal/snapshots"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Poll the marketplace and reserve the first ticket that appears.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Println(renderConfig(cfg))
		return runMonitor(cmd.Context(), cfg)
	},
}

func init() {
	addTargetFlags(monitorCmd)
	addMonitorFlags(monitorCmd)
	rootCmd.AddCommand(monitorCmd)
}

// openSinks builds the snapshot sinks the configuration asks for. The
// returned close func is always safe to call.
func openSinks(ctx context.Context, cfg config.Config) (snapshots.Sink, func(), error) {
	noop := func() {}
	if !cfg.SaveUnusual() {
		return snapshots.Discard, noop, nil
	}

	fs, err := snapshots.NewFilesystemSink(cfg.SnapshotDir())
	if err != nil {
		return nil, noop, err
	}
	if cfg.SnapshotDatabase() == "" {
		return fs, noop, nil
	}

	store, err := snapshots.OpenStore(ctx, cfg.SnapshotDatabase())
	if err != nil {
		return nil, noop, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("close snapshot store", "err", err)
		}
	}
	return snapshots.Multi(fs, store), closeStore, nil
}

func runMonitor(ctx context.Context, cfg config.Config) error {
	tel := telemetry.SlogAPI{}
	runID := uuid.NewString()

	sink, closeSinks, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSinks()

	client, err := session.New(cfg, tel)
	if err != nil {
		return err
	}

	m := monitor.New(monitor.Deps{
		Config:   cfg,
		Client:   client,
		Reserver: reservation.New(cfg, client, sink, runID, tel),
		Notifier: notify.FromConfig(cfg, tel),
		Handoff: handoff.New(
			cfg,
			handoff.NewChrome(cfg, handoff.WaitForEnter(os.Stdin)),
			os.Stdout,
			tel,
		),
		Sink:  sink,
		Clock: chrono.StandardImpl{},
		RunID: runID,
		Tel:   tel,
	})

	result, err := m.Run(ctx)
	fmt.Println(renderResult(runID, result))
	if errors.Is(err, monitor.ErrMarketplaceNotFound) {
		return fmt.Errorf("%w, pass --wait-for-marketplace to keep checking", err)
	}
	return err
}

func renderResult(runID string, result monitor.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Run", runID})
	t.AppendRows([]table.Row{
		{"State", result.State.String()},
		{"Marketplace", result.MarketplaceURL},
		{"Polls", result.Stats.Polls},
		{"Requests", result.Stats.Requests},
		{"Detections", result.Stats.Detections},
		{"Attempts", result.Stats.Attempts},
		{"Unusual", result.Stats.Unusual},
		{"Snapshots", result.Stats.Snapshots},
		{"Errors", result.Stats.Errors},
		{"Reconnects", result.Stats.Reconnects},
	})
	if result.Listing != nil {
		t.AppendRow(table.Row{"Ticket", fmt.Sprintf("%s (%s)", result.Listing.TicketType, result.Listing.Price)})
	}
	if result.CheckoutURL != "" {
		t.AppendRow(table.Row{"Checkout", result.CheckoutURL})
	}
	t.SetStyle(table.StyleRounded)
	return t.Render()
}
