package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"secondhand-race/internal/snapshots"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	snapshotsDB     string
	snapshotsExport string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [run-id]",
	Short: "List runs stored in the snapshot database, or the snapshots of one run.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if snapshotsDB == "" {
			return errors.New("--db is required")
		}
		ctx := cmd.Context()
		store, err := snapshots.OpenStore(ctx, snapshotsDB)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			return listRuns(ctx, store)
		}
		return listSnapshots(ctx, store, args[0])
	},
}

func init() {
	snapshotsCmd.Flags().StringVar(&snapshotsDB, "db", "", "sqlite path or libsql url of the snapshot database.")
	snapshotsCmd.Flags().StringVar(&snapshotsExport, "export", "", "Write the run's snapshots into this directory.")
	rootCmd.AddCommand(snapshotsCmd)
}

func listRuns(ctx context.Context, store *snapshots.Store) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Run", "Snapshots", "Started"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, r.Snapshots, r.StartedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

func listSnapshots(ctx context.Context, store *snapshots.Store, runID string) error {
	list, err := store.List(ctx, runID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no snapshots for run %s", runID)
	}

	var export snapshots.Sink = snapshots.Discard
	if snapshotsExport != "" {
		fs, err := snapshots.NewFilesystemSink(snapshotsExport)
		if err != nil {
			return err
		}
		export = fs
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Request", "Kind", "Status", "Size", "Captured", "File"})
	for _, s := range list {
		if err := export.Save(ctx, s); err != nil {
			return err
		}
		t.AppendRow(table.Row{
			s.Sequence,
			string(s.Kind),
			s.StatusCode,
			len(s.Body),
			s.Time.Local().Format("15:04:05.000"),
			snapshots.Filename(s),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
