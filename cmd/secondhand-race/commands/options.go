package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"secondhand-race/internal/config"
	"secondhand-race/lib/configutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// addTargetFlags registers the flags every command talking to the
// marketplace needs.
func addTargetFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("url", "", "Base url of the ticket shop, e.g. https://tickets.example.com.")
	flags.String("event", "", "Event slug, the path segment after the base url.")
}

func addMonitorFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Float64("interval", 0, "Seconds between polls (default 15).")
	flags.Float64("jitter", config.DefaultJitter, "Random +/- fraction applied to every wait.")
	flags.Float64("backoff-max", 0, "Ceiling in seconds for the error backoff (default 300).")
	flags.String("item", "", "Only watch listings of this item id.")
	flags.String("sort", "", "Listing order: "+strings.Join(config.SortOrders(), ", ")+".")
	flags.Bool("dry-run", false, "Notify on tickets but do not reserve them.")
	flags.Bool("headless", false, "Never open a browser, print the cookies instead.")
	flags.Float64("wait-for-marketplace", 0, "Seconds between event page checks while the marketplace is missing (0 exits instead).")
	flags.Int64("reconnect-every", 0, "Rebuild the connection after this many requests (default 950).")
	flags.Bool("notify-desktop", true, "Show desktop notifications.")
	flags.String("imessage", "", "iMessage recipient for the success alert (macOS only).")
	flags.String("webhook", "", "Url receiving the success alert as a json POST.")
	flags.StringSlice("email-to", nil, "Recipients of the success alert, smtp settings come from the config file.")
	flags.String("snapshots-dir", "", "Directory for unusual responses and cookie exports (default live-responses).")
	flags.String("snapshots-db", "", "sqlite path or libsql url that also stores unusual responses.")
	flags.Bool("save-unusual", true, "Keep unusual responses.")
}

// flagOptions collects the flags the user actually set.
func flagOptions(cmd *cobra.Command) (config.Options, error) {
	var opts config.Options
	flags := cmd.Flags()
	var errs []error
	set := func(name string, apply func() error) {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			return
		}
		errs = append(errs, apply())
	}

	set("url", func() (err error) { opts.BaseURL, err = flags.GetString("url"); return })
	set("event", func() (err error) { opts.Event, err = flags.GetString("event"); return })
	set("interval", func() (err error) { opts.PollInterval, err = flags.GetFloat64("interval"); return })
	set("jitter", func() error {
		v, err := flags.GetFloat64("jitter")
		opts.Jitter = &v
		return err
	})
	set("backoff-max", func() (err error) { opts.BackoffMax, err = flags.GetFloat64("backoff-max"); return })
	set("item", func() (err error) { opts.Item, err = flags.GetString("item"); return })
	set("sort", func() (err error) { opts.Sort, err = flags.GetString("sort"); return })
	set("wait-for-marketplace", func() (err error) {
		opts.WaitForMarketplace, err = flags.GetFloat64("wait-for-marketplace")
		return
	})
	set("reconnect-every", func() (err error) { opts.ReconnectEvery, err = flags.GetInt64("reconnect-every"); return })
	set("notify-desktop", func() error {
		v, err := flags.GetBool("notify-desktop")
		opts.Notify.Desktop = &v
		return err
	})
	set("imessage", func() (err error) { opts.Notify.IMessage, err = flags.GetString("imessage"); return })
	set("webhook", func() (err error) { opts.Notify.Webhook, err = flags.GetString("webhook"); return })
	set("email-to", func() (err error) { opts.Notify.Email.To, err = flags.GetStringSlice("email-to"); return })
	set("snapshots-dir", func() (err error) { opts.Snapshots.Dir, err = flags.GetString("snapshots-dir"); return })
	set("snapshots-db", func() (err error) { opts.Snapshots.Database, err = flags.GetString("snapshots-db"); return })
	set("save-unusual", func() error {
		v, err := flags.GetBool("save-unusual")
		opts.Snapshots.SaveUnusual = &v
		return err
	})

	return opts, errors.Join(errs...)
}

// loadConfig layers the config file, its .local override and the flags,
// then validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	fileOpts, err := configutil.ReadConfig[config.Options](configPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return config.Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}

	override, err := flagOptions(cmd)
	if err != nil {
		return config.Config{}, err
	}
	opts, err := config.Merge(fileOpts, override)
	if err != nil {
		return config.Config{}, err
	}

	// booleans can only be switched on by a merge
	flags := cmd.Flags()
	for name, target := range map[string]*bool{"dry-run": &opts.DryRun, "headless": &opts.Headless} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			*target, err = flags.GetBool(name)
			if err != nil {
				return config.Config{}, err
			}
		}
	}

	return config.New(opts)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func renderConfig(cfg config.Config) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"Event page", cfg.EventPageURL()},
		{"Marketplace", cfg.MarketplaceURL()},
		{"Poll interval", fmt.Sprintf("%s (+/-%d%%)", cfg.PollInterval(), int(cfg.Jitter()*100))},
		{"Backoff max", cfg.BackoffMax().String()},
		{"Filter", cfg.PollParams().Encode()},
		{"Dry run", onOff(cfg.DryRun())},
		{"Headless", onOff(cfg.Headless())},
		{"Wait for marketplace", cfg.WaitForMarketplace().String()},
		{"Reconnect every", fmt.Sprintf("%d requests", cfg.ReconnectEvery())},
		{"Desktop alerts", onOff(cfg.DesktopNotifications())},
		{"iMessage", cfg.IMessageRecipient()},
		{"Webhook", cfg.WebhookURL()},
		{"Email", strings.Join(cfg.Email().To, ", ")},
		{"Snapshots", cfg.SnapshotDir()},
		{"Snapshot db", cfg.SnapshotDatabase()},
	})
	t.SetStyle(table.StyleRounded)
	return t.Render()
}
