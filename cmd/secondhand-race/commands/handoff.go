package commands

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/handoff"
	"secondhand-race/internal/notify"
	"secondhand-race/internal/scrapers/pretix"
	"secondhand-race/internal/session"
	"secondhand-race/lib/cookieutil"

	"github.com/spf13/cobra"
)

var (
	handoffNoBrowser bool
	handoffNotify    bool
)

var handoffCmd = &cobra.Command{
	Use:   "handoff-test",
	Short: "Collect real session cookies and exercise the browser handoff without reserving anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		tel := telemetry.SlogAPI{}

		client, err := session.New(cfg, tel)
		if err != nil {
			return err
		}
		defer client.Close()

		fmt.Printf("Visiting %s\n", cfg.EventPageURL())
		page, err := client.Get(ctx, cfg.EventPageURL(), nil)
		if err != nil {
			return err
		}
		marketplace := cfg.MarketplaceURL()
		if link, ok := pretix.FindMarketplaceLink(ctx, page.Text(), cfg.BaseURL()); ok {
			marketplace = link
		}

		fmt.Printf("Visiting %s\n", marketplace)
		res, err := client.Get(ctx, marketplace, cfg.PollParams())
		if err != nil {
			return err
		}
		if res.StatusCode != http.StatusOK {
			fmt.Printf("Marketplace answered %d, continuing with the cookies collected so far\n", res.StatusCode)
		} else {
			client.SetToken(pretix.Parse(res.Text()).CSRFToken)
		}

		cookies := client.CookieList()
		fmt.Printf("Collected %d cookies\n", len(cookies))
		for _, c := range cookies {
			fmt.Printf("  %s=%s\n", c.Name, c.Value)
		}
		if err := exportSessionCookies(client, cfg.SnapshotDir()); err != nil {
			return err
		}

		if handoffNotify {
			err := notify.FromConfig(cfg, tel).Notify(ctx, notify.Event{
				Kind:         notify.KindTicketInCart,
				Timestamp:    time.Now(),
				Target:       marketplace,
				CheckoutURL:  cfg.CheckoutURL(),
				TicketType:   "Handoff test",
				Price:        "0.00",
				Cookies:      client.Cookies(),
				CookieScript: cookieutil.Script(cookies),
			})
			if err != nil {
				tel.ReportWarning("handoff-test: notify", err)
			}
		}

		var browser handoff.Browser
		if !handoffNoBrowser {
			browser = handoff.NewChrome(cfg, handoff.WaitForEnter(os.Stdin))
		}
		return handoff.New(cfg, browser, os.Stdout, tel).Run(ctx, cookies, "")
	},
}

func init() {
	addTargetFlags(handoffCmd)
	handoffCmd.Flags().String("snapshots-dir", "", "Directory receiving the cookie exports (default live-responses).")
	handoffCmd.Flags().BoolVar(&handoffNoBrowser, "no-browser", false, "Print the cookies instead of opening a browser.")
	handoffCmd.Flags().BoolVar(&handoffNotify, "notify", false, "Also send a simulated ticket_in_cart alert through the configured channels.")
	rootCmd.AddCommand(handoffCmd)
}

// exportSessionCookies writes the jar in Netscape format for curl and
// browser extensions.
func exportSessionCookies(client *session.Session, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("session_%s.txt", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := client.ExportNetscape(f); err != nil {
		return err
	}
	fmt.Printf("Netscape cookie jar: %s\n", path)
	return nil
}
