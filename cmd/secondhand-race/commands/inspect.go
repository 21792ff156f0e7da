package commands

import (
	"fmt"
	"os"
	"strings"

	"secondhand-race/internal/scrapers/pretix"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var inspectBaseURL string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Run the page parser on a saved html file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buff, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		page := string(buff)
		result := pretix.Parse(page)

		summary := table.NewWriter()
		summary.SetOutputMirror(os.Stdout)
		summary.AppendHeader(table.Row{"Check", "Result"})
		summary.AppendRows([]table.Row{
			{"Path", result.Path.String()},
			{"Tickets available", result.TicketsAvailable},
			{"Listings", len(result.Listings)},
			{"CSRF token", result.CSRFToken},
			{"Empty marketplace page", pretix.IsNoTicketsPage(page)},
			{"Fingerprint", pretix.Fingerprint(page)},
		})
		if result.ErrorMessage != "" {
			summary.AppendRow(table.Row{"Error", result.ErrorMessage})
		}
		if link, ok := pretix.FindMarketplaceLink(cmd.Context(), page, inspectBaseURL); ok {
			summary.AppendRow(table.Row{"Marketplace link", link})
		}
		summary.SetStyle(table.StyleRounded)
		summary.Render()

		if len(result.Listings) == 0 {
			return nil
		}

		listings := table.NewWriter()
		listings.SetOutputMirror(os.Stdout)
		listings.AppendHeader(table.Row{"#", "Ticket", "Price", "Action", "Fields"})
		for i, l := range result.Listings {
			fields := make([]string, 0, len(l.FormData))
			for k := range l.FormData {
				fields = append(fields, k)
			}
			listings.AppendRow(table.Row{
				i + 1, l.TicketType, l.Price, l.FormAction, strings.Join(fields, ", "),
			})
		}
		listings.SetStyle(table.StyleRounded)
		listings.Render()
		fmt.Println()
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectBaseURL, "url", "", "Base url used to resolve relative marketplace links.")
	rootCmd.AddCommand(inspectCmd)
}
