package commands

import (
	"context"
	"fmt"
	"os"

	"secondhand-race/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "secondhand-race",
	Short: "secondhand-race watches a pretix resale marketplace and reserves the first ticket that appears.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		serviceutil.InitSlog(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "secondhand-race.json5", "Config file, a .local variant next to it overrides it.")
}

// ExecuteContext runs the cli and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
