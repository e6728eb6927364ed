package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ratehub/internal/app"
)

var (
	historyPair  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display recent rate history entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.HistoryOptions{
			Pair:  historyPair,
			Limit: historyLimit,
		}
		return getApp().History(cmd.Context(), opts)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyPair, "pair", "", "Filter by pair key, e.g. BTC_USD")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries to display")
}
