package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"ratehub/internal/rates"
)

// HistoryOptions configure the history listing.
type HistoryOptions struct {
	Pair  string
	Limit int
}

// History prints the most recent audit history entries, newest first.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	entries, err := store.ReadHistory()
	if err != nil {
		return err
	}

	pair := strings.ToUpper(strings.TrimSpace(opts.Pair))
	if pair != "" {
		if _, _, err := rates.SplitKey(pair); err != nil {
			return fmt.Errorf("invalid --pair value %q: expected FROM_TO", opts.Pair)
		}
		entries = filterByPair(entries, pair)
	}

	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no history entries found")
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Timestamp\tPair\tRate\tSource")
	for _, entry := range entries {
		fmt.Fprintf(writer, "%s\t%s\t%.6f\t%s\n",
			entry.Timestamp,
			rates.Key(entry.FromCurrency, entry.ToCurrency),
			entry.Rate,
			entry.Source,
		)
	}
	writer.Flush()
	return nil
}

func filterByPair(entries []rates.HistoryEntry, pair string) []rates.HistoryEntry {
	filtered := entries[:0:0]
	for _, entry := range entries {
		if rates.Key(entry.FromCurrency, entry.ToCurrency) == pair {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}
