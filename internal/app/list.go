package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"ratehub/internal/rates"
	"ratehub/internal/resolver"
)

// ListOptions configure the diagnostic snapshot listing.
type ListOptions struct {
	// Base, when set, adds a column valuing one unit of each pair's
	// from-currency in this base.
	Base string
}

// List prints the raw persisted snapshot, bypassing the resolver cache.
// When a base is requested, pairs whose from-currency cannot be bridged
// to it are omitted from the listing.
func (a *App) List(ctx context.Context, opts ListOptions) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	snap := store.ReadSnapshot()
	if len(snap.Pairs) == 0 {
		fmt.Fprintln(os.Stdout, "snapshot is empty; run update first")
		return nil
	}

	base := strings.ToUpper(strings.TrimSpace(opts.Base))
	var res *resolver.Resolver
	if base != "" {
		if err := a.Registry.Validate(base); err != nil {
			return err
		}
		// A fresh resolver has no cached snapshot, so the listing and
		// the value column read the same store state.
		res = a.newResolver(store)
	}

	keys := make([]string, 0, len(snap.Pairs))
	for key := range snap.Pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if base != "" {
		fmt.Fprintf(writer, "Pair\tRate\tUpdated\tSource\t1 unit in %s\n", base)
	} else {
		fmt.Fprintln(writer, "Pair\tRate\tUpdated\tSource")
	}

	listed := 0
	for _, key := range keys {
		point := snap.Pairs[key]
		if base == "" {
			fmt.Fprintf(writer, "%s\t%.6f\t%s\t%s\n", key, point.Rate, point.UpdatedAt, point.Source)
			listed++
			continue
		}

		from, _, err := rates.SplitKey(key)
		if err != nil {
			a.Logger.Debug().Str("key", key).Msg("skipping malformed pair key")
			continue
		}

		value, err := baseValue(res, from, base)
		if err != nil {
			a.Logger.Debug().Err(err).Str("pair", key).Str("base", base).Msg("omitting pair unbridgeable to base")
			continue
		}

		fmt.Fprintf(writer, "%s\t%.6f\t%s\t%s\t%.6f\n", key, point.Rate, point.UpdatedAt, point.Source, value)
		listed++
	}
	writer.Flush()

	a.Audit.Record("read_snapshot", nil, map[string]any{"pairs": len(snap.Pairs), "listed": listed})
	return nil
}

func baseValue(res *resolver.Resolver, from, base string) (float64, error) {
	if from == base {
		return 1, nil
	}
	rate, err := res.GetRate(from, base)
	if err != nil {
		return 0, err
	}
	return rate.Rate, nil
}
