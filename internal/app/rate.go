package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"ratehub/internal/resolver"
	"ratehub/internal/storage"
	"ratehub/internal/valuation"
)

// Rate resolves one FROM/TO pair and prints it. A miss triggers a
// single synchronize-and-retry before the error is surfaced.
func (a *App) Rate(ctx context.Context, from, to string) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	rate, err := a.resolveWithRetry(ctx, store, a.newResolver(store), from, to)
	a.Audit.Record("get_rate", err, map[string]any{"from": from, "to": to})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s -> %s: %.6f (updated %s)\n", rate.From, rate.To, rate.Rate, rate.UpdatedAt)
	if rate.Stale {
		fmt.Fprintln(os.Stdout, "warning: rate is older than the configured TTL")
	}
	return nil
}

// Convert values an amount of one currency in another and prints it.
func (a *App) Convert(ctx context.Context, amount float64, from, to string) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}

	source := &retryingSource{ctx: ctx, app: a, store: store, resolver: a.newResolver(store)}
	value, err := valuation.NewConverter(source).Convert(amount, from, to)
	a.Audit.Record("convert", err, map[string]any{"amount": amount, "from": from, "to": to})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%.4f %s = %.4f %s\n", amount, from, value, to)
	return nil
}

// resolveWithRetry applies the one-retry policy: on a resolution miss,
// run one synchronization, drop the cached snapshot, and look again.
func (a *App) resolveWithRetry(ctx context.Context, store *storage.Store, res *resolver.Resolver, from, to string) (resolver.Rate, error) {
	rate, err := res.GetRate(from, to)
	if err == nil || !errors.Is(err, resolver.ErrSourceUnavailable) {
		return rate, err
	}

	a.Logger.Info().Str("from", from).Str("to", to).Msg("rate unavailable, synchronizing once")
	if _, syncErr := a.newSynchronizer(store).RunUpdate(ctx); syncErr != nil {
		a.Logger.Warn().Err(syncErr).Msg("retry synchronization failed")
		return resolver.Rate{}, err
	}

	res.Invalidate()
	return res.GetRate(from, to)
}

// retryingSource adapts the retry policy to the converter's rate source.
type retryingSource struct {
	ctx      context.Context
	app      *App
	store    *storage.Store
	resolver *resolver.Resolver
}

func (r *retryingSource) GetRate(from, to string) (resolver.Rate, error) {
	return r.app.resolveWithRetry(r.ctx, r.store, r.resolver, from, to)
}

var _ valuation.RateSource = (*retryingSource)(nil)
