package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ratehub/internal/alerting"
	"ratehub/internal/audit"
	"ratehub/internal/config"
	"ratehub/internal/currency"
	"ratehub/internal/fetcher"
	"ratehub/internal/resolver"
	"ratehub/internal/scheduler"
	"ratehub/internal/service"
	"ratehub/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *currency.Registry
	Audit    *audit.Recorder
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:   cfg,
		Logger:   logger.With().Str("component", "app").Logger(),
		Registry: currency.NewRegistry(),
		Audit:    audit.NewRecorder(logger),
	}
}

// newClients builds the enabled rate sources in merge order. When two
// sources report the same pair within one run, the later client in the
// returned slice wins.
func (a *App) newClients() ([]fetcher.Client, map[string]string) {
	clients := make([]fetcher.Client, 0, 3)
	rawIDs := make(map[string]string)

	if a.Config.Providers.CoinGecko.Enabled {
		cfg := a.Config.Providers.CoinGecko
		clients = append(clients, fetcher.NewCoinGecko(fetcher.CoinGeckoOptions{
			BaseURL:      cfg.BaseURL,
			Coins:        cfg.Coins,
			BaseCurrency: a.Config.Rates.BaseCurrency,
			Timeout:      cfg.RequestTimeout,
			UserAgent:    cfg.UserAgent,
		}, a.Logger))
		for code, id := range cfg.Coins {
			rawIDs[code] = id
		}
	}

	if a.Config.Providers.ExchangeRate.Enabled {
		cfg := a.Config.Providers.ExchangeRate
		clients = append(clients, fetcher.NewExchangeRate(fetcher.ExchangeRateOptions{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			Symbols:      cfg.Symbols,
			BaseCurrency: a.Config.Rates.BaseCurrency,
			Timeout:      cfg.RequestTimeout,
		}, a.Logger))
	}

	if a.Config.Providers.Chainlink.Enabled {
		cfg := a.Config.Providers.Chainlink
		clients = append(clients, fetcher.NewChainlink(fetcher.ChainlinkOptions{
			RPCURL:       cfg.RPCURL,
			Feeds:        cfg.Feeds,
			BaseCurrency: a.Config.Rates.BaseCurrency,
			Timeout:      cfg.RequestTimeout,
		}, a.Logger))
	}

	return clients, rawIDs
}

func (a *App) openStore() (*storage.Store, error) {
	return storage.NewStore(a.Config.Storage, a.Logger)
}

func (a *App) newSynchronizer(store *storage.Store) *service.Synchronizer {
	clients, rawIDs := a.newClients()
	return service.New(clients, store, rawIDs, a.Logger)
}

func (a *App) newResolver(store *storage.Store) *resolver.Resolver {
	return resolver.New(store, a.Registry, resolver.Options{
		BaseCurrency: a.Config.Rates.BaseCurrency,
		TTL:          a.Config.Rates.TTL,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Notify.Enabled || !a.Config.Notify.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Notify.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
}

// Run executes the long-running synchronization daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore()
	if err != nil {
		return err
	}

	sync := a.newSynchronizer(store)
	notifier := a.newNotifier()

	sched := scheduler.New(scheduler.Options{
		Interval:        a.Config.Scheduler.Interval,
		AlignToInterval: a.Config.Scheduler.AlignToInterval,
		StartupDelay:    a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().
		Dur("interval", a.Config.Scheduler.Interval).
		Str("base", a.Config.Rates.BaseCurrency).
		Msg("starting synchronization daemon")

	err = sched.Run(ctx, func(ctx context.Context, tick time.Time) error {
		report, runErr := sync.RunUpdate(ctx)
		a.Audit.Record("run_update", runErr, map[string]any{
			"tick":  tick.UTC(),
			"total": report.Total,
		})

		if notifier != nil && (runErr != nil || !report.OK) {
			note := alerting.Notification{RunAt: tick, Report: report, Fatal: runErr != nil}
			if notifyErr := notifier.Notify(ctx, note); notifyErr != nil {
				a.Logger.Warn().Err(notifyErr).Msg("sync alert delivery failed")
			}
		}
		return runErr
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("synchronization daemon stopped")
	return nil
}
