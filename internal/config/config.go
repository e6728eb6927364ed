package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"ratehub/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig locates the snapshot and history files.
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	SnapshotFile string `mapstructure:"snapshot_file"`
	HistoryFile  string `mapstructure:"history_file"`
}

// SchedulerConfig governs the background synchronization cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// RatesConfig tunes resolution behaviour.
type RatesConfig struct {
	BaseCurrency string        `mapstructure:"base_currency"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// ProvidersConfig groups the configured rate sources. Merge order for
// intra-run conflicts follows the order of this struct: CoinGecko,
// ExchangeRate-API, Chainlink.
type ProvidersConfig struct {
	CoinGecko    CoinGeckoConfig    `mapstructure:"coingecko"`
	ExchangeRate ExchangeRateConfig `mapstructure:"exchangerate"`
	Chainlink    ChainlinkConfig    `mapstructure:"chainlink"`
}

// CoinGeckoConfig captures the crypto price source.
type CoinGeckoConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	BaseURL        string            `mapstructure:"base_url"`
	Coins          map[string]string `mapstructure:"coins"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	UserAgent      string            `mapstructure:"user_agent"`
}

// ExchangeRateConfig captures the fiat price source.
type ExchangeRateConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Symbols        []string      `mapstructure:"symbols"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChainlinkConfig captures the optional on-chain price feeds.
type ChainlinkConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	RPCURL         string            `mapstructure:"rpc_url"`
	Feeds          map[string]string `mapstructure:"feeds"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
}

// NotifyConfig routes degraded-run notifications.
type NotifyConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram push channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RATEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ratehub")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.snapshot_file", "rates.json")
	v.SetDefault("storage.history_file", "exchange_rates.json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("rates.base_currency", "USD")
	v.SetDefault("rates.ttl", "300s")

	v.SetDefault("providers.coingecko.enabled", true)
	v.SetDefault("providers.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("providers.coingecko.coins", map[string]string{
		"BTC": "bitcoin",
		"ETH": "ethereum",
		"SOL": "solana",
	})
	v.SetDefault("providers.coingecko.request_timeout", "10s")
	v.SetDefault("providers.coingecko.user_agent", "ratehub/1.0")

	v.SetDefault("providers.exchangerate.enabled", true)
	v.SetDefault("providers.exchangerate.base_url", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("providers.exchangerate.symbols", []string{"EUR", "GBP", "JPY", "RUB"})
	v.SetDefault("providers.exchangerate.request_timeout", "10s")

	v.SetDefault("providers.chainlink.enabled", false)
	v.SetDefault("providers.chainlink.request_timeout", "10s")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Rates.TTL <= 0 {
		return fmt.Errorf("rates.ttl must be greater than zero")
	}
	if c.Rates.BaseCurrency == "" {
		return fmt.Errorf("rates.base_currency must not be empty")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Providers.Chainlink.Enabled && c.Providers.Chainlink.RPCURL == "" {
		return fmt.Errorf("providers.chainlink.rpc_url required when chainlink is enabled")
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
