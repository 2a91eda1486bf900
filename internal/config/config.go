package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"dealwatch/internal/logging"
	"dealwatch/internal/pricing"
	"dealwatch/internal/wishlist"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig encapsulates Redis connectivity for assessment caching.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SchedulerConfig governs price-check cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ScraperConfig captures the product-search API connectivity.
type ScraperConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	MaxOffers      int           `mapstructure:"max_offers"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PricingConfig exposes the deal-engine tuning knobs.
type PricingConfig struct {
	WindowSize        int     `mapstructure:"window_size"`
	RarityBonus       float64 `mapstructure:"rarity_bonus"`
	SigmaBonus        float64 `mapstructure:"sigma_bonus"`
	TrustWeight       float64 `mapstructure:"trust_weight"`
	InStockBonus      float64 `mapstructure:"in_stock_bonus"`
	OutOfStockPenalty float64 `mapstructure:"out_of_stock_penalty"`
	DefaultRating     float64 `mapstructure:"default_rating"`
	BuyNowThreshold   float64 `mapstructure:"buy_now_threshold"`
	AverageThreshold  float64 `mapstructure:"average_threshold"`
}

// AlertsConfig defines wishlist alert behaviour and routing.
type AlertsConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Rearm    string         `mapstructure:"rearm"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram delivery parameters.
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
	v.SetEnvPrefix("DEALWATCH")
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
	defaults := pricing.DefaultParams()

	v.SetDefault("app.name", "dealwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6465616c))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("scraper.base_url", "https://api.bright-shopper.dev/v1")
	v.SetDefault("scraper.max_offers", 5)
	v.SetDefault("scraper.request_timeout", "15s")
	v.SetDefault("scraper.user_agent", "dealwatch/1.0")

	v.SetDefault("pricing.window_size", defaults.WindowSize)
	v.SetDefault("pricing.rarity_bonus", defaults.RarityBonus)
	v.SetDefault("pricing.sigma_bonus", defaults.SigmaBonus)
	v.SetDefault("pricing.trust_weight", defaults.TrustWeight)
	v.SetDefault("pricing.in_stock_bonus", defaults.InStockBonus)
	v.SetDefault("pricing.out_of_stock_penalty", defaults.OutOfStockPenalty)
	v.SetDefault("pricing.default_rating", defaults.DefaultRating)
	v.SetDefault("pricing.buy_now_threshold", defaults.BuyNowThreshold)
	v.SetDefault("pricing.average_threshold", defaults.AverageThreshold)

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.rearm", string(wishlist.RearmAuto))
	v.SetDefault("alerts.channels", []string{"telegram"})
	v.SetDefault("alerts.telegram.enabled", false)
	v.SetDefault("alerts.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scraper.MaxOffers <= 0 {
		return fmt.Errorf("scraper.max_offers must be greater than zero")
	}
	if c.Pricing.WindowSize <= 0 {
		return fmt.Errorf("pricing.window_size must be greater than zero")
	}
	if c.Pricing.AverageThreshold > c.Pricing.BuyNowThreshold {
		return fmt.Errorf("pricing.average_threshold cannot exceed pricing.buy_now_threshold")
	}
	switch wishlist.RearmPolicy(c.Alerts.Rearm) {
	case wishlist.RearmAuto, wishlist.RearmManual:
	default:
		return fmt.Errorf("alerts.rearm must be %q or %q", wishlist.RearmAuto, wishlist.RearmManual)
	}
	if c.Alerts.Telegram.Enabled {
		if c.Alerts.Telegram.BotToken == "" {
			return fmt.Errorf("alerts.telegram.bot_token is required")
		}
		if c.Alerts.Telegram.ChatID == "" {
			return fmt.Errorf("alerts.telegram.chat_id is required")
		}
	}
	return nil
}

// PricingParams converts the config section into engine parameters.
func (c *Config) PricingParams() pricing.Params {
	params := pricing.DefaultParams()
	params.WindowSize = c.Pricing.WindowSize
	params.RarityBonus = c.Pricing.RarityBonus
	params.SigmaBonus = c.Pricing.SigmaBonus
	params.TrustWeight = c.Pricing.TrustWeight
	params.InStockBonus = c.Pricing.InStockBonus
	params.OutOfStockPenalty = c.Pricing.OutOfStockPenalty
	params.DefaultRating = c.Pricing.DefaultRating
	params.BuyNowThreshold = c.Pricing.BuyNowThreshold
	params.AverageThreshold = c.Pricing.AverageThreshold
	return params
}

// RearmPolicy returns the configured wishlist re-arm policy.
func (c *Config) RearmPolicy() wishlist.RearmPolicy {
	return wishlist.RearmPolicy(c.Alerts.Rearm)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
