package config

import (
	"fmt"
	"strings"
	"time"

	"golang-backtest/internal/indicator"

	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger    `mapstructure:"logger"`
	DB           Database  `mapstructure:"database"`
	API          API       `mapstructure:"api"`
	Cache        Cache     `mapstructure:"cache"`
	YahooFinance Provider  `mapstructure:"yahoo_finance"`
	Binance      Provider  `mapstructure:"binance"`
	Backtest     Backtest  `mapstructure:"backtest"`
	Replay       Replay    `mapstructure:"replay"`
	Scheduler    Scheduler `mapstructure:"scheduler"`
	Warmup       Warmup    `mapstructure:"warmup"`
	Cleanup      Cleanup   `mapstructure:"cleanup"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Database is optional. With an empty Host runs are not persisted.
type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

func (d Database) Enabled() bool {
	return d.Host != ""
}

type API struct {
	Port               int           `mapstructure:"port"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	RateLimitExpiresIn time.Duration `mapstructure:"rate_limit_expires_in"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
}

type Cache struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	PriceTTL          time.Duration `mapstructure:"price_ttl"`
	ResultTTL         time.Duration `mapstructure:"result_ttl"`
}

type Provider struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

type Backtest struct {
	FeePct      float64            `mapstructure:"fee_pct"`
	MinNotional float64            `mapstructure:"min_notional"`
	Indicators  indicator.Settings `mapstructure:"indicators"`
}

type Replay struct {
	BaseInterval      time.Duration `mapstructure:"base_interval"`
	DefaultWindowSize int           `mapstructure:"default_window_size"`
	MaxSessions       int           `mapstructure:"max_sessions"`
	// SessionIdleTTL closes sessions nobody has touched for this long. Zero keeps them until closed.
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
}

type Warmup struct {
	Enabled        bool          `mapstructure:"enabled"`
	Cron           string        `mapstructure:"cron"`
	Symbols        []string      `mapstructure:"symbols"`
	Periods        []string      `mapstructure:"periods"`
	Interval       string        `mapstructure:"interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// Cleanup deletes persisted runs older than RetentionDays. It needs a database.
type Cleanup struct {
	Enabled       bool          `mapstructure:"enabled"`
	Cron          string        `mapstructure:"cron"`
	RetentionDays int           `mapstructure:"retention_days"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Scheduler struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.rate_limit_per_second", 10)
	viper.SetDefault("api.rate_limit_burst", 20)
	viper.SetDefault("api.rate_limit_expires_in", time.Minute)
	viper.SetDefault("api.run_timeout", 2*time.Minute)
	viper.SetDefault("cache.default_expiration", 30*time.Minute)
	viper.SetDefault("cache.cleanup_interval", 10*time.Minute)
	viper.SetDefault("cache.price_ttl", 30*time.Minute)
	viper.SetDefault("cache.result_ttl", 2*time.Hour)
	viper.SetDefault("yahoo_finance.base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	viper.SetDefault("yahoo_finance.timeout", 15*time.Second)
	viper.SetDefault("yahoo_finance.max_request_per_minute", 60)
	viper.SetDefault("binance.base_url", "https://api.binance.com")
	viper.SetDefault("binance.timeout", 15*time.Second)
	viper.SetDefault("binance.max_request_per_minute", 600)
	viper.SetDefault("backtest.fee_pct", 0.1)
	viper.SetDefault("backtest.min_notional", 10)
	viper.SetDefault("replay.base_interval", 500*time.Millisecond)
	viper.SetDefault("replay.default_window_size", 100)
	viper.SetDefault("replay.max_sessions", 100)
	viper.SetDefault("replay.session_idle_ttl", 30*time.Minute)
	viper.SetDefault("warmup.cron", "*/30 * * * *")
	viper.SetDefault("warmup.periods", []string{"1y"})
	viper.SetDefault("warmup.interval", "1d")
	viper.SetDefault("warmup.timeout", 2*time.Minute)
	viper.SetDefault("warmup.max_concurrency", 4)
	viper.SetDefault("cleanup.cron", "0 3 * * *")
	viper.SetDefault("cleanup.retention_days", 90)
	viper.SetDefault("cleanup.timeout", time.Minute)
	viper.SetDefault("scheduler.max_concurrency", 2)
}

func Load() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Backtest.Indicators = cfg.Backtest.Indicators.WithDefaults()

	return &cfg, nil
}
