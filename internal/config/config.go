// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Server       ServerConfig
	Rates        RatesConfig
	ExchangeRate ExchangeRateConfig `mapstructure:"exchangerate"`
	CoinGecko    CoinGeckoConfig    `mapstructure:"coingecko"`
	Scheduler    SchedulerConfig
	Store        StoreConfig
	Redis        RedisConfig
	Database     DatabaseConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int  `mapstructure:"port"`
	ServeSwagger bool `mapstructure:"serve_swagger"`
}

// RatesConfig holds the tracked currency sets and cache staleness settings.
type RatesConfig struct {
	BaseCurrency     string   `mapstructure:"base_currency"`
	TTLSec           int      `mapstructure:"ttl_sec"`
	FiatCurrencies   []string `mapstructure:"fiat_currencies"`
	CryptoCurrencies []string `mapstructure:"crypto_currencies"`
}

// ExchangeRateConfig holds settings for the ExchangeRate-API fiat provider.
// The API key comes only from the environment (EXCHANGERATE_API_KEY) or a
// local .env file, never from a checked-in config file.
type ExchangeRateConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// CoinGeckoConfig holds settings for the CoinGecko crypto provider.
type CoinGeckoConfig struct {
	BaseURL    string            `mapstructure:"base_url"`
	TimeoutSec int               `mapstructure:"timeout_sec"`
	IDMap      map[string]string `mapstructure:"id_map"`
}

// SchedulerConfig holds background auto-update settings.
type SchedulerConfig struct {
	IntervalSec int  `mapstructure:"interval_sec"`
	AutoStart   bool `mapstructure:"auto_start"`
}

// StoreConfig holds the durable snapshot settings.
type StoreConfig struct {
	SnapshotPath   string `mapstructure:"snapshot_path"`
	ProviderTTLSec int    `mapstructure:"provider_ttl_sec"` // Redis provider-cache TTL
}

// RedisConfig holds the optional Redis provider-cache settings.
type RedisConfig struct {
	CacheAddr string `mapstructure:"cache_addr"` // empty disables the provider cache
}

// DatabaseConfig holds the optional PostgreSQL history journal settings.
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
	DSN                string
}

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Config search paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("./internal/config")

	viper.SetEnvPrefix("VALUTATRADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// The provider key keeps its historical unprefixed name.
	_ = viper.BindEnv("exchangerate.api_key", "EXCHANGERATE_API_KEY")

	// default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.serve_swagger", true)
	viper.SetDefault("rates.base_currency", "USD")
	viper.SetDefault("rates.ttl_sec", 300)
	viper.SetDefault("rates.fiat_currencies", []string{"EUR", "GBP", "RUB", "JPY", "CNY"})
	viper.SetDefault("rates.crypto_currencies", []string{"BTC", "ETH", "SOL", "ADA", "DOT"})
	viper.SetDefault("exchangerate.base_url", "https://v6.exchangerate-api.com/v6")
	viper.SetDefault("exchangerate.timeout_sec", 5)
	viper.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("coingecko.timeout_sec", 5)
	viper.SetDefault("coingecko.id_map", map[string]string{
		"BTC": "bitcoin",
		"ETH": "ethereum",
		"SOL": "solana",
		"ADA": "cardano",
		"DOT": "polkadot",
	})
	viper.SetDefault("scheduler.interval_sec", 300)
	viper.SetDefault("scheduler.auto_start", false)
	viper.SetDefault("store.snapshot_path", "data/rates.json")
	viper.SetDefault("store.provider_ttl_sec", 3600)
	viper.SetDefault("redis.cache_addr", "")
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "db")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.name", "valutatrade")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime_sec", 300)

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Database.DSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.Name, cfg.Database.SSLMode)

	return &cfg, nil
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}

	if c.Rates.BaseCurrency == "" {
		errs = append(errs, fmt.Errorf("rates.base_currency is required"))
	}
	if c.Rates.TTLSec <= 0 {
		errs = append(errs, fmt.Errorf("rates.ttl_sec must be positive, got %d", c.Rates.TTLSec))
	}
	if len(c.Rates.FiatCurrencies) == 0 && len(c.Rates.CryptoCurrencies) == 0 {
		errs = append(errs, fmt.Errorf("at least one tracked currency is required"))
	}

	if c.ExchangeRate.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("exchangerate.timeout_sec must be positive, got %d", c.ExchangeRate.TimeoutSec))
	}
	if c.CoinGecko.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("coingecko.timeout_sec must be positive, got %d", c.CoinGecko.TimeoutSec))
	}

	if c.Scheduler.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval_sec must be positive, got %d", c.Scheduler.IntervalSec))
	}
	if c.Store.SnapshotPath == "" {
		errs = append(errs, fmt.Errorf("store.snapshot_path is required"))
	}
	if c.Store.ProviderTTLSec <= 0 {
		errs = append(errs, fmt.Errorf("store.provider_ttl_sec must be positive, got %d", c.Store.ProviderTTLSec))
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required when database.enabled"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, fmt.Errorf("database.user is required when database.enabled"))
		}
		if c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required when database.enabled"))
		}
	}

	return errors.Join(errs...)
}
