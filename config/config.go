/*
config.go - Server and CLI configuration

PURPOSE:
  Loads settings from environment variables, optionally overlaid on a
  dotenv or YAML/TOML config file, with defaults for everything. Environment
  variables win over the file.

KEYS:
  PORT                          HTTP port (8080)
  ENV                           development | production (development)
  DB_PATH                       SQLite path, ":memory:" for a throwaway store
  CATALOG_PATH                  TOML price catalog; empty uses DEFAULT_MONTHLY_RATE
  DEFAULT_MONTHLY_RATE          Flat monthly rate without a catalog (300)
  DEFAULT_CURRENCY              Currency of computed amounts (TND)
  CORS_ORIGINS                  Comma-separated allowed origins
  ALERT_SWEEP_INTERVAL          Go duration between sweeps, 0 disables (1h)
  ALERT_EXPIRY_LOOKAHEAD_DAYS   CNAM_EXPIRING window (30)
  ALERT_URGENT_EXPIRY_DAYS      CNAM_EXPIRING HIGH window (7)
  ALERT_STALE_PENDING_DAYS      CNAM_PENDING after this many days (14)
  ALERT_RENTAL_ENDING_DAYS      RENTAL_ENDING window (14)
  ALERT_URGENT_RENTAL_END_DAYS  RENTAL_ENDING MEDIUM window (7)
  TODAY                         Pin the engine's date (YYYY-MM-DD), for replays
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DBPath             string        `mapstructure:"DB_PATH"`
	CatalogPath        string        `mapstructure:"CATALOG_PATH"`
	DefaultMonthlyRate float64       `mapstructure:"DEFAULT_MONTHLY_RATE"`
	DefaultCurrency    string        `mapstructure:"DEFAULT_CURRENCY"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	AlertSweepInterval time.Duration `mapstructure:"ALERT_SWEEP_INTERVAL"`
	Today              string        `mapstructure:"TODAY"`

	ExpiryLookaheadDays int `mapstructure:"ALERT_EXPIRY_LOOKAHEAD_DAYS"`
	UrgentExpiryDays    int `mapstructure:"ALERT_URGENT_EXPIRY_DAYS"`
	StalePendingDays    int `mapstructure:"ALERT_STALE_PENDING_DAYS"`
	RentalEndingDays    int `mapstructure:"ALERT_RENTAL_ENDING_DAYS"`
	UrgentRentalEndDays int `mapstructure:"ALERT_URGENT_RENTAL_END_DAYS"`
}

var keys = []string{
	"PORT", "ENV", "DB_PATH", "CATALOG_PATH", "DEFAULT_MONTHLY_RATE", "DEFAULT_CURRENCY",
	"CORS_ORIGINS", "ALERT_SWEEP_INTERVAL", "TODAY",
	"ALERT_EXPIRY_LOOKAHEAD_DAYS", "ALERT_URGENT_EXPIRY_DAYS", "ALERT_STALE_PENDING_DAYS",
	"ALERT_RENTAL_ENDING_DAYS", "ALERT_URGENT_RENTAL_END_DAYS",
}

// Load reads the configuration. path names a config file; empty means an
// optional ".env" in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		v.SetConfigFile(".env")
	} else {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()

	// Defaults
	policy := coverage.DefaultAlertPolicy()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_PATH", "rental-engine.db")
	v.SetDefault("CATALOG_PATH", "")
	v.SetDefault("DEFAULT_MONTHLY_RATE", 300.0)
	v.SetDefault("DEFAULT_CURRENCY", string(generic.CurrencyTND))
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("ALERT_SWEEP_INTERVAL", "1h")
	v.SetDefault("TODAY", "")
	v.SetDefault("ALERT_EXPIRY_LOOKAHEAD_DAYS", policy.ExpiryLookahead)
	v.SetDefault("ALERT_URGENT_EXPIRY_DAYS", policy.UrgentExpiry)
	v.SetDefault("ALERT_STALE_PENDING_DAYS", policy.StalePending)
	v.SetDefault("ALERT_RENTAL_ENDING_DAYS", policy.RentalEnding)
	v.SetDefault("ALERT_URGENT_RENTAL_END_DAYS", policy.UrgentRentalEnd)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil && path != "" {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.DefaultMonthlyRate < 0 {
		return fmt.Errorf("%w: DEFAULT_MONTHLY_RATE cannot be negative", ErrInvalidConfig)
	}
	if c.AlertSweepInterval < 0 {
		return fmt.Errorf("%w: ALERT_SWEEP_INTERVAL cannot be negative", ErrInvalidConfig)
	}
	p := c.AlertPolicy()
	if p.ExpiryLookahead < 0 || p.UrgentExpiry < 0 || p.StalePending < 0 || p.RentalEnding < 0 || p.UrgentRentalEnd < 0 {
		return fmt.Errorf("%w: alert thresholds cannot be negative", ErrInvalidConfig)
	}
	if p.UrgentExpiry > p.ExpiryLookahead || p.UrgentRentalEnd > p.RentalEnding {
		return fmt.Errorf("%w: urgent alert windows must fit inside their lookahead", ErrInvalidConfig)
	}
	if c.Today != "" {
		if _, err := generic.ParseDate(c.Today); err != nil {
			return fmt.Errorf("%w: TODAY: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) AlertPolicy() coverage.AlertPolicy {
	return coverage.AlertPolicy{
		ExpiryLookahead: c.ExpiryLookaheadDays,
		UrgentExpiry:    c.UrgentExpiryDays,
		StalePending:    c.StalePendingDays,
		RentalEnding:    c.RentalEndingDays,
		UrgentRentalEnd: c.UrgentRentalEndDays,
	}
}

func (c *Config) Currency() generic.Currency {
	return generic.Currency(c.DefaultCurrency)
}

// Clock returns a clock pinned to TODAY when set, the system clock otherwise.
func (c *Config) Clock() generic.Clock {
	if c.Today != "" {
		if day, err := generic.ParseDate(c.Today); err == nil {
			return generic.FixedClock{Day: day}
		}
	}
	return generic.SystemClock{}
}
