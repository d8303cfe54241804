// Package config defines the top-level configuration for the marketplace
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BAZAAR_* environment variables.
type Config struct {
	Store    StoreConfig    `toml:"store"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	NATS     NATSConfig     `toml:"nats"`
	S3       S3Config       `toml:"s3"`
	Market   MarketConfig   `toml:"market"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Users    []UserSeed     `toml:"users"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// StoreConfig selects a backend per concern.
type StoreConfig struct {
	Backend string `toml:"backend"` // memory | postgres
	Cache   string `toml:"cache"`   // local | redis
	Events  string `toml:"events"`  // local | redis | nats
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN             string   `toml:"dsn"`
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Database        string   `toml:"database"`
	User            string   `toml:"user"`
	Password        string   `toml:"password"`
	SSLMode         string   `toml:"ssl_mode"`
	PoolMaxConns    int      `toml:"pool_max_conns"`
	PoolMinConns    int      `toml:"pool_min_conns"`
	MaxConnLifetime duration `toml:"max_conn_lifetime"`
	RunMigrations   bool     `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// NATSConfig holds NATS connection and JetStream parameters.
type NATSConfig struct {
	URL          string `toml:"url"`
	Name         string `toml:"name"`
	Prefix       string `toml:"prefix"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// MarketConfig holds the auction and bidding tunables.
type MarketConfig struct {
	Currency       string   `toml:"currency"`
	LockTTL        duration `toml:"lock_ttl"`
	LockTimeout    duration `toml:"lock_timeout"`
	BidRateLimit   int      `toml:"bid_rate_limit"`
	BidRateWindow  duration `toml:"bid_rate_window"`
	SettleInterval duration `toml:"settle_interval"`
	SettleBatch    int      `toml:"settle_batch"`
	SettleRetry    duration `toml:"settle_retry"`
}

// ArchiveConfig controls the history archiver.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	WebhookURL        string   `toml:"webhook_url"`
	Events            []string `toml:"events"`
}

// UserSeed is a user preloaded into the directory when the memory backend
// is used, or upserted at startup with postgres.
type UserSeed struct {
	ID            int64  `toml:"id"`
	DisplayName   string `toml:"display_name"`
	WalletAddress string `toml:"wallet_address"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Store: StoreConfig{
			Backend: "memory",
			Cache:   "local",
			Events:  "local",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bazaar",
			User:            "postgres",
			SSLMode:         "disable",
			PoolMaxConns:    10,
			PoolMinConns:    2,
			MaxConnLifetime: duration{30 * time.Minute},
			RunMigrations:   true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10_000,
		},
		NATS: NATSConfig{
			URL:          "nats://localhost:4222",
			Name:         "bazaar",
			Prefix:       "bazaar",
			StreamMaxLen: 10_000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bazaar-archive",
			ForcePathStyle: true,
		},
		Market: MarketConfig{
			Currency:       "ETH",
			LockTTL:        duration{10 * time.Second},
			LockTimeout:    duration{5 * time.Second},
			BidRateLimit:   10,
			BidRateWindow:  duration{time.Second},
			SettleInterval: duration{5 * time.Second},
			SettleBatch:    50,
			SettleRetry:    duration{30 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"item_sold", "auction_settled"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"settler": true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var (
	validBackends = map[string]bool{"memory": true, "postgres": true}
	validCaches   = map[string]bool{"local": true, "redis": true}
	validEvents   = map[string]bool{"local": true, "redis": true, "nats": true}
)

// NeedsRedis reports whether any concern is served by Redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Cache == "redis" || c.Store.Events == "redis"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, settler, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Backends
	if !validBackends[c.Store.Backend] {
		errs = append(errs, fmt.Sprintf("store: unknown backend %q (valid: memory, postgres)", c.Store.Backend))
	}
	if !validCaches[c.Store.Cache] {
		errs = append(errs, fmt.Sprintf("store: unknown cache %q (valid: local, redis)", c.Store.Cache))
	}
	if !validEvents[c.Store.Events] {
		errs = append(errs, fmt.Sprintf("store: unknown events %q (valid: local, redis, nats)", c.Store.Events))
	}
	if c.Store.Backend == "memory" && c.Mode != "full" && c.Mode != "server" {
		// A separate settler or archive process cannot see another process's memory.
		errs = append(errs, fmt.Sprintf("store: mode %q requires the postgres backend", c.Mode))
	}

	if c.Store.Backend == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.NeedsRedis() {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Store.Events == "nats" && c.NATS.URL == "" {
		errs = append(errs, "nats: url must not be empty")
	}

	// S3 is only needed once the archiver runs.
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Market
	if c.Market.Currency == "" {
		errs = append(errs, "market: currency must not be empty")
	}
	if c.Market.LockTTL.Duration <= 0 {
		errs = append(errs, "market: lock_ttl must be > 0")
	}
	if c.Market.LockTimeout.Duration <= 0 {
		errs = append(errs, "market: lock_timeout must be > 0")
	}
	if c.Market.BidRateLimit < 0 {
		errs = append(errs, "market: bid_rate_limit must be >= 0")
	}
	if c.Market.SettleInterval.Duration <= 0 {
		errs = append(errs, "market: settle_interval must be > 0")
	}
	if c.Market.SettleBatch < 1 {
		errs = append(errs, "market: settle_batch must be >= 1")
	}

	// Server
	if c.Mode == "server" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Users
	seen := make(map[int64]bool, len(c.Users))
	for i, u := range c.Users {
		if u.ID <= 0 {
			errs = append(errs, fmt.Sprintf("users[%d]: id must be > 0", i))
		}
		if seen[u.ID] {
			errs = append(errs, fmt.Sprintf("users[%d]: duplicate id %d", i, u.ID))
		}
		seen[u.ID] = true
		if u.WalletAddress != "" && !common.IsHexAddress(u.WalletAddress) {
			errs = append(errs, fmt.Sprintf("users[%d]: wallet_address %q is not a hex address", i, u.WalletAddress))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
