package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BAZAAR_* environment variable overrides, and
// returns the final Config. A missing file leaves the defaults in place. The
// returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BAZAAR_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Store ──
	setStr(&cfg.Store.Backend, "BAZAAR_STORE_BACKEND")
	setStr(&cfg.Store.Cache, "BAZAAR_STORE_CACHE")
	setStr(&cfg.Store.Events, "BAZAAR_STORE_EVENTS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform default, BAZAAR_ wins
	setStr(&cfg.Postgres.DSN, "BAZAAR_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BAZAAR_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BAZAAR_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BAZAAR_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BAZAAR_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BAZAAR_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BAZAAR_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BAZAAR_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BAZAAR_POSTGRES_POOL_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BAZAAR_POSTGRES_MAX_CONN_LIFETIME")
	setBool(&cfg.Postgres.RunMigrations, "BAZAAR_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BAZAAR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BAZAAR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BAZAAR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BAZAAR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BAZAAR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BAZAAR_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "BAZAAR_REDIS_STREAM_MAX_LEN")

	// ── NATS ──
	setStr(&cfg.NATS.URL, "BAZAAR_NATS_URL")
	setStr(&cfg.NATS.Name, "BAZAAR_NATS_NAME")
	setStr(&cfg.NATS.Prefix, "BAZAAR_NATS_PREFIX")
	setInt64(&cfg.NATS.StreamMaxLen, "BAZAAR_NATS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BAZAAR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BAZAAR_S3_REGION")
	setStr(&cfg.S3.Bucket, "BAZAAR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BAZAAR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BAZAAR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BAZAAR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BAZAAR_S3_FORCE_PATH_STYLE")

	// ── Market ──
	setStr(&cfg.Market.Currency, "BAZAAR_MARKET_CURRENCY")
	setDuration(&cfg.Market.LockTTL, "BAZAAR_MARKET_LOCK_TTL")
	setDuration(&cfg.Market.LockTimeout, "BAZAAR_MARKET_LOCK_TIMEOUT")
	setInt(&cfg.Market.BidRateLimit, "BAZAAR_MARKET_BID_RATE_LIMIT")
	setDuration(&cfg.Market.BidRateWindow, "BAZAAR_MARKET_BID_RATE_WINDOW")
	setDuration(&cfg.Market.SettleInterval, "BAZAAR_MARKET_SETTLE_INTERVAL")
	setInt(&cfg.Market.SettleBatch, "BAZAAR_MARKET_SETTLE_BATCH")
	setDuration(&cfg.Market.SettleRetry, "BAZAAR_MARKET_SETTLE_RETRY")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "BAZAAR_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "BAZAAR_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "BAZAAR_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "BAZAAR_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "BAZAAR_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "BAZAAR_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "BAZAAR_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "BAZAAR_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BAZAAR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BAZAAR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BAZAAR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "BAZAAR_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BAZAAR_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BAZAAR_MODE")
	setStr(&cfg.LogLevel, "BAZAAR_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
