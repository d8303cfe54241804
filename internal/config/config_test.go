package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
	check.Equal(t, "memory", cfg.Store.Backend)
	check.Equal(t, 10*time.Second, cfg.Market.LockTTL.Duration)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "server"

[market]
currency = "MATIC"
lock_timeout = "2s"

[[users]]
id = 1
display_name = "alice"
wallet_address = "0x52908400098527886E0F7030069857D2E4169EE7"

[[users]]
id = 2
display_name = "bob"
`
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	assert.NoError(t, err)
	check.Equal(t, "server", cfg.Mode)
	check.Equal(t, "MATIC", cfg.Market.Currency)
	check.Equal(t, 2*time.Second, cfg.Market.LockTimeout.Duration)
	check.Equal(t, 10*time.Second, cfg.Market.LockTTL.Duration)
	check.Equal(t, 2, len(cfg.Users))
	check.NoError(t, cfg.Validate())
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.NoError(t, err)
	check.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BAZAAR_STORE_BACKEND", "postgres")
	t.Setenv("BAZAAR_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("BAZAAR_MARKET_SETTLE_INTERVAL", "750ms")
	t.Setenv("BAZAAR_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("BAZAAR_REDIS_DB", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	check.Equal(t, "postgres", cfg.Store.Backend)
	check.Equal(t, "hunter2", cfg.Postgres.Password)
	check.Equal(t, 750*time.Millisecond, cfg.Market.SettleInterval.Duration)
	check.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	check.Equal(t, 0, cfg.Redis.DB)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Store.Events = "kafka"
	cfg.Market.SettleBatch = 0
	cfg.Users = []UserSeed{
		{ID: 1, WalletAddress: "not-an-address"},
		{ID: 1},
	}

	err := cfg.Validate()
	assert.NotNil(t, err)
	msg := err.Error()
	for _, want := range []string{
		`unknown mode "trade"`,
		`unknown events "kafka"`,
		"settle_batch",
		"wallet_address",
		"duplicate id 1",
	} {
		check.True(t, strings.Contains(msg, want))
	}
}

func TestValidateBackendRequirements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "settler needs shared store",
			mutate: func(c *Config) { c.Mode = "settler" },
			want:   "requires the postgres backend",
		},
		{
			name: "redis cache needs addr",
			mutate: func(c *Config) {
				c.Store.Cache = "redis"
				c.Redis.Addr = ""
			},
			want: "redis: addr",
		},
		{
			name: "nats events need url",
			mutate: func(c *Config) {
				c.Store.Events = "nats"
				c.NATS.URL = ""
			},
			want: "nats: url",
		},
		{
			name: "archive needs bucket",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.S3.Bucket = ""
			},
			want: "s3: bucket",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.NotNil(t, err)
			check.True(t, strings.Contains(err.Error(), tt.want))
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "secret"
	cfg.Server.APIKey = "key"
	cfg.Notify.Events = []string{"item_sold"}

	out := RedactedConfig(&cfg)
	check.Equal(t, redacted, out.Postgres.Password)
	check.Equal(t, redacted, out.Server.APIKey)
	check.Equal(t, "", out.S3.SecretKey)

	out.Notify.Events[0] = "changed"
	check.Equal(t, "item_sold", cfg.Notify.Events[0])
	check.Equal(t, "secret", cfg.Postgres.Password)
}
