package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/adityakrmishra/BlockChainBazaar/internal/blob/s3"
	natsbus "github.com/adityakrmishra/BlockChainBazaar/internal/bus/nats"
	"github.com/adityakrmishra/BlockChainBazaar/internal/cache/local"
	"github.com/adityakrmishra/BlockChainBazaar/internal/cache/redis"
	"github.com/adityakrmishra/BlockChainBazaar/internal/config"
	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/notify"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/handler"
	"github.com/adityakrmishra/BlockChainBazaar/internal/store/memory"
	"github.com/adityakrmishra/BlockChainBazaar/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	Store domain.Store
	Users domain.UserDirectory
	Audit domain.AuditStore

	// Coordination
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Archive is nil unless archiving is enabled.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// HealthChecks probes the external backends that were wired.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{HealthChecks: map[string]handler.HealthCheck{}}
	seeds := userSeeds(cfg.Users)

	// --- Entity store ---
	switch cfg.Store.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:             cfg.Postgres.DSN,
			Host:            cfg.Postgres.Host,
			Port:            cfg.Postgres.Port,
			Database:        cfg.Postgres.Database,
			User:            cfg.Postgres.User,
			Password:        cfg.Postgres.Password,
			SSLMode:         cfg.Postgres.SSLMode,
			MaxConns:        cfg.Postgres.PoolMaxConns,
			MinConns:        cfg.Postgres.PoolMinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime.Duration,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		users := postgres.NewUserDirectory(pool)
		if err := users.Seed(ctx, seeds); err != nil {
			return fail("seed users", err)
		}
		deps.Store = postgres.NewStore(pool)
		deps.Users = users
		deps.Audit = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Health
	default:
		deps.Store = memory.New()
		deps.Users = memory.NewUserDirectory(seeds...)
		deps.Audit = memory.NewAuditStore()
	}

	// --- Redis (locks, rate limits, events) ---
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		var err error
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	if cfg.Store.Cache == "redis" {
		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	} else {
		deps.Locks = local.NewLockManager()
		deps.RateLimiter = local.NewRateLimiter()
	}

	switch cfg.Store.Events {
	case "redis":
		deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, cfg.Redis.StreamMaxLen)
	case "nats":
		bus, err := natsbus.New(natsbus.Config{
			URL:          cfg.NATS.URL,
			Name:         cfg.NATS.Name,
			Prefix:       cfg.NATS.Prefix,
			StreamMaxLen: cfg.NATS.StreamMaxLen,
		})
		if err != nil {
			return fail("nats", err)
		}
		closers = append(closers, func() { _ = bus.Close() })
		deps.SignalBus = bus
	default:
		deps.SignalBus = local.NewSignalBus(int(cfg.Redis.StreamMaxLen))
	}

	// --- S3 archive ---
	if cfg.Archive.Enabled || cfg.Mode == "archive" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			deps.Store.Transactions(),
			deps.Store.Bids(),
			deps.Audit,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger).WithPacer(deps.RateLimiter)

	return deps, cleanup, nil
}

func userSeeds(in []config.UserSeed) []domain.User {
	out := make([]domain.User, 0, len(in))
	for _, u := range in {
		out = append(out, domain.User{
			ID:            u.ID,
			DisplayName:   u.DisplayName,
			WalletAddress: u.WalletAddress,
		})
	}
	return out
}
