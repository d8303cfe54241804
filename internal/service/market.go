// Package service holds the marketplace business rules: the auction
// lifecycle, bid admission and ownership transfer. Services validate against
// the entity store inside per-entity critical sections and publish events
// after every committed change.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// Notifier delivers operator notifications for selected event types.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// MarketConfig holds the tunables shared by the marketplace services.
type MarketConfig struct {
	Currency      string
	LockTTL       time.Duration
	LockTimeout   time.Duration
	BidRateLimit  int
	BidRateWindow time.Duration
	Now           func() time.Time
}

func (c MarketConfig) withDefaults() MarketConfig {
	if c.Currency == "" {
		c.Currency = "ETH"
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Second
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 5 * time.Second
	}
	if c.BidRateWindow <= 0 {
		c.BidRateWindow = time.Second
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
	return c
}

// acquire takes the lock for key, waiting at most LockTimeout.
func (c MarketConfig) acquire(ctx context.Context, locks domain.LockManager, key string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, c.LockTimeout)
	defer cancel()
	return locks.Acquire(lockCtx, key, c.LockTTL)
}

// publisher fans committed changes out to the signal bus, the durable event
// stream and the audit log. Failures here never undo a committed change, so
// they are logged and swallowed.
type publisher struct {
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

func (p publisher) emit(ctx context.Context, evt domain.Event, channels ...string) {
	if p.bus == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.WarnContext(ctx, "marshal event failed",
			slog.String("event", evt.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, ch := range append(channels, domain.ChannelMarket) {
		if err := p.bus.Publish(ctx, ch, data); err != nil {
			p.logger.WarnContext(ctx, "publish event failed",
				slog.String("event", evt.Type),
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := p.bus.StreamAppend(ctx, domain.StreamMarketEvents, data); err != nil {
		p.logger.WarnContext(ctx, "stream append failed",
			slog.String("event", evt.Type),
			slog.String("error", err.Error()),
		)
	}
}

func (p publisher) record(ctx context.Context, event string, detail map[string]any) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Log(ctx, event, detail); err != nil {
		p.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// requireUser resolves id through the directory, reporting unknown users as
// domain.ErrNotFound.
func requireUser(ctx context.Context, users domain.UserDirectory, role string, id int64) error {
	if users == nil {
		return nil
	}
	if _, err := users.GetUser(ctx, id); err != nil {
		return fmt.Errorf("%s %d: %w", role, id, err)
	}
	return nil
}
