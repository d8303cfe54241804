// Package notify delivers operator notifications about marketplace events
// (sales, unsold auctions) to chat webhooks. Delivery is filtered by event
// type so operators receive only the alerts they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const maxPaceWait = 2 * time.Second

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans notifications out to every Sender. Notify forwards only
// allowed event types; an empty allow list lets everything through.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	pacer   domain.RateLimiter
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders, allowing the listed events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// WithPacer makes every sender wait for a slot from limiter before sending,
// keyed per sender, so bursts of sales do not trip webhook throttling.
func (n *Notifier) WithPacer(limiter domain.RateLimiter) *Notifier {
	n.pacer = limiter
	return n
}

// pace waits at most maxPaceWait for a send slot; callers sit in the
// request path.
func (n *Notifier) pace(ctx context.Context, sender string) error {
	ctx, cancel := context.WithTimeout(ctx, maxPaceWait)
	defer cancel()
	return n.pacer.Wait(ctx, "notify:"+sender)
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify sends title and message for event if the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends to every sender regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch tries every sender; one failing sender does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if n.pacer != nil {
			if err := n.pace(ctx, s.Name()); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				continue
			}
		}
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
