// Package natsbus implements domain.SignalBus on NATS core subjects for live
// events and JetStream streams for the durable market event log.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const defaultStreamMaxLen int64 = 10000

// Config holds NATS connection parameters.
type Config struct {
	URL          string
	Name         string
	Prefix       string
	StreamMaxLen int64
}

// Bus implements domain.SignalBus on NATS.
type Bus struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
	maxLen int64

	mu      sync.Mutex
	streams map[string]jetstream.Stream
}

// New connects to NATS and opens a JetStream context.
func New(cfg Config) (*Bus, error) {
	name := cfg.Name
	if name == "" {
		name = "bazaar"
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", cfg.URL, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bazaar"
	}
	maxLen := cfg.StreamMaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Bus{
		nc:      nc,
		js:      js,
		prefix:  prefix,
		maxLen:  maxLen,
		streams: make(map[string]jetstream.Stream),
	}, nil
}

// Close drains the connection.
func (b *Bus) Close() error {
	return b.nc.Drain()
}

// subject maps a bus channel such as "auction:7" or "auction:*" to a NATS
// subject under the configured prefix.
func subject(prefix, channel string) string {
	return prefix + "." + strings.ReplaceAll(channel, ":", ".")
}

// streamName maps "market:events" to the JetStream name "MARKET_EVENTS".
func streamName(stream string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, stream)
}

// Publish sends payload on the channel's subject.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	if err := b.nc.Publish(subject(b.prefix, channel), payload); err != nil {
		return fmt.Errorf("nats: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe delivers payloads for channel until ctx is cancelled. A "*"
// segment matches one channel segment.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	msgs := make(chan *nats.Msg, 128)
	sub, err := b.nc.ChanSubscribe(subject(b.prefix, channel), msgs)
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				select {
				case out <- msg.Data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// stream returns the JetStream stream backing name, creating it on first use.
func (b *Bus) stream(ctx context.Context, name string) (jetstream.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.streams[name]; ok {
		return s, nil
	}
	s, err := b.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName(name),
		Subjects:  []string{subject(b.prefix+".stream", name)},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxMsgs:   b.maxLen,
		Discard:   jetstream.DiscardOld,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: ensure stream %s: %w", name, err)
	}
	b.streams[name] = s
	return s, nil
}

// StreamAppend publishes payload to the stream and waits for the ack.
func (b *Bus) StreamAppend(ctx context.Context, name string, payload []byte) error {
	if _, err := b.stream(ctx, name); err != nil {
		return err
	}
	if _, err := b.js.Publish(ctx, subject(b.prefix+".stream", name), payload); err != nil {
		return fmt.Errorf("nats: stream append %s: %w", name, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID. IDs have the form
// "<sequence>-0". "$" yields nothing.
func (b *Bus) StreamRead(ctx context.Context, name string, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "$" || count <= 0 {
		return nil, nil
	}
	after, err := parseID(lastID)
	if err != nil {
		return nil, fmt.Errorf("nats: stream read %s: %w", name, err)
	}
	s, err := b.stream(ctx, name)
	if err != nil {
		return nil, err
	}
	info, err := s.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("nats: stream info %s: %w", name, err)
	}

	seq := max(after+1, info.State.FirstSeq)
	var out []domain.StreamMessage
	for ; seq <= info.State.LastSeq && len(out) < count; seq++ {
		msg, err := s.GetMsg(ctx, seq)
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("nats: stream read %s seq %d: %w", name, seq, err)
		}
		out = append(out, domain.StreamMessage{
			ID:      formatID(msg.Sequence),
			Payload: msg.Data,
		})
	}
	return out, nil
}

func formatID(seq uint64) string {
	return strconv.FormatUint(seq, 10) + "-0"
}

func parseID(id string) (uint64, error) {
	if id == "" {
		return 0, nil
	}
	head, _, _ := strings.Cut(id, "-")
	seq, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream id %q", id)
	}
	return seq, nil
}

var _ domain.SignalBus = (*Bus)(nil)
