package local

import (
	"context"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const (
	defaultStreamMaxLen = 10000
	subscriberBuffer    = 128
)

// SignalBus is an in-process pub/sub with bounded append-only streams.
// Channel names may contain glob patterns, matched the way Redis PSUBSCRIBE
// matches them.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	streams map[string]*stream
	maxLen  int
}

type subscriber struct {
	pattern string
	out     chan []byte
}

type stream struct {
	seq     uint64
	entries []domain.StreamMessage
	seqs    []uint64
}

// NewSignalBus creates a SignalBus whose streams keep at most maxLen entries.
func NewSignalBus(maxLen int) *SignalBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &SignalBus{
		subs:    make(map[*subscriber]struct{}),
		streams: make(map[string]*stream),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every matching subscriber. Slow subscribers
// whose buffer is full miss the message.
func (sb *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	for s := range sb.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.out <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to channel (or matching
// it, when channel is a pattern). The channel is closed when ctx is done.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscriber{pattern: channel, out: make(chan []byte, subscriberBuffer)}
	sb.mu.Lock()
	sb.subs[s] = struct{}{}
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		delete(sb.subs, s)
		close(s.out)
		sb.mu.Unlock()
	}()
	return s.out, nil
}

func matches(pattern, channel string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == channel
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// StreamAppend appends payload to the named stream, trimming the oldest
// entries beyond the configured length.
func (sb *SignalBus) StreamAppend(_ context.Context, name string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	st, ok := sb.streams[name]
	if !ok {
		st = &stream{}
		sb.streams[name] = st
	}
	st.seq++
	st.entries = append(st.entries, domain.StreamMessage{
		ID:      strconv.FormatUint(st.seq, 10) + "-0",
		Payload: append([]byte(nil), payload...),
	})
	st.seqs = append(st.seqs, st.seq)
	if over := len(st.entries) - sb.maxLen; over > 0 {
		st.entries = st.entries[over:]
		st.seqs = st.seqs[over:]
	}
	return nil
}

// StreamRead returns up to count entries after lastID. "0" and "0-0" read
// from the beginning; "$" reads nothing, mirroring XREAD without blocking.
func (sb *SignalBus) StreamRead(_ context.Context, name string, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "$" {
		return nil, nil
	}
	after, err := parseStreamID(lastID)
	if err != nil {
		return nil, err
	}

	sb.mu.RLock()
	defer sb.mu.RUnlock()
	st, ok := sb.streams[name]
	if !ok {
		return nil, nil
	}
	var out []domain.StreamMessage
	for i, seq := range st.seqs {
		if seq <= after {
			continue
		}
		out = append(out, st.entries[i])
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func parseStreamID(id string) (uint64, error) {
	if id == "" {
		return 0, nil
	}
	head, _, _ := strings.Cut(id, "-")
	return strconv.ParseUint(head, 10, 64)
}

var _ domain.SignalBus = (*SignalBus)(nil)
