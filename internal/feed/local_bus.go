package feed

import (
	"context"
	"path"
	"strconv"
	"sync"

	"github.com/alanyoungcy/oddsexchange/internal/domain"
)

// LocalBus is an in-process domain.SignalBus used when Redis is disabled.
// Slow subscribers drop messages rather than block publishers.
type LocalBus struct {
	mu      sync.Mutex
	subs    map[int]localSub
	nextSub int
	streams map[string][]domain.StreamMessage
	seq     int64
	maxLen  int
}

type localSub struct {
	pattern string
	ch      chan []byte
}

// NewLocalBus returns a LocalBus keeping at most maxLen entries per stream.
func NewLocalBus(maxLen int) *LocalBus {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &LocalBus{
		subs:    make(map[int]localSub),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every subscriber whose pattern matches channel.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		select {
		case s.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers for channel (glob patterns allowed) until ctx ends.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = localSub{pattern: channel, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// StreamAppend appends payload to stream.
func (b *LocalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	msgs := append(b.streams[stream], domain.StreamMessage{ID: strconv.FormatInt(b.seq, 10), Payload: payload})
	if len(msgs) > b.maxLen {
		msgs = msgs[len(msgs)-b.maxLen:]
	}
	b.streams[stream] = msgs
	return nil
}

// StreamRead returns up to count entries with ids after lastID.
func (b *LocalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	after, _ := strconv.ParseInt(lastID, 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if id, _ := strconv.ParseInt(m.ID, 10, 64); id <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

var _ domain.SignalBus = (*LocalBus)(nil)
