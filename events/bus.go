// Package events provides an in-memory docindex.EventBus.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fwojciec/docindex"
)

// DefaultBufferSize is the channel capacity of a subscription.
const DefaultBufferSize = 64

// Ensure Bus implements docindex.EventBus at compile time.
var _ docindex.EventBus = (*Bus)(nil)

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
//
// Bus is safe for concurrent use.
type Bus struct {
	bufferSize int
	logger     *slog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription

	dropped atomic.Int64
}

type subscription struct {
	ch    chan docindex.Event
	types map[docindex.EventType]bool
}

func (s *subscription) wants(t docindex.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the channel capacity of new subscriptions.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		b.bufferSize = n
	}
}

// WithLogger logs dropped events at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// NewBus creates a Bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		bufferSize: DefaultBufferSize,
		subs:       make(map[int]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	return b
}

// Publish delivers e to every subscriber of its type.
func (b *Bus) Publish(e docindex.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
			b.logger.Debug("event dropped", "subscriber", id, "type", e.Type)
		}
	}
}

// Subscribe returns a channel of events of the given types, or of all
// types when none are given. The returned function closes the channel;
// it is safe to call more than once.
func (b *Bus) Subscribe(types ...docindex.EventType) (<-chan docindex.Event, func()) {
	s := &subscription{ch: make(chan docindex.Event, b.bufferSize)}
	if len(types) > 0 {
		s.types = make(map[docindex.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
