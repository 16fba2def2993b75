package bus

import (
	"sync"
	"sync/atomic"

	"github.com/xraph/catcher/event"
)

// MemBusConfig configures an in-memory event bus.
type MemBusConfig struct {
	// SubscriberBufferSize is the channel buffer size per subscriber (default: 256).
	SubscriberBufferSize int
}

// MemBus is an in-memory event bus implementation.
type MemBus struct {
	mu      sync.RWMutex
	subs    map[string]map[*memSub]struct{} // stream key -> subscribers
	bufSize int
	closed  bool
}

// NewMemBus creates a new in-memory event bus with the given configuration.
func NewMemBus(config MemBusConfig) *MemBus {
	bufSize := config.SubscriberBufferSize
	if bufSize <= 0 {
		bufSize = 256
	}
	return &MemBus{
		subs:    make(map[string]map[*memSub]struct{}),
		bufSize: bufSize,
	}
}

// Publish sends an event to all subscribers of its stream. If the bus is
// closed, the event is silently dropped.
func (b *MemBus) Publish(evt *event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs[evt.Stream().Key()] {
		sub.send(evt)
	}
}

// Subscribe registers a subscriber for one stream. Subscribing to a closed
// bus returns an already-closed subscription.
func (b *MemBus) Subscribe(stream event.Stream) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := stream.Key()
	sub := newMemSub(b, key, b.bufSize)
	if b.closed {
		sub.close()
		return sub
	}
	if b.subs[key] == nil {
		b.subs[key] = make(map[*memSub]struct{})
	}
	b.subs[key][sub] = struct{}{}
	return sub
}

// Subscribers returns the number of live subscriptions on a stream.
func (b *MemBus) Subscribers(stream event.Stream) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[stream.Key()])
}

// Close shuts down the bus and all active subscriptions.
func (b *MemBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for key, subs := range b.subs {
		for sub := range subs {
			sub.close()
		}
		delete(b.subs, key)
	}
	return nil
}

func (b *MemBus) remove(sub *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.key]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.subs, sub.key)
	}
}

// memSub is an in-memory subscription.
type memSub struct {
	bus     *MemBus
	key     string
	ch      chan *event.Event
	dropped atomic.Uint64
	mu      sync.Mutex
	closed  bool
}

func newMemSub(b *MemBus, key string, bufSize int) *memSub {
	return &memSub{
		bus: b,
		key: key,
		ch:  make(chan *event.Event, bufSize),
	}
}

// Events returns a channel of events for this subscription.
func (s *memSub) Events() <-chan *event.Event {
	return s.ch
}

// Dropped reports how many events overflowed the buffer.
func (s *memSub) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes and releases resources.
func (s *memSub) Close() error {
	s.bus.remove(s)
	s.close()
	return nil
}

// close performs the actual channel close, guarded against double-close.
func (s *memSub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// send delivers an event to the subscription's channel.
// If the channel is full or the subscription is closed, the event is dropped.
func (s *memSub) send(evt *event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- evt:
	default:
		s.dropped.Add(1)
	}
}

// Compile-time interface checks.
var (
	_ EventBus     = (*MemBus)(nil)
	_ Subscription = (*memSub)(nil)
)
