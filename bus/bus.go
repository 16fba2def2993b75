// Package bus fans committed events out to in-process subscribers.
//
// The bus carries only events that are already durable; it is a delivery
// hint for live readers, never a source of truth. Slow subscribers lose
// events rather than block the relay, and are expected to catch up from
// the store.
package bus

import "github.com/xraph/catcher/event"

// EventBus distributes committed events to subscribers.
type EventBus interface {
	// Publish sends an event to every subscriber of its stream.
	Publish(evt *event.Event)

	// Subscribe registers a subscriber for one stream.
	// Returns a Subscription that must be closed when done.
	Subscribe(stream event.Stream) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription receives events.
type Subscription interface {
	// Events returns a channel of events for this subscription.
	Events() <-chan *event.Event

	// Dropped reports how many events were discarded because the
	// subscriber fell behind.
	Dropped() uint64

	// Close unsubscribes and releases resources.
	Close() error
}
