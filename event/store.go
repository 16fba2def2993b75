package event

import (
	"context"

	"github.com/xraph/catcher/id"
)

// Store defines the persistence contract for relayed events.
type Store interface {
	// PutEvent persists an event as one atomic write: a concurrent reader
	// sees either nothing or the whole record. Must be durable before
	// returning. Returns ErrDuplicateIdempotencyKey when the event's
	// idempotency key is already bound on its stream.
	PutEvent(ctx context.Context, evt *Event) error

	// GetEvent returns one event of a stream.
	GetEvent(ctx context.Context, stream Stream, evtID id.ID) (*Event, error)

	// GetEventByIdempotencyKey returns the event an idempotency key is bound to.
	GetEventByIdempotencyKey(ctx context.Context, stream Stream, key string) (*Event, error)

	// ScanEvents returns up to opts.Limit events of a stream with IDs
	// strictly greater than opts.After, in ascending ID order.
	ScanEvents(ctx context.Context, stream Stream, opts ScanOpts) ([]*Event, error)
}
