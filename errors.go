package catcher

import (
	"errors"

	"github.com/xraph/catcher/inbound"
	"github.com/xraph/catcher/page"
)

// Sentinel errors returned by Catcher operations.
var (
	// ErrNoStore is returned when a Catcher is created without a store.
	ErrNoStore = errors.New("catcher: store is required")

	// ErrMalformedHandshake is returned when a subscription confirmation body
	// cannot be parsed or carries no SubscribeURL.
	ErrMalformedHandshake = inbound.ErrMalformedHandshake

	// ErrInvalidPayload is returned when an ingested payload is too large or
	// does not conform to the schema registered for its target.
	ErrInvalidPayload = errors.New("catcher: invalid payload")

	// ErrInvalidRoute is returned when a tenant, target or collection key is
	// not a valid stream identifier.
	ErrInvalidRoute = errors.New("catcher: invalid tenant or target")

	// ErrInvalidPageSize is returned when a list request asks for a non-positive page size.
	ErrInvalidPageSize = page.ErrInvalidPageSize

	// ErrInvalidToken is returned when a continuation token does not verify
	// or belongs to a different collection.
	ErrInvalidToken = page.ErrInvalidToken

	// ErrStoreUnavailable is returned when the event store fails a read or write.
	// The core never retries; redelivery is the caller's responsibility.
	ErrStoreUnavailable = errors.New("catcher: store unavailable")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("catcher: event not found")

	// ErrDuplicateEvent is returned by a store when an event with the same ID already exists.
	ErrDuplicateEvent = errors.New("catcher: duplicate event")

	// ErrDuplicateIdempotencyKey is returned by a store when the idempotency key
	// is already bound to another event on the same stream.
	ErrDuplicateIdempotencyKey = errors.New("catcher: duplicate idempotency key")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("catcher: store is closed")

	// ErrRateLimited is returned when a tenant exceeds its ingest rate.
	ErrRateLimited = errors.New("catcher: rate limit exceeded")
)
