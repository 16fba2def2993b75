// Package memory provides an in-memory Store implementation for unit testing
// and single-process deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	catcherstore "github.com/xraph/catcher/store"
)

// compile-time interface check.
var _ catcherstore.Store = (*Store)(nil)

// stream holds one stream's events, with IDs kept sorted for range scans.
type stream struct {
	events    map[string]*event.Event // keyed by ID string
	ids       []string                // ascending
	byIdemKey map[string]string       // idempotency key -> event ID
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu      sync.RWMutex
	streams map[string]*stream // keyed by stream key
	closed  bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{streams: make(map[string]*stream)}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return catcher.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// PutEvent persists an event. The record and its idempotency binding become
// visible together under the store lock.
func (s *Store) PutEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return catcher.ErrStoreClosed
	}

	key := evt.Stream().Key()
	st, ok := s.streams[key]
	if !ok {
		st = &stream{
			events:    make(map[string]*event.Event),
			byIdemKey: make(map[string]string),
		}
		s.streams[key] = st
	}

	evtID := evt.ID.String()
	if _, dup := st.events[evtID]; dup {
		return catcher.ErrDuplicateEvent
	}
	if evt.IdempotencyKey != "" {
		if _, dup := st.byIdemKey[evt.IdempotencyKey]; dup {
			return catcher.ErrDuplicateIdempotencyKey
		}
		st.byIdemKey[evt.IdempotencyKey] = evtID
	}

	st.events[evtID] = clone(evt)
	i := sort.SearchStrings(st.ids, evtID)
	st.ids = append(st.ids, "")
	copy(st.ids[i+1:], st.ids[i:])
	st.ids[i] = evtID
	return nil
}

// GetEvent returns an event by stream and ID.
func (s *Store) GetEvent(_ context.Context, str event.Stream, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, catcher.ErrStoreClosed
	}
	st, ok := s.streams[str.Key()]
	if !ok {
		return nil, catcher.ErrEventNotFound
	}
	evt, ok := st.events[evtID.String()]
	if !ok {
		return nil, catcher.ErrEventNotFound
	}
	return clone(evt), nil
}

// GetEventByIdempotencyKey returns the event an idempotency key is bound to.
func (s *Store) GetEventByIdempotencyKey(_ context.Context, str event.Stream, key string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, catcher.ErrStoreClosed
	}
	st, ok := s.streams[str.Key()]
	if !ok {
		return nil, catcher.ErrEventNotFound
	}
	evtID, ok := st.byIdemKey[key]
	if !ok {
		return nil, catcher.ErrEventNotFound
	}
	return clone(st.events[evtID]), nil
}

// ScanEvents returns events with IDs strictly after opts.After, ascending.
func (s *Store) ScanEvents(_ context.Context, str event.Stream, opts event.ScanOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, catcher.ErrStoreClosed
	}
	st, ok := s.streams[str.Key()]
	if !ok || opts.Limit <= 0 {
		return []*event.Event{}, nil
	}

	start := sort.SearchStrings(st.ids, opts.After)
	if start < len(st.ids) && st.ids[start] == opts.After {
		start++
	}
	end := min(start+opts.Limit, len(st.ids))

	result := make([]*event.Event, 0, end-start)
	for _, evtID := range st.ids[start:end] {
		result = append(result, clone(st.events[evtID]))
	}
	return result, nil
}

// clone copies an event so callers never share the stored payload slice.
func clone(evt *event.Event) *event.Event {
	c := *evt
	c.Payload = append([]byte(nil), evt.Payload...)
	return &c
}
