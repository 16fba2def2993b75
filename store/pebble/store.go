// Package pebble provides an embedded, durable Store backed by PebbleDB.
//
// Key layout (tenant and target are validated stream names, so they never
// contain the 0x00 separator):
//
//	0x01 | tenant | 0x00 | target | 0x00 | eventID  -> event JSON
//	0x02 | tenant | 0x00 | target | 0x00 | idemKey  -> eventID
//
// Event IDs sort by creation time, so an ascending iteration over a stream
// prefix yields the stream in creation order.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	catcherstore "github.com/xraph/catcher/store"
)

// compile-time interface check.
var _ catcherstore.Store = (*Store)(nil)

const (
	eventPrefix = byte(0x01)
	idemPrefix  = byte(0x02)
	sep         = byte(0x00)
)

// Store implements store.Store using PebbleDB.
type Store struct {
	db *pebble.DB

	// mu guards closed; operations hold it shared so Close waits for them.
	mu     sync.RWMutex
	closed bool

	// writeMu serializes the duplicate checks and the batch that follows.
	writeMu sync.Mutex
}

// Open opens (or creates) a Pebble database at path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       2,
		L0StopWritesThreshold:       12,
		LBaseMaxBytes:               128 << 20,
		MaxOpenFiles:                1000,
		BytesPerSync:                512 << 10,
		MaxConcurrentCompactions:    func() int { return 3 },
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("catcher/pebble: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op; Pebble has no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the database is open and healthy.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return catcher.ErrStoreClosed
	}
	_, err := s.has([]byte{sep})
	return err
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

// PutEvent writes the event and its idempotency binding in one synced batch.
func (s *Store) PutEvent(_ context.Context, evt *event.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return catcher.ErrStoreClosed
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("catcher/pebble: marshal event: %w", err)
	}

	str := evt.Stream()
	evtKey := eventKey(str, evt.ID.String())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	exists, err := s.has(evtKey)
	if err != nil {
		return err
	}
	if exists {
		return catcher.ErrDuplicateEvent
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if evt.IdempotencyKey != "" {
		ik := idemKey(str, evt.IdempotencyKey)
		exists, err := s.has(ik)
		if err != nil {
			return err
		}
		if exists {
			return catcher.ErrDuplicateIdempotencyKey
		}
		if err := batch.Set(ik, []byte(evt.ID.String()), nil); err != nil {
			return fmt.Errorf("catcher/pebble: batch set: %w", err)
		}
	}
	if err := batch.Set(evtKey, data, nil); err != nil {
		return fmt.Errorf("catcher/pebble: batch set: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("%w: pebble: commit: %w", catcher.ErrStoreUnavailable, err)
	}
	return nil
}

// GetEvent returns an event by stream and ID.
func (s *Store) GetEvent(_ context.Context, str event.Stream, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, catcher.ErrStoreClosed
	}
	return s.get(eventKey(str, evtID.String()))
}

// GetEventByIdempotencyKey returns the event an idempotency key is bound to.
func (s *Store) GetEventByIdempotencyKey(_ context.Context, str event.Stream, key string) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, catcher.ErrStoreClosed
	}

	value, closer, err := s.db.Get(idemKey(str, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, catcher.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pebble: get: %w", catcher.ErrStoreUnavailable, err)
	}
	evtID := string(value)
	_ = closer.Close()

	return s.get(eventKey(str, evtID))
}

// ScanEvents iterates a stream's key range from just past opts.After.
func (s *Store) ScanEvents(ctx context.Context, str event.Stream, opts event.ScanOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, catcher.ErrStoreClosed
	}
	if opts.Limit <= 0 {
		return []*event.Event{}, nil
	}

	prefix := streamPrefix(eventPrefix, str)
	lower := prefix
	if opts.After != "" {
		// The smallest key strictly greater than the resume key.
		lower = append(eventKey(str, opts.After), sep)
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pebble: create iterator: %w", catcher.ErrStoreUnavailable, err)
	}
	defer iter.Close()

	result := make([]*event.Event, 0, opts.Limit)
	for iter.First(); iter.Valid() && len(result) < opts.Limit; iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var evt event.Event
		if err := json.Unmarshal(iter.Value(), &evt); err != nil {
			return nil, fmt.Errorf("catcher/pebble: unmarshal event: %w", err)
		}
		result = append(result, &evt)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: pebble: iterate: %w", catcher.ErrStoreUnavailable, err)
	}
	return result, nil
}

func (s *Store) has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: pebble: get: %w", catcher.ErrStoreUnavailable, err)
	}
	_ = closer.Close()
	return true, nil
}

func (s *Store) get(key []byte) (*event.Event, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, catcher.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pebble: get: %w", catcher.ErrStoreUnavailable, err)
	}
	defer closer.Close()

	var evt event.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return nil, fmt.Errorf("catcher/pebble: unmarshal event: %w", err)
	}
	return &evt, nil
}

// ──────────────────────────────────────────────────
// Keys
// ──────────────────────────────────────────────────

func streamPrefix(kind byte, str event.Stream) []byte {
	key := make([]byte, 0, 3+len(str.TenantID)+len(str.Target))
	key = append(key, kind)
	key = append(key, str.TenantID...)
	key = append(key, sep)
	key = append(key, str.Target...)
	key = append(key, sep)
	return key
}

func eventKey(str event.Stream, evtID string) []byte {
	return append(streamPrefix(eventPrefix, str), evtID...)
}

func idemKey(str event.Stream, key string) []byte {
	return append(streamPrefix(idemPrefix, str), key...)
}

// prefixEnd returns the exclusive upper bound of all keys starting with a
// stream prefix: the trailing separator bumped by one.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1] = sep + 1
	return end
}
