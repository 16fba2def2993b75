// Package redis provides a Store backed by Redis.
//
// Each stream is a sorted set whose members all share score 0, so Redis
// orders them lexicographically by event ID; range scans use ZRANGEBYLEX.
// Writes go through a Lua script that checks for duplicates and writes the
// record, the index entry and the idempotency binding in one step.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/catcher"
	catcherstore "github.com/xraph/catcher/store"
)

// compile-time interface check
var _ catcherstore.Store = (*Store)(nil)

// Store implements store.Store using Redis.
type Store struct {
	rdb  goredis.UniversalClient
	keys keys
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces the store's keys, letting several deployments
// share one Redis.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keys.prefix = prefix }
}

// New creates a Redis store on an existing client. The store owns the
// client and closes it on Close.
func New(rdb goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb, keys: keys{prefix: DefaultKeyPrefix}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open parses a redis:// URL and connects.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	o, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("catcher/redis: parse url: %w", err)
	}
	s := New(goredis.NewClient(o), opts...)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate is a no-op for Redis (no schema migrations needed).
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// unavailable wraps a Redis failure, mapping a closed client to ErrStoreClosed.
func unavailable(op string, err error) error {
	if err == goredis.ErrClosed { //nolint:errorlint // go-redis returns the sentinel unwrapped.
		return catcher.ErrStoreClosed
	}
	return fmt.Errorf("%w: redis: %s: %w", catcher.ErrStoreUnavailable, op, err)
}
