package config

import (
	"context"
	"fmt"

	"github.com/xraph/catcher/store"
	"github.com/xraph/catcher/store/memory"
	"github.com/xraph/catcher/store/pebble"
	"github.com/xraph/catcher/store/redis"
	"github.com/xraph/catcher/store/sqlite"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Open opens the configured store and applies its migrations. The caller
// owns the returned store and must close it.
func (s Store) Open(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch s.Backend {
	case BackendMemory, "":
		st = memory.New()
	case BackendPebble:
		st, err = pebble.Open(s.DSN)
	case BackendSQLite:
		st, err = sqlite.Open(s.DSN)
	case BackendRedis:
		var opts []redis.Option
		if s.KeyPrefix != "" {
			opts = append(opts, redis.WithKeyPrefix(s.KeyPrefix))
		}
		st, err = redis.Open(ctx, s.DSN, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", s.Backend, err)
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", s.Backend, err)
	}
	return st, nil
}
