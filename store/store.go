// Package store defines the composite Store interface for Catcher persistence.
//
// Each subsystem defines its own store interface and the aggregate Store
// composes them with lifecycle methods. Backends live in sub-packages.
package store

import (
	"context"

	"github.com/xraph/catcher/event"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store

	// Migrate prepares the backend's schema. Backends without one no-op.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
