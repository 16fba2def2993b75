package catcher

import (
	"time"

	"github.com/xraph/catcher/page"
)

// Config holds the configuration for a Catcher instance.
type Config struct {
	// CursorSecret signs continuation tokens. Tokens only verify against the
	// secret that issued them, so every replica must share it. When empty a
	// random secret is generated and tokens do not survive a restart.
	CursorSecret string

	// ConfirmTimeout bounds the subscription confirmation callback.
	ConfirmTimeout time.Duration

	// DefaultPageSize is used when a list request names no page size.
	DefaultPageSize int

	// MaxPageSize caps page sizes; larger requests are clamped.
	MaxPageSize int

	// MaxPayloadBytes is the largest accepted event payload.
	MaxPayloadBytes int64

	// RateLimit is the sustained ingest rate allowed per tenant, in events
	// per second. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the number of events a tenant may send at once.
	RateBurst int

	// SubscriberBuffer is the per-subscriber live event buffer.
	SubscriberBuffer int

	// Schemas maps target patterns to JSON Schema documents that payloads
	// sent to matching targets must satisfy.
	Schemas map[string]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfirmTimeout:   10 * time.Second,
		DefaultPageSize:  page.DefaultPageSize,
		MaxPageSize:      page.MaxPageSize,
		MaxPayloadBytes:  1 << 20,
		SubscriberBuffer: 256,
	}
}
