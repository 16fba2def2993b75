package catcher

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/catcher/bus"
	"github.com/xraph/catcher/observability"
	"github.com/xraph/catcher/store"
)

// Option configures a Catcher instance.
type Option func(*Catcher) error

// WithStore sets the persistence backend for the Catcher instance.
func WithStore(s store.Store) Option {
	return func(c *Catcher) error {
		c.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Catcher instance.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catcher) error {
		if logger == nil {
			return errors.New("catcher: nil logger")
		}
		c.logger = logger
		return nil
	}
}

// WithConfig replaces the whole configuration. Options applied after it
// override individual fields.
func WithConfig(cfg Config) Option {
	return func(c *Catcher) error {
		c.config = cfg
		return nil
	}
}

// WithCursorSecret sets the secret continuation tokens are signed with.
func WithCursorSecret(secret string) Option {
	return func(c *Catcher) error {
		c.config.CursorSecret = secret
		return nil
	}
}

// WithConfirmTimeout bounds the subscription confirmation callback.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Catcher) error {
		c.config.ConfirmTimeout = d
		return nil
	}
}

// WithHTTPClient sets the client used for confirmation callbacks. It takes
// precedence over WithConfirmTimeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Catcher) error {
		c.httpClient = client
		return nil
	}
}

// WithPageSizes sets the default and maximum list page sizes.
func WithPageSizes(defaultSize, maxSize int) Option {
	return func(c *Catcher) error {
		if defaultSize <= 0 || maxSize <= 0 || defaultSize > maxSize {
			return errors.New("catcher: page sizes must satisfy 0 < default <= max")
		}
		c.config.DefaultPageSize = defaultSize
		c.config.MaxPageSize = maxSize
		return nil
	}
}

// WithMaxPayloadBytes sets the largest accepted event payload.
func WithMaxPayloadBytes(n int64) Option {
	return func(c *Catcher) error {
		c.config.MaxPayloadBytes = n
		return nil
	}
}

// WithRateLimit limits ingest per tenant to perSecond events with the given
// burst. A zero rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Catcher) error {
		c.config.RateLimit = perSecond
		c.config.RateBurst = burst
		return nil
	}
}

// WithSchema requires payloads sent to targets matching pattern to satisfy
// the given JSON Schema.
func WithSchema(pattern, schema string) Option {
	return func(c *Catcher) error {
		if c.config.Schemas == nil {
			c.config.Schemas = make(map[string]string)
		}
		c.config.Schemas[pattern] = schema
		return nil
	}
}

// WithBus sets the bus committed events are published to.
func WithBus(b bus.EventBus) Option {
	return func(c *Catcher) error {
		c.bus = b
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Catcher) error {
		c.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Catcher) error {
		c.tracer = t
		return nil
	}
}
