package catcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/xraph/catcher/bus"
	"github.com/xraph/catcher/catalog"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	"github.com/xraph/catcher/inbound"
	"github.com/xraph/catcher/observability"
	"github.com/xraph/catcher/page"
	"github.com/xraph/catcher/ratelimit"
	"github.com/xraph/catcher/signature"
	"github.com/xraph/catcher/store"
)

// Catcher is the root capture-and-relay engine. All shared state is
// constructed once in New and injected; a Catcher is safe for concurrent use.
type Catcher struct {
	config     Config
	store      store.Store
	bus        bus.EventBus
	catalog    *catalog.Catalog
	confirmer  *inbound.Confirmer
	pager      *page.Pager
	limiter    *ratelimit.Limiter
	httpClient *http.Client
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     *slog.Logger
}

// New creates a new Catcher with the given options.
func New(opts ...Option) (*Catcher, error) {
	c := &Catcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	if err := c.wireServices(); err != nil {
		return nil, err
	}
	return c, nil
}

// wireServices initializes the internal services after options have been applied.
func (c *Catcher) wireServices() error {
	if c.config.CursorSecret == "" {
		c.config.CursorSecret = signature.GenerateSecret()
		c.logger.Warn("no cursor secret configured; continuation tokens will not survive a restart")
	}
	c.pager = page.NewPager(c.config.CursorSecret, c.config.DefaultPageSize, c.config.MaxPageSize)

	c.catalog = catalog.NewCatalog(c.logger)
	for pattern, schema := range c.config.Schemas {
		if err := c.catalog.Register(pattern, schema); err != nil {
			return err
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.config.ConfirmTimeout}
	}
	c.confirmer = inbound.NewConfirmerWithClient(c.httpClient, c.logger)

	c.limiter = ratelimit.New(c.config.RateLimit, c.config.RateBurst)

	if c.bus == nil {
		c.bus = bus.NewMemBus(bus.MemBusConfig{SubscriberBufferSize: c.config.SubscriberBuffer})
	}
	if c.tracer == nil {
		c.tracer = observability.NewTracer()
	}
	return nil
}

// RelayInput is one event to record.
type RelayInput struct {
	TenantID       string
	Target         string
	Payload        []byte
	ContentType    string
	IdempotencyKey string
}

// Relay validates, identifies and durably records one event, then publishes
// it to live subscribers. It returns the record as read back from the store.
//
// A relay that reached the store is never abandoned because the caller went
// away: the write runs detached from ctx's cancellation. When the input
// carries an idempotency key already bound on the stream, the originally
// recorded event is returned and nothing new is written.
func (c *Catcher) Relay(ctx context.Context, in RelayInput) (*event.Event, error) {
	start := time.Now()
	str := event.Stream{TenantID: in.TenantID, Target: in.Target}

	evt, outcome, err := c.relay(ctx, str, in)
	if c.metrics != nil {
		c.metrics.RecordRelay(outcome, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return evt, nil
}

func (c *Catcher) relay(ctx context.Context, str event.Stream, in RelayInput) (*event.Event, string, error) {
	if err := str.Validate(); err != nil {
		return nil, observability.OutcomeInvalid, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}
	if c.config.MaxPayloadBytes > 0 && int64(len(in.Payload)) > c.config.MaxPayloadBytes {
		return nil, observability.OutcomeInvalid, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			ErrInvalidPayload, len(in.Payload), c.config.MaxPayloadBytes)
	}
	if err := c.catalog.Validate(str.Target, in.Payload); err != nil {
		return nil, observability.OutcomeInvalid, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	// Rejected input never spends a tenant's allowance.
	if !c.limiter.Allow(str.TenantID) {
		return nil, observability.OutcomeRateLimited, fmt.Errorf("%w: tenant %s", ErrRateLimited, str.TenantID)
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := c.tracer.StartRelaySpan(ctx, str.TenantID, str.Target)

	payload := in.Payload
	if payload == nil {
		payload = []byte{}
	}
	evt := &event.Event{
		TenantID:       str.TenantID,
		ID:             id.NewEventID(),
		Target:         str.Target,
		Payload:        payload,
		ContentType:    in.ContentType,
		IdempotencyKey: in.IdempotencyKey,
		ReceivedAt:     time.Now().UTC(),
	}

	if err := c.store.PutEvent(ctx, evt); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			orig, dupErr := c.original(ctx, str, in.IdempotencyKey)
			c.tracer.EndSpan(span, dupErr, attribute.Bool("catcher.duplicate", true))
			if dupErr != nil {
				return nil, observability.OutcomeFailed, dupErr
			}
			c.logger.InfoContext(ctx, "duplicate event suppressed",
				"tenant_id", str.TenantID,
				"target", str.Target,
				"event_id", orig.ID,
				"idempotency_key", in.IdempotencyKey,
			)
			return orig, observability.OutcomeDuplicate, nil
		}

		err = storeErr("persist event", err)
		c.tracer.EndSpan(span, err)
		c.logger.ErrorContext(ctx, "relay failed",
			"tenant_id", str.TenantID,
			"target", str.Target,
			"event_id", evt.ID,
			"error", err,
		)
		return nil, observability.OutcomeFailed, err
	}

	stored, err := c.store.GetEvent(ctx, str, evt.ID)
	if err != nil {
		// The write is durable; answer with what was written.
		c.logger.WarnContext(ctx, "read-back after relay failed",
			"event_id", evt.ID,
			"error", err,
		)
		stored = evt
	}

	c.bus.Publish(stored)
	c.tracer.EndSpan(span, nil, attribute.String("catcher.event_id", stored.ID.String()))

	c.logger.DebugContext(ctx, "event relayed",
		"tenant_id", str.TenantID,
		"target", str.Target,
		"event_id", stored.ID,
		"bytes", len(stored.Payload),
	)
	return stored, observability.OutcomeStored, nil
}

// original returns the event an idempotency key is already bound to.
func (c *Catcher) original(ctx context.Context, str event.Stream, key string) (*event.Event, error) {
	orig, err := c.store.GetEventByIdempotencyKey(ctx, str, key)
	if err != nil {
		// A binding that is not readable yet belongs to a concurrent write
		// still in flight; the caller may retry.
		return nil, storeErr("resolve idempotency key", err)
	}
	return orig, nil
}

// Confirm completes a subscription handshake for a stream. Only a malformed
// body is an error; callback failures are logged, counted and reported in
// the result.
func (c *Catcher) Confirm(ctx context.Context, tenantID, target string, body []byte) (inbound.Result, error) {
	ctx, span := c.tracer.StartConfirmSpan(ctx, tenantID, target)

	res, err := c.confirmer.Confirm(ctx, body)
	if err != nil {
		c.tracer.EndSpan(span, err)
		if c.metrics != nil {
			c.metrics.RecordHandshake(observability.HandshakeMalformed)
		}
		return inbound.Result{}, err
	}

	var cbErr error
	outcome := observability.HandshakeConfirmed
	if !res.OK() {
		outcome = observability.HandshakeFailed
		cbErr = errors.New(res.Error)
	}
	c.tracer.EndSpan(span, cbErr, attribute.Int("http.status_code", res.StatusCode))
	if c.metrics != nil {
		c.metrics.RecordHandshake(outcome)
	}
	return res, nil
}

// List returns one page of the collection named by collectionKey
// ("{tenantId}:{target}"). An empty token starts at the oldest event.
func (c *Catcher) List(ctx context.Context, collectionKey string, pageSize int, token string) (page.Page[*event.Event], error) {
	str, err := event.ParseStream(collectionKey)
	if err != nil {
		return page.Page[*event.Event]{}, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}
	return c.ListStream(ctx, str, pageSize, token)
}

// ListStream returns one page of a stream.
func (c *Catcher) ListStream(ctx context.Context, str event.Stream, pageSize int, token string) (page.Page[*event.Event], error) {
	if err := str.Validate(); err != nil {
		return page.Page[*event.Event]{}, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}

	ctx, span := c.tracer.StartListSpan(ctx, str.Key(), pageSize)
	pg, err := page.List[*event.Event](ctx, c.pager, c.source(str), str.Key(), pageSize, token)
	c.tracer.EndSpan(span, err, attribute.Int("catcher.items", len(pg.Items)))
	if c.metrics != nil {
		c.metrics.RecordPage(err)
	}
	return pg, err
}

// source adapts a stream's store scans to a page source.
func (c *Catcher) source(str event.Stream) page.Source[*event.Event] {
	return page.SourceFunc[*event.Event]{
		ScanFunc: func(ctx context.Context, after string, limit int) ([]*event.Event, error) {
			events, err := c.store.ScanEvents(ctx, str, event.ScanOpts{After: after, Limit: limit})
			if err != nil {
				return nil, storeErr("scan events", err)
			}
			return events, nil
		},
		KeyFunc: func(evt *event.Event) string { return evt.ID.String() },
	}
}

// Get returns one event of a stream.
func (c *Catcher) Get(ctx context.Context, str event.Stream, eventID string) (*event.Event, error) {
	if err := str.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}
	evtID, err := id.ParseEventID(eventID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventNotFound, err)
	}
	evt, err := c.store.GetEvent(ctx, str, evtID)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, err
		}
		return nil, storeErr("get event", err)
	}
	return evt, nil
}

// Since returns up to limit events of a stream recorded after the event
// with ID after, oldest first. An empty after starts at the beginning.
func (c *Catcher) Since(ctx context.Context, str event.Stream, after string, limit int) ([]*event.Event, error) {
	if err := str.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}
	events, err := c.store.ScanEvents(ctx, str, event.ScanOpts{After: after, Limit: limit})
	if err != nil {
		return nil, storeErr("scan events", err)
	}
	return events, nil
}

// Subscribe registers for events committed to a stream from now on.
// The subscription must be closed when done.
func (c *Catcher) Subscribe(str event.Stream) (bus.Subscription, error) {
	if err := str.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoute, err)
	}
	return c.bus.Subscribe(str), nil
}

// Ping checks the store.
func (c *Catcher) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Close shuts down live subscriptions. The store belongs to the caller and
// is left open.
func (c *Catcher) Close() error {
	return c.bus.Close()
}

// DefaultPageSize is the page size used when a list request names none.
func (c *Catcher) DefaultPageSize() int { return c.pager.DefaultSize() }

// MaxPayloadBytes is the largest accepted event payload.
func (c *Catcher) MaxPayloadBytes() int64 { return c.config.MaxPayloadBytes }

// Catalog returns the payload schema catalog.
func (c *Catcher) Catalog() *catalog.Catalog { return c.catalog }

// Metrics returns the metrics instruments, or nil when metrics are disabled.
func (c *Catcher) Metrics() *observability.Metrics { return c.metrics }

// Logger returns the configured logger.
func (c *Catcher) Logger() *slog.Logger { return c.logger }

// storeErr wraps a store failure as ErrStoreUnavailable, keeping the cause.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("catcher: %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
