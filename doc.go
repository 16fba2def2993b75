// Package catcher provides an event capture-and-relay gateway for Go.
//
// Catcher accepts webhook-style callbacks addressed to a tenant and a named
// target stream, records each one durably under a unique, time-ordered
// event ID, and serves the recorded streams through cursor-paginated reads
// and live subscriptions.
//
// One inbound URL speaks two protocols. Requests carrying the SNS
// SubscriptionConfirmation message type complete the subscription handshake
// with a single best-effort callback; everything else is ingested as an
// opaque payload.
//
// Key features:
//   - K-sortable TypeID event IDs, unique without coordination
//   - Atomic single-write persistence with per-stream idempotency keys
//   - Composable store pattern with multiple backends (Pebble, SQLite, Redis, Memory)
//   - Signed, collection-bound continuation tokens
//   - Optional JSON Schema validation per target
//   - Per-tenant rate limiting
//
// Quick start:
//
//	c, err := catcher.New(
//	    catcher.WithStore(memory.New()),
//	    catcher.WithCursorSecret(os.Getenv("CATCHER_CURSOR_SECRET")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	evt, err := c.Relay(ctx, catcher.RelayInput{
//	    TenantID: "T1",
//	    Target:   "orders",
//	    Payload:  []byte(`{"sku":"A1"}`),
//	})
//
//	pg, err := c.List(ctx, "T1:orders", 25, "")
package catcher
