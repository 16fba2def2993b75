// Package storetest provides a conformance suite every Store backend runs.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	"github.com/xraph/catcher/store"
)

// Factory returns a fresh, migrated, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

var (
	orders  = event.Stream{TenantID: "T1", Target: "orders"}
	billing = event.Stream{TenantID: "T1", Target: "billing"}
	other   = event.Stream{TenantID: "T2", Target: "orders"}
)

// NewEvent builds an unsaved event on stream.
func NewEvent(stream event.Stream, payload string) *event.Event {
	return &event.Event{
		TenantID:    stream.TenantID,
		ID:          id.NewEventID(),
		Target:      stream.Target,
		Payload:     []byte(payload),
		ContentType: "application/json",
		ReceivedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Lifecycle", testLifecycle},
		{"PutGet", testPutGet},
		{"BinaryPayload", testBinaryPayload},
		{"GetNotFound", testGetNotFound},
		{"DuplicateID", testDuplicateID},
		{"IdempotencyKey", testIdempotencyKey},
		{"ScanOrder", testScanOrder},
		{"ScanStreamIsolation", testScanStreamIsolation},
		{"ScanEmpty", testScanEmpty},
		{"ConcurrentPuts", testConcurrentPuts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func mustPut(t *testing.T, s store.Store, evt *event.Event) {
	t.Helper()
	if err := s.PutEvent(context.Background(), evt); err != nil {
		t.Fatalf("PutEvent: %v", err)
	}
}

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate should be repeatable: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}

func testPutGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	evt := NewEvent(orders, `{"sku":"A1"}`)
	evt.IdempotencyKey = "k-1"
	mustPut(t, s, evt)

	got, err := s.GetEvent(ctx, orders, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != evt.ID.String() || got.TenantID != "T1" || got.Target != "orders" {
		t.Fatalf("unexpected event %+v", got)
	}
	if !bytes.Equal(got.Payload, evt.Payload) {
		t.Fatalf("payload = %q, want %q", got.Payload, evt.Payload)
	}
	if got.ContentType != evt.ContentType || got.IdempotencyKey != "k-1" {
		t.Fatalf("metadata not preserved: %+v", got)
	}
	if !got.ReceivedAt.Equal(evt.ReceivedAt) {
		t.Fatalf("receivedAt = %v, want %v", got.ReceivedAt, evt.ReceivedAt)
	}
}

func testBinaryPayload(t *testing.T, s store.Store) {
	evt := NewEvent(orders, "")
	evt.Payload = []byte{0x00, 0xff, 0xfe, 0x7f}
	mustPut(t, s, evt)

	got, err := s.GetEvent(context.Background(), orders, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Payload, evt.Payload) {
		t.Fatalf("payload = %v, want %v", got.Payload, evt.Payload)
	}
}

func testGetNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()
	evt := NewEvent(orders, `{}`)
	mustPut(t, s, evt)

	if _, err := s.GetEvent(ctx, orders, id.NewEventID()); !errors.Is(err, catcher.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
	if _, err := s.GetEvent(ctx, other, evt.ID); !errors.Is(err, catcher.ErrEventNotFound) {
		t.Fatalf("event must not be visible on another stream, got %v", err)
	}
	if _, err := s.GetEventByIdempotencyKey(ctx, orders, "missing"); !errors.Is(err, catcher.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func testDuplicateID(t *testing.T, s store.Store) {
	evt := NewEvent(orders, `{"n":1}`)
	mustPut(t, s, evt)

	again := *evt
	again.Payload = []byte(`{"n":2}`)
	if err := s.PutEvent(context.Background(), &again); !errors.Is(err, catcher.ErrDuplicateEvent) {
		t.Fatalf("expected ErrDuplicateEvent, got %v", err)
	}

	got, err := s.GetEvent(context.Background(), orders, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != `{"n":1}` {
		t.Fatalf("stored record was overwritten: %s", got.Payload)
	}
}

func testIdempotencyKey(t *testing.T, s store.Store) {
	ctx := context.Background()

	first := NewEvent(orders, `{"n":1}`)
	first.IdempotencyKey = "msg-1"
	mustPut(t, s, first)

	second := NewEvent(orders, `{"n":1}`)
	second.IdempotencyKey = "msg-1"
	if err := s.PutEvent(ctx, second); !errors.Is(err, catcher.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}
	if _, err := s.GetEvent(ctx, orders, second.ID); !errors.Is(err, catcher.ErrEventNotFound) {
		t.Fatalf("rejected duplicate must not be stored, got %v", err)
	}

	got, err := s.GetEventByIdempotencyKey(ctx, orders, "msg-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID.String() != first.ID.String() {
		t.Fatalf("key bound to %s, want %s", got.ID, first.ID)
	}

	// Keys are scoped per stream.
	elsewhere := NewEvent(billing, `{}`)
	elsewhere.IdempotencyKey = "msg-1"
	mustPut(t, s, elsewhere)

	events, err := s.ScanEvents(ctx, orders, event.ScanOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one stored event, got %d", len(events))
	}
}

func testScanOrder(t *testing.T, s store.Store) {
	ctx := context.Background()

	want := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		evt := NewEvent(orders, fmt.Sprintf(`{"n":%d}`, i))
		mustPut(t, s, evt)
		want = append(want, evt.ID.String())
	}

	all, err := s.ScanEvents(ctx, orders, event.ScanOpts{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(all); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("scan order:\n got %v\nwant %v", got, want)
	}

	head, err := s.ScanEvents(ctx, orders, event.ScanOpts{Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ids(head)) != fmt.Sprint(want[:3]) {
		t.Fatalf("limit not honored: %v", ids(head))
	}

	tail, err := s.ScanEvents(ctx, orders, event.ScanOpts{After: want[2], Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(ids(tail)) != fmt.Sprint(want[3:6]) {
		t.Fatalf("after must be exclusive: got %v, want %v", ids(tail), want[3:6])
	}

	end, err := s.ScanEvents(ctx, orders, event.ScanOpts{After: want[6], Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(end) != 0 {
		t.Fatalf("expected nothing after the last event, got %v", ids(end))
	}
}

func testScanStreamIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustPut(t, s, NewEvent(orders, `{}`))
	mustPut(t, s, NewEvent(billing, `{}`))
	mustPut(t, s, NewEvent(other, `{}`))
	// A target sharing a prefix with another must not leak into its scans.
	mustPut(t, s, NewEvent(event.Stream{TenantID: "T1", Target: "orders2"}, `{}`))

	for _, str := range []event.Stream{orders, billing, other} {
		got, err := s.ScanEvents(ctx, str, event.ScanOpts{Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("%s: expected 1 event, got %d", str, len(got))
		}
		if got[0].Stream() != str {
			t.Fatalf("%s: scan returned event of %s", str, got[0].Stream())
		}
	}
}

func testScanEmpty(t *testing.T, s store.Store) {
	got, err := s.ScanEvents(context.Background(), orders, event.ScanOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty scan, got %d", len(got))
	}
}

func testConcurrentPuts(t *testing.T, s store.Store) {
	const workers, perWorker = 8, 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := s.PutEvent(context.Background(), NewEvent(orders, `{}`)); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent put: %v", err)
	}

	got, err := s.ScanEvents(context.Background(), orders, event.ScanOpts{Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != workers*perWorker {
		t.Fatalf("expected %d events, got %d", workers*perWorker, len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].ID.Less(got[i].ID) {
			t.Fatalf("scan not strictly ascending at %d", i)
		}
	}
}

func ids(events []*event.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID.String()
	}
	return out
}
