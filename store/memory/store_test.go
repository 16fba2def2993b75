package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	"github.com/xraph/catcher/store"
	"github.com/xraph/catcher/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestClosedStore(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	str := event.Stream{TenantID: "T1", Target: "orders"}

	if err := s.Ping(ctx); !errors.Is(err, catcher.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.PutEvent(ctx, storetest.NewEvent(str, `{}`)); !errors.Is(err, catcher.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.GetEvent(ctx, str, id.NewEventID()); !errors.Is(err, catcher.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if _, err := s.ScanEvents(ctx, str, event.ScanOpts{Limit: 1}); !errors.Is(err, catcher.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

func TestReturnedEventsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	str := event.Stream{TenantID: "T1", Target: "orders"}

	evt := storetest.NewEvent(str, `{"sku":"A1"}`)
	if err := s.PutEvent(ctx, evt); err != nil {
		t.Fatal(err)
	}
	evt.Payload[0] = 'X'

	got, err := s.GetEvent(ctx, str, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != `{"sku":"A1"}` {
		t.Fatalf("stored payload aliased caller's slice: %s", got.Payload)
	}
}
