package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
)

func newEvent(tenant, target string) *event.Event {
	return &event.Event{
		TenantID: tenant,
		ID:       id.NewEventID(),
		Target:   target,
		Payload:  []byte(`{}`),
	}
}

var orders = event.Stream{TenantID: "T1", Target: "orders"}

func TestMemBus_PublishSubscribe(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub := b.Subscribe(orders)
	defer sub.Close()

	evt := newEvent("T1", "orders")
	b.Publish(evt)

	select {
	case received := <-sub.Events():
		if received.ID != evt.ID {
			t.Errorf("got %s, want %s", received.ID, evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemBus_FanOut(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	subs := []Subscription{b.Subscribe(orders), b.Subscribe(orders), b.Subscribe(orders)}
	for _, s := range subs {
		defer s.Close()
	}

	b.Publish(newEvent("T1", "orders"))

	for i, sub := range subs {
		select {
		case <-sub.Events():
		case <-time.After(time.Second):
			t.Fatalf("sub%d: timed out", i)
		}
	}
}

func TestMemBus_StreamIsolation(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub := b.Subscribe(orders)
	defer sub.Close()

	b.Publish(newEvent("T2", "orders"))
	b.Publish(newEvent("T1", "billing"))

	select {
	case e := <-sub.Events():
		t.Fatalf("received event from another stream: %s", e.Stream())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemBus_CloseUnsubscribes(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	defer b.Close()

	sub := b.Subscribe(orders)
	if b.Subscribers(orders) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.Subscribers(orders))
	}
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
	if b.Subscribers(orders) != 0 {
		t.Fatalf("expected subscription to be removed, got %d", b.Subscribers(orders))
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel")
	}

	// Double close is harmless.
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
	b.Publish(newEvent("T1", "orders"))
}

func TestMemBus_SlowSubscriberDrops(t *testing.T) {
	b := NewMemBus(MemBusConfig{SubscriberBufferSize: 2})
	defer b.Close()

	sub := b.Subscribe(orders)
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish(newEvent("T1", "orders"))
	}

	if got := sub.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped, got %d", got)
	}
	if got := len(sub.Events()); got != 2 {
		t.Fatalf("expected 2 buffered, got %d", got)
	}
}

func TestMemBus_CloseBus(t *testing.T) {
	b := NewMemBus(MemBusConfig{})
	sub := b.Subscribe(orders)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected subscription closed with the bus")
	}

	late := b.Subscribe(orders)
	if _, ok := <-late.Events(); ok {
		t.Fatal("expected subscription on closed bus to be closed")
	}
	b.Publish(newEvent("T1", "orders"))
	_ = sub.Close()
}

func TestMemBus_ConcurrentPublish(t *testing.T) {
	b := NewMemBus(MemBusConfig{SubscriberBufferSize: 1000})
	defer b.Close()

	sub := b.Subscribe(orders)
	defer sub.Close()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Publish(newEvent("T1", "orders"))
			}
		}()
	}
	wg.Wait()

	if got := len(sub.Events()); got != 500 {
		t.Fatalf("expected 500 events, got %d", got)
	}
}
