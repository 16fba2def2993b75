package id

import (
	"encoding/json"
	"sort"
	"sync"
	"testing"
)

func TestNewEventID_Format(t *testing.T) {
	eid := NewEventID()

	if eid.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if eid.Prefix() != PrefixEvent {
		t.Fatalf("expected prefix %q, got %q", PrefixEvent, eid.Prefix())
	}
	if got := len(eid.String()); got != EventIDLen {
		t.Fatalf("expected length %d, got %d (%s)", EventIDLen, got, eid)
	}
}

func TestNewEventID_UniqueUnderConcurrency(t *testing.T) {
	const workers, perWorker = 16, 250

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, NewEventID().String())
			}
			mu.Lock()
			for _, s := range local {
				seen[s] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d distinct IDs, got %d", workers*perWorker, len(seen))
	}
}

func TestNewEventID_SortsByCreation(t *testing.T) {
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = NewEventID().String()
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("sequentially generated IDs should be sorted")
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("id %d (%s) does not sort after id %d (%s)", i, ids[i], i-1, ids[i-1])
		}
	}
}

func TestNewEventID_StrictlyIncreasingAtVolume(t *testing.T) {
	const n = 200_000

	prev := NewEventID().String()
	for i := 1; i < n; i++ {
		cur := NewEventID().String()
		if cur <= prev {
			t.Fatalf("id %d (%s) does not sort after its predecessor (%s)", i, cur, prev)
		}
		prev = cur
	}
}

func TestNewEventID_StrictlyIncreasingAcrossGoroutines(t *testing.T) {
	const workers, perWorker = 8, 5000

	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prev := ""
			for i := 0; i < perWorker; i++ {
				cur := NewEventID().String()
				if cur <= prev {
					errs <- cur + " <= " + prev
					return
				}
				prev = cur
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatalf("per-goroutine order violated: %s", e)
	}
}

func TestParseEventID(t *testing.T) {
	eid := NewEventID()

	parsed, err := ParseEventID(eid.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.String() != eid.String() {
		t.Fatalf("expected %s, got %s", eid, parsed)
	}

	if _, err := ParseEventID(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := ParseEventID("not-an-id"); err == nil {
		t.Fatal("expected error for garbage")
	}
	if _, err := ParseEventID(New("other").String()); err == nil {
		t.Fatal("expected error for wrong prefix")
	}
}

func TestID_JSON(t *testing.T) {
	type wrapper struct {
		ID ID `json:"id"`
	}

	in := wrapper{ID: NewEventID()}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	var out wrapper
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID.String() != in.ID.String() {
		t.Fatalf("expected %s, got %s", in.ID, out.ID)
	}

	var empty wrapper
	if err := json.Unmarshal([]byte(`{"id":""}`), &empty); err != nil {
		t.Fatal(err)
	}
	if !empty.ID.IsNil() {
		t.Fatal("expected Nil for empty string")
	}
}

func TestID_Scan(t *testing.T) {
	eid := NewEventID()

	var fromString ID
	if err := fromString.Scan(eid.String()); err != nil {
		t.Fatal(err)
	}
	var fromBytes ID
	if err := fromBytes.Scan([]byte(eid.String())); err != nil {
		t.Fatal(err)
	}
	if fromString.String() != eid.String() || fromBytes.String() != eid.String() {
		t.Fatal("scan did not round-trip")
	}

	var fromNil ID
	if err := fromNil.Scan(nil); err != nil || !fromNil.IsNil() {
		t.Fatalf("expected Nil, got %v (%v)", fromNil, err)
	}
	if err := fromNil.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
