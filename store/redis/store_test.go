package redis

import (
	"context"
	"os"
	"strings"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	"github.com/xraph/catcher/store"
	"github.com/xraph/catcher/store/storetest"
)

// newTestStore connects to CATCHER_TEST_REDIS_ADDR under a fresh key prefix.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("CATCHER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CATCHER_TEST_REDIS_ADDR not set")
	}

	prefix := "catcher-test-" + id.NewEventID().String()
	s := New(goredis.NewClient(&goredis.Options{Addr: addr}), WithKeyPrefix(prefix))
	if err := s.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		rdb := goredis.NewClient(&goredis.Options{Addr: addr})
		defer rdb.Close()
		iter := rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
		for iter.Next(ctx) {
			rdb.Del(ctx, iter.Val())
		}
	})
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestKeysShareHashTag(t *testing.T) {
	k := keys{prefix: DefaultKeyPrefix}
	str := event.Stream{TenantID: "T1", Target: "orders"}

	want := "{T1:orders}"
	for _, key := range []string{k.event(str, "evt_x"), k.stream(str), k.idem(str, "msg-1")} {
		if !strings.Contains(key, want) {
			t.Fatalf("key %q lacks hash tag %q", key, want)
		}
	}
	if k.event(str, "evt_x") != "catcher:evt:{T1:orders}:evt_x" {
		t.Fatalf("unexpected event key %q", k.event(str, "evt_x"))
	}
}
