package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/config"
	"github.com/xraph/catcher/store/memory"
)

func TestLoad_Empty(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Store.Backend != config.BackendMemory {
		t.Fatalf("expected memory backend, got %q", cfg.Store.Backend)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catcher.yaml")
	data := `
server:
  addr: ":9090"
  read_timeout: 5s
store:
  backend: sqlite
  dsn: /var/lib/catcher/events.db
log:
  level: debug
  format: text
catcher:
  cursor_secret: s3cret
  confirm_timeout: 3s
  default_page_size: 10
  max_page_size: 50
  rate_limit: 5
  rate_burst: 10
  schemas:
    "orders.*": '{"type":"object"}'
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Fatalf("expected unset fields to keep defaults, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Store.Backend != config.BackendSQLite || cfg.Store.DSN != "/var/lib/catcher/events.db" {
		t.Fatalf("unexpected store section %+v", cfg.Store)
	}
	if cfg.Catcher.ConfirmTimeout != 3*time.Second || cfg.Catcher.MaxPageSize != 50 {
		t.Fatalf("unexpected catcher section %+v", cfg.Catcher)
	}
	if cfg.Catcher.Schemas["orders.*"] != `{"type":"object"}` {
		t.Fatalf("unexpected schemas %v", cfg.Catcher.Schemas)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	if _, err := config.Parse([]byte("server:\n  adress: ':80'\n")); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CATCHER_ADDR":              ":7070",
		"CATCHER_STORE":             "redis",
		"CATCHER_STORE_DSN":         "redis://localhost:6379/0",
		"CATCHER_CURSOR_SECRET":     "from-env",
		"CATCHER_CONFIRM_TIMEOUT":   "2s",
		"CATCHER_MAX_PAGE_SIZE":     "40",
		"CATCHER_MAX_PAYLOAD_BYTES": "2048",
		"CATCHER_RATE_LIMIT":        "2.5",
		"CATCHER_RATE_BURST":        "5",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := config.Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7070" || cfg.Store.Backend != "redis" || cfg.Store.DSN != "redis://localhost:6379/0" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.Catcher.CursorSecret != "from-env" || cfg.Catcher.ConfirmTimeout != 2*time.Second {
		t.Fatalf("unexpected catcher overrides %+v", cfg.Catcher)
	}
	if cfg.Catcher.MaxPageSize != 40 || cfg.Catcher.MaxPayloadBytes != 2048 || cfg.Catcher.RateLimit != 2.5 {
		t.Fatalf("unexpected numeric overrides %+v", cfg.Catcher)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	env := map[string]string{
		"CATCHER_MAX_PAGE_SIZE":   "lots",
		"CATCHER_CONFIRM_TIMEOUT": "soon",
	}
	cfg := config.Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"CATCHER_MAX_PAGE_SIZE", "CATCHER_CONFIRM_TIMEOUT"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.File)
	}{
		{"no addr", func(f *config.File) { f.Server.Addr = "" }},
		{"unknown backend", func(f *config.File) { f.Store.Backend = "etcd" }},
		{"pebble without dsn", func(f *config.File) { f.Store.Backend = config.BackendPebble }},
		{"bad level", func(f *config.File) { f.Log.Level = "loud" }},
		{"bad format", func(f *config.File) { f.Log.Format = "xml" }},
		{"default above max", func(f *config.File) { f.Catcher.DefaultPageSize = 200 }},
		{"rate without burst", func(f *config.File) { f.Catcher.RateLimit = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Catcher.MaxPayloadBytes = 4
	cfg.Catcher.Schemas = map[string]string{"orders": `{"type":"object"}`}

	opts := append([]catcher.Option{catcher.WithStore(memory.New())}, cfg.Options()...)
	c, err := catcher.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.MaxPayloadBytes() != 4 {
		t.Fatalf("expected payload limit 4, got %d", c.MaxPayloadBytes())
	}
	if _, ok := c.Catalog().Lookup("orders"); !ok {
		t.Fatal("expected schema to be registered")
	}
	_, err = c.Relay(context.Background(), catcher.RelayInput{TenantID: "T1", Target: "orders", Payload: []byte(`{"a":1}`)})
	if !errors.Is(err, catcher.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestStoreOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, s := range []config.Store{
		{Backend: config.BackendMemory},
		{Backend: config.BackendPebble, DSN: filepath.Join(dir, "pebble")},
		{Backend: config.BackendSQLite, DSN: filepath.Join(dir, "events.db")},
	} {
		t.Run(s.Backend, func(t *testing.T) {
			st, err := s.Open(ctx)
			if err != nil {
				t.Fatal(err)
			}
			defer st.Close()
			if err := st.Ping(ctx); err != nil {
				t.Fatal(err)
			}
		})
	}

	if _, err := (config.Store{Backend: "etcd"}).Open(ctx); err == nil {
		t.Fatal("expected unknown backend error")
	}
}

func TestLogger(t *testing.T) {
	var sb strings.Builder
	config.Log{Level: "warn", Format: "json"}.Logger(&sb).Info("hidden")
	if sb.Len() != 0 {
		t.Fatal("info should be filtered at warn level")
	}
	config.Log{Level: "warn", Format: "json"}.Logger(&sb).Warn("shown")
	if !strings.Contains(sb.String(), `"msg":"shown"`) {
		t.Fatalf("unexpected output %q", sb.String())
	}
}
