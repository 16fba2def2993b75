// Package config loads the settings of a Catcher server from a YAML file and
// CATCHER_* environment variables, and turns them into catcher options and
// a store backend.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/catcher"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CATCHER_"

// File is the on-disk configuration of a Catcher server.
type File struct {
	Server  Server  `yaml:"server"`
	Store   Store   `yaml:"store"`
	Log     Log     `yaml:"log"`
	Catcher Catcher `yaml:"catcher"`
}

// Server holds HTTP listener settings.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MetricsAddr serves /metrics on a separate listener when set;
	// otherwise metrics share Addr.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Store selects and locates the event store.
type Store struct {
	// Backend is one of memory, pebble, sqlite or redis.
	Backend string `yaml:"backend"`

	// DSN is a directory for pebble, a file path for sqlite and a
	// redis:// URL for redis. Unused for memory.
	DSN string `yaml:"dsn"`

	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"key_prefix"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Catcher mirrors catcher.Config.
type Catcher struct {
	CursorSecret     string            `yaml:"cursor_secret"`
	ConfirmTimeout   time.Duration     `yaml:"confirm_timeout"`
	DefaultPageSize  int               `yaml:"default_page_size"`
	MaxPageSize      int               `yaml:"max_page_size"`
	MaxPayloadBytes  int64             `yaml:"max_payload_bytes"`
	RateLimit        float64           `yaml:"rate_limit"`
	RateBurst        int               `yaml:"rate_burst"`
	SubscriberBuffer int               `yaml:"subscriber_buffer"`
	Schemas          map[string]string `yaml:"schemas"`
}

// Default returns a File with sensible defaults.
func Default() File {
	core := catcher.DefaultConfig()
	return File{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: Store{Backend: BackendMemory},
		Log:   Log{Level: "info", Format: "json"},
		Catcher: Catcher{
			ConfirmTimeout:   core.ConfirmTimeout,
			DefaultPageSize:  core.DefaultPageSize,
			MaxPageSize:      core.MaxPageSize,
			MaxPayloadBytes:  core.MaxPayloadBytes,
			SubscriberBuffer: core.SubscriberBuffer,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged. Unknown keys are an error.
func Load(path string) (File, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	// #nosec G304 -- path comes from the operator.
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := cfg.decode(data); err != nil {
		return File{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (File, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return File{}, err
	}
	return cfg, nil
}

func (f *File) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from CATCHER_* variables found by lookup,
// typically os.LookupEnv.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &f.Server.Addr)
	str("METRICS_ADDR", &f.Server.MetricsAddr)
	dur("READ_TIMEOUT", &f.Server.ReadTimeout)
	dur("WRITE_TIMEOUT", &f.Server.WriteTimeout)
	dur("SHUTDOWN_TIMEOUT", &f.Server.ShutdownTimeout)

	str("STORE", &f.Store.Backend)
	str("STORE_DSN", &f.Store.DSN)
	str("STORE_KEY_PREFIX", &f.Store.KeyPrefix)

	str("LOG_LEVEL", &f.Log.Level)
	str("LOG_FORMAT", &f.Log.Format)

	str("CURSOR_SECRET", &f.Catcher.CursorSecret)
	dur("CONFIRM_TIMEOUT", &f.Catcher.ConfirmTimeout)
	num("DEFAULT_PAGE_SIZE", &f.Catcher.DefaultPageSize)
	num("MAX_PAGE_SIZE", &f.Catcher.MaxPageSize)
	num("RATE_BURST", &f.Catcher.RateBurst)
	num("SUBSCRIBER_BUFFER", &f.Catcher.SubscriberBuffer)

	if v, ok := lookup(EnvPrefix + "MAX_PAYLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_PAYLOAD_BYTES: %w", EnvPrefix, err))
		} else {
			f.Catcher.MaxPayloadBytes = n
		}
	}
	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err))
		} else {
			f.Catcher.RateLimit = r
		}
	}

	return errors.Join(errs...)
}

// Validate reports every inconsistent setting.
func (f File) Validate() error {
	var errs []error
	if f.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch f.Store.Backend {
	case BackendMemory:
	case BackendPebble, BackendSQLite, BackendRedis:
		if f.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s backend", f.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", f.Store.Backend))
	}
	if _, err := ParseLevel(f.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f.Log.Format != "json" && f.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", f.Log.Format))
	}
	c := f.Catcher
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, errors.New("page sizes must satisfy 0 < default_page_size <= max_page_size"))
	}
	if c.MaxPayloadBytes < 0 {
		errs = append(errs, errors.New("max_payload_bytes must not be negative"))
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateBurst <= 0) {
		errs = append(errs, errors.New("rate_limit must not be negative and needs a positive rate_burst"))
	}
	return errors.Join(errs...)
}

// Options converts the Catcher section into catcher options. The store and
// logger are supplied separately.
func (f File) Options() []catcher.Option {
	c := f.Catcher
	core := catcher.DefaultConfig()
	core.CursorSecret = c.CursorSecret
	core.DefaultPageSize = c.DefaultPageSize
	core.MaxPageSize = c.MaxPageSize
	core.MaxPayloadBytes = c.MaxPayloadBytes
	core.RateLimit = c.RateLimit
	core.RateBurst = c.RateBurst
	core.Schemas = c.Schemas
	if c.ConfirmTimeout > 0 {
		core.ConfirmTimeout = c.ConfirmTimeout
	}
	if c.SubscriberBuffer > 0 {
		core.SubscriberBuffer = c.SubscriberBuffer
	}

	return []catcher.Option{catcher.WithConfig(core)}
}
