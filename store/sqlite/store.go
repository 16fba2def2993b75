// Package sqlite provides a Store backed by SQLite (pure Go, modernc.org/sqlite).
//
// Events live in one table keyed by (tenant_id, target, event_id); the
// primary key doubles as the ordered index for stream scans. A partial
// unique index enforces idempotency keys per stream.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
	catcherstore "github.com/xraph/catcher/store"
)

// compile-time interface check
var _ catcherstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path with WAL journaling and a
// busy timeout. path may also be a full "file:" DSN, used verbatim.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("catcher/sqlite: open: %w", err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DSN builds a connection string for path with the pragmas the store needs.
func DSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(FULL)"
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := migrate(ctx, s.db); err != nil {
		return fmt.Errorf("catcher/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

const eventColumns = `tenant_id, target, event_id, payload, content_type, idempotency_key, received_at`

// PutEvent inserts the event in a single statement. Conflicts on either the
// primary key or the idempotency index leave the table unchanged.
func (s *Store) PutEvent(ctx context.Context, evt *event.Event) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO catcher_events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		evt.TenantID,
		evt.Target,
		evt.ID.String(),
		payloadBytes(evt.Payload),
		evt.ContentType,
		evt.IdempotencyKey,
		evt.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return classify("put event", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classify("put event", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing inserted: work out which constraint held.
	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catcher_events WHERE tenant_id = ? AND target = ? AND event_id = ?`,
		evt.TenantID, evt.Target, evt.ID.String(),
	).Scan(&exists)
	if err != nil {
		return classify("put event", err)
	}
	if exists > 0 {
		return catcher.ErrDuplicateEvent
	}
	return catcher.ErrDuplicateIdempotencyKey
}

// GetEvent returns an event by stream and ID.
func (s *Store) GetEvent(ctx context.Context, str event.Stream, evtID id.ID) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM catcher_events
		 WHERE tenant_id = ? AND target = ? AND event_id = ?`,
		str.TenantID, str.Target, evtID.String(),
	)
	return scanOne(row)
}

// GetEventByIdempotencyKey returns the event an idempotency key is bound to.
func (s *Store) GetEventByIdempotencyKey(ctx context.Context, str event.Stream, key string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM catcher_events
		 WHERE tenant_id = ? AND target = ? AND idempotency_key = ? AND idempotency_key != ''`,
		str.TenantID, str.Target, key,
	)
	return scanOne(row)
}

// ScanEvents returns a stream's events after opts.After in ID order.
func (s *Store) ScanEvents(ctx context.Context, str event.Stream, opts event.ScanOpts) ([]*event.Event, error) {
	if opts.Limit <= 0 {
		return []*event.Event{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM catcher_events
		 WHERE tenant_id = ? AND target = ? AND event_id > ?
		 ORDER BY event_id ASC
		 LIMIT ?`,
		str.TenantID, str.Target, opts.After, opts.Limit,
	)
	if err != nil {
		return nil, classify("scan events", err)
	}
	defer rows.Close()

	result := make([]*event.Event, 0, opts.Limit)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("scan events", err)
	}
	return result, nil
}

// ==================== Helpers ====================

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*event.Event, error) {
	evt, err := scanEvent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, catcher.ErrEventNotFound
		}
		return nil, err
	}
	return evt, nil
}

func scanEvent(sc scanner) (*event.Event, error) {
	var (
		evt        event.Event
		receivedAt string
	)
	err := sc.Scan(
		&evt.TenantID,
		&evt.Target,
		&evt.ID,
		&evt.Payload,
		&evt.ContentType,
		&evt.IdempotencyKey,
		&receivedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, classify("scan row", err)
	}
	evt.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("catcher/sqlite: parse received_at %q: %w", receivedAt, err)
	}
	return &evt, nil
}

// payloadBytes keeps empty payloads from being stored as NULL.
func payloadBytes(p []byte) []byte {
	if p == nil {
		return []byte{}
	}
	return p
}

// classify maps a closed database to ErrStoreClosed and anything else to
// ErrStoreUnavailable.
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "sql: database is closed") {
		return catcher.ErrStoreClosed
	}
	return fmt.Errorf("%w: sqlite: %s: %w", catcher.ErrStoreUnavailable, op, err)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
