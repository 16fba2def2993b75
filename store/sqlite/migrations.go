package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one forward-only schema change.
type migration struct {
	Name    string
	Version string
	Up      string
}

// migrations is applied in order; applied versions are recorded in
// catcher_migrations.
var migrations = []migration{
	{
		Name:    "create_catcher_events",
		Version: "20260101000001",
		Up: `
CREATE TABLE IF NOT EXISTS catcher_events (
    tenant_id       TEXT NOT NULL,
    target          TEXT NOT NULL,
    event_id        TEXT NOT NULL,
    payload         BLOB NOT NULL,
    content_type    TEXT NOT NULL DEFAULT '',
    idempotency_key TEXT NOT NULL DEFAULT '',
    received_at     TEXT NOT NULL,
    PRIMARY KEY (tenant_id, target, event_id)
) WITHOUT ROWID;
`,
	},
	{
		Name:    "create_catcher_events_idempotency_index",
		Version: "20260101000002",
		Up: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_catcher_events_idem
    ON catcher_events (tenant_id, target, idempotency_key)
    WHERE idempotency_key != '';
`,
	},
}

const migrationsTable = `
CREATE TABLE IF NOT EXISTS catcher_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TEXT NOT NULL DEFAULT (datetime('now'))
);`

// migrate applies pending migrations, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM catcher_migrations WHERE version = ?`, m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}
		if applied > 0 {
			continue
		}

		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catcher_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name,
	); err != nil {
		return err
	}
	return tx.Commit()
}
