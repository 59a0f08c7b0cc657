// Package sqlitestore owns the client's local SQLite connection and
// schema (A2). Mirrors internal/mysqlstore's "connect, ping, configure
// pool" idiom (itself grounded on the teacher's internal/db/pg.go), over
// modernc.org/sqlite — a pure-Go driver with no cgo dependency, chosen
// (per DESIGN.md's survey) as the fit for a headless client library used
// from tests and a CLI without a platform-specific build step.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

// Open creates the local SQLite database at path (or in-memory when path
// is ":memory:") and applies the schema. A single-connection pool is used
// because SQLite serializes writers anyway and the client driver already
// holds local mutation state in short single-statement transactions
// (spec §5).
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Msg("sqlite local store opened")
	return db, nil
}

// migrate applies the embedded schema; idempotent via IF NOT EXISTS.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";\n\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	_, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO sync_state (id) VALUES (1)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO settings (id) VALUES (1)`)
	return err
}
