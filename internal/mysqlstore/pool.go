// Package mysqlstore owns the server's MySQL connection pool and schema.
// The pool-tuning idiom (MaxOpenConns/MaxIdleConns/ConnMaxLifetime, ping on
// open) is grounded on the teacher's internal/db/pg.go, ported from
// pgxpool to database/sql + github.com/go-sql-driver/mysql because the
// spec is explicit that the server transaction is a MySQL transaction.
package mysqlstore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

// Config tunes the connection pool.
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig matches the teacher's postgres pool sizing.
var DefaultConfig = Config{
	MaxOpenConns:    20,
	MaxIdleConns:    2,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: 30 * time.Minute,
}

// Open creates a new MySQL connection pool and verifies connectivity.
func Open(ctx context.Context, dsn string, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("mysql connection pool created")

	return db, nil
}
