// Package sqlkit defines the minimal database/sql surface the sync core
// depends on, so server-side packages (synclock, synctx, synchistory) can
// be exercised against an in-memory fake in tests without a live MySQL
// server — mirroring the teacher's habit of depending on a narrow
// interface (notes_service.go takes *pgxpool.Pool, but its methods are a
// small, mockable subset of the full client).
package sqlkit

import (
	"context"
	"database/sql"
)

// RowScanner is satisfied by *sql.Row and by fakes in tests.
type RowScanner interface {
	Scan(dest ...any) error
}

// RowsScanner is satisfied by *sql.Rows and by fakes in tests.
type RowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Querier is the subset of *sql.DB / *sql.Tx used by the sync core.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) RowScanner
	QueryContext(ctx context.Context, query string, args ...any) (RowsScanner, error)
}

// Tx is a Querier that can be committed or rolled back.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// DB is a Querier that can open transactions. synctx depends on this
// instead of *sql.DB directly so its tests can supply an in-memory fake.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

// DBAdapter wraps a *sql.DB to satisfy DB.
type DBAdapter struct{ DB *sql.DB }

func (a DBAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.DB.ExecContext(ctx, query, args...)
}

func (a DBAdapter) QueryRowContext(ctx context.Context, query string, args ...any) RowScanner {
	return a.DB.QueryRowContext(ctx, query, args...)
}

func (a DBAdapter) QueryContext(ctx context.Context, query string, args ...any) (RowsScanner, error) {
	return a.DB.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction and returns it wrapped to satisfy Tx.
func (a DBAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := a.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &TxAdapter{Tx: tx}, nil
}

// TxAdapter wraps a *sql.Tx to satisfy Tx.
type TxAdapter struct{ Tx *sql.Tx }

func (a *TxAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.Tx.ExecContext(ctx, query, args...)
}

func (a *TxAdapter) QueryRowContext(ctx context.Context, query string, args ...any) RowScanner {
	return a.Tx.QueryRowContext(ctx, query, args...)
}

func (a *TxAdapter) QueryContext(ctx context.Context, query string, args ...any) (RowsScanner, error) {
	return a.Tx.QueryContext(ctx, query, args...)
}

func (a *TxAdapter) Commit() error   { return a.Tx.Commit() }
func (a *TxAdapter) Rollback() error { return a.Tx.Rollback() }
