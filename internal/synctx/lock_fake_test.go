package synctx

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/notesync/core/internal/sqlkit"
)

// fakeLockDB is a minimal in-memory sync_locks table, just enough to back
// a real synclock.Manager in tests that exercise the full Transactor
// pipeline (scenarios_test.go). synclock itself has its own, separately
// maintained fake in internal/synclock/lock_test.go.
type fakeLockDB struct {
	rows []map[string]any
}

func (f *fakeLockDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	switch {
	case strings.Contains(query, "DELETE FROM sync_locks WHERE expires_at"):
		cutoff := args[0].(int64)
		kept := f.rows[:0]
		for _, r := range f.rows {
			if r["expires_at"].(int64) >= cutoff {
				kept = append(kept, r)
			}
		}
		f.rows = kept
	case strings.Contains(query, "UPDATE sync_locks SET expires_at"):
		newExpiry, id := args[0].(int64), args[1].(string)
		for _, r := range f.rows {
			if r["id"] == id {
				r["expires_at"] = newExpiry
			}
		}
	case strings.Contains(query, "INSERT INTO sync_locks"):
		var ws any
		if args[3] != nil {
			ws = args[3]
		}
		f.rows = append(f.rows, map[string]any{
			"id": args[0].(string), "user_id": args[1].(string), "device_id": args[2].(string),
			"workspace_id": ws, "acquired_at": args[4].(int64), "expires_at": args[5].(int64),
		})
	case strings.Contains(query, "DELETE FROM sync_locks WHERE id"):
		id, userID := args[0].(string), args[1].(string)
		kept := f.rows[:0]
		for _, r := range f.rows {
			if !(r["id"] == id && r["user_id"] == userID) {
				kept = append(kept, r)
			}
		}
		f.rows = kept
	}
	return nil, nil
}

func (f *fakeLockDB) QueryRowContext(ctx context.Context, query string, args ...any) sqlkit.RowScanner {
	switch {
	case strings.Contains(query, "AND device_id = ? AND expires_at"):
		userID, deviceID, now := args[0].(string), args[1].(string), args[2].(int64)
		for _, r := range f.rows {
			if r["user_id"] == userID && r["device_id"] == deviceID && r["expires_at"].(int64) > now {
				return lockRowScan{r}
			}
		}
		return lockRowScan{err: sql.ErrNoRows}

	case strings.Contains(query, "workspace_id = ? AND expires_at"):
		userID, deviceID, ws, now := args[0].(string), args[1].(string), args[2].(string), args[3].(int64)
		for _, r := range f.rows {
			if r["user_id"] == userID && r["device_id"] != deviceID && r["expires_at"].(int64) > now &&
				r["workspace_id"] == ws {
				return lockRowScan{r}
			}
		}
		return lockRowScan{err: sql.ErrNoRows}

	case strings.Contains(query, "workspace_id IS NULL AND expires_at"):
		userID, deviceID, now := args[0].(string), args[1].(string), args[2].(int64)
		for _, r := range f.rows {
			if r["user_id"] == userID && r["device_id"] != deviceID && r["expires_at"].(int64) > now && r["workspace_id"] == nil {
				return lockRowScan{r}
			}
		}
		return lockRowScan{err: sql.ErrNoRows}
	}
	return lockRowScan{err: errors.New("fakeLockDB: unhandled query: " + query)}
}

func (f *fakeLockDB) QueryContext(ctx context.Context, query string, args ...any) (sqlkit.RowsScanner, error) {
	return nil, errors.New("fakeLockDB: QueryContext unused")
}

type lockRowScan struct {
	row map[string]any
	err error
}

func (r lockRowScan) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for _, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.row["id"].(string)
		case *sql.NullString:
			if ws, ok := r.row["workspace_id"].(string); ok {
				*p = sql.NullString{String: ws, Valid: true}
			} else {
				*p = sql.NullString{}
			}
		}
	}
	return nil
}
