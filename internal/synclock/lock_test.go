package synclock

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/syncerr"
)

// fakeRow lets a fake querier hand back column values the same way
// *sql.Row does, without a live database.
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return errors.New("fakeRow: column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *sql.NullString:
			*p = r.vals[i].(sql.NullString)
		default:
			return errors.New("fakeRow: unsupported dest type")
		}
	}
	return nil
}

type lockRow struct {
	id          string
	userID      string
	deviceID    string
	workspaceID *string
	expiresAt   int64
}

// fakeQuerier is an in-memory stand-in for sqlkit.Querier, modeling just
// enough of sync_locks to exercise Manager.Acquire/Release.
type fakeQuerier struct {
	rows []lockRow
}

func (f *fakeQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	switch {
	case containsSQL(query, "DELETE FROM sync_locks WHERE expires_at"):
		cutoff := args[0].(int64)
		kept := f.rows[:0]
		for _, r := range f.rows {
			if r.expiresAt >= cutoff {
				kept = append(kept, r)
			}
		}
		f.rows = kept
		return nil, nil

	case containsSQL(query, "UPDATE sync_locks SET expires_at"):
		newExpiry := args[0].(int64)
		id := args[1].(string)
		for i := range f.rows {
			if f.rows[i].id == id {
				f.rows[i].expiresAt = newExpiry
			}
		}
		return nil, nil

	case containsSQL(query, "INSERT INTO sync_locks"):
		f.rows = append(f.rows, lockRow{
			id:          args[0].(string),
			userID:      args[1].(string),
			deviceID:    args[2].(string),
			workspaceID: asStringPtr(args[3]),
			expiresAt:   args[5].(int64),
		})
		return nil, nil

	case containsSQL(query, "DELETE FROM sync_locks WHERE id"):
		id := args[0].(string)
		userID := args[1].(string)
		kept := f.rows[:0]
		for _, r := range f.rows {
			if r.id != id || r.userID != userID {
				kept = append(kept, r)
			}
		}
		f.rows = kept
		return nil, nil
	}
	return nil, errors.New("fakeQuerier: unhandled exec: " + query)
}

func (f *fakeQuerier) QueryRowContext(ctx context.Context, query string, args ...any) sqlkit.RowScanner {
	switch {
	case containsSQL(query, "AND device_id = ? AND expires_at"):
		userID := args[0].(string)
		deviceID := args[1].(string)
		now := args[2].(int64)
		var match *lockRow
		for i := range f.rows {
			r := &f.rows[i]
			if r.userID == userID && r.deviceID == deviceID && r.expiresAt > now {
				match = r
			}
		}
		if match == nil {
			return fakeRow{err: sql.ErrNoRows}
		}
		return fakeRow{vals: []any{match.id, toNullString(match.workspaceID)}}

	case containsSQL(query, "workspace_id = ? AND expires_at"):
		userID := args[0].(string)
		deviceID := args[1].(string)
		ws := args[2].(string)
		now := args[3].(int64)
		for _, r := range f.rows {
			if r.userID == userID && r.deviceID != deviceID && r.expiresAt > now &&
				r.workspaceID != nil && *r.workspaceID == ws {
				return fakeRow{vals: []any{r.id}}
			}
		}
		return fakeRow{err: sql.ErrNoRows}

	case containsSQL(query, "workspace_id IS NULL AND expires_at"):
		userID := args[0].(string)
		deviceID := args[1].(string)
		now := args[2].(int64)
		for _, r := range f.rows {
			if r.userID == userID && r.deviceID != deviceID && r.expiresAt > now && r.workspaceID == nil {
				return fakeRow{vals: []any{r.id}}
			}
		}
		return fakeRow{err: sql.ErrNoRows}
	}
	return fakeRow{err: errors.New("fakeQuerier: unhandled query: " + query)}
}

func (f *fakeQuerier) QueryContext(ctx context.Context, query string, args ...any) (sqlkit.RowsScanner, error) {
	return nil, errors.New("fakeQuerier: QueryContext not used by synclock")
}

var _ sqlkit.Querier = (*fakeQuerier)(nil)

func containsSQL(query, needle string) bool {
	return len(query) >= len(needle) && indexOf(query, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func asStringPtr(v any) *string {
	if v == nil {
		return nil
	}
	switch p := v.(type) {
	case *string:
		return p
	case string:
		return &p
	default:
		return nil
	}
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func TestAcquire_NewLease(t *testing.T) {
	f := &fakeQuerier{}
	mgr := New(f)

	lease, err := mgr.Acquire(context.Background(), "user-1", "device-a", nil, DefaultTTL)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Len(t, f.rows, 1)
}

func TestAcquire_SameDeviceExtends(t *testing.T) {
	f := &fakeQuerier{}
	mgr := New(f)
	ctx := context.Background()

	first, err := mgr.Acquire(ctx, "user-1", "device-a", nil, DefaultTTL)
	require.NoError(t, err)

	second, err := mgr.Acquire(ctx, "user-1", "device-a", nil, DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same device should extend the existing lease, not create a new one")
	assert.Len(t, f.rows, 1)
}

func TestAcquire_OtherDeviceRejected(t *testing.T) {
	f := &fakeQuerier{}
	mgr := New(f)
	ctx := context.Background()
	ws := "ws-1"

	_, err := mgr.Acquire(ctx, "user-1", "device-a", &ws, DefaultTTL)
	require.NoError(t, err)

	_, err = mgr.Acquire(ctx, "user-1", "device-b", &ws, DefaultTTL)
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerr.ErrLockHeld)
}

func TestAcquire_SameDeviceDifferentWorkspaceRejected(t *testing.T) {
	f := &fakeQuerier{}
	mgr := New(f)
	ctx := context.Background()
	wsA, wsB := "ws-a", "ws-b"

	_, err := mgr.Acquire(ctx, "user-1", "device-a", &wsA, DefaultTTL)
	require.NoError(t, err)

	_, err = mgr.Acquire(ctx, "user-1", "device-a", &wsB, DefaultTTL)
	require.Error(t, err)
	assert.ErrorIs(t, err, syncerr.ErrLockHeld)
}

func TestAcquire_ExpiredLeaseReclaimed(t *testing.T) {
	f := &fakeQuerier{rows: []lockRow{
		{id: "stale", userID: "user-1", deviceID: "device-a", expiresAt: time.Now().Unix() - 100},
	}}
	mgr := New(f)

	lease, err := mgr.Acquire(context.Background(), "user-1", "device-b", nil, DefaultTTL)
	require.NoError(t, err)
	require.NotNil(t, lease)

	ids := make([]string, 0, len(f.rows))
	for _, r := range f.rows {
		ids = append(ids, r.id)
	}
	sort.Strings(ids)
	assert.NotContains(t, ids, "stale")
}

func TestRelease_RemovesLease(t *testing.T) {
	f := &fakeQuerier{}
	mgr := New(f)
	ctx := context.Background()

	lease, err := mgr.Acquire(ctx, "user-1", "device-a", nil, DefaultTTL)
	require.NoError(t, err)

	require.NoError(t, lease.Release(ctx))
	assert.Empty(t, f.rows)
}

func TestRelease_Nil(t *testing.T) {
	var lease *Lease
	assert.NoError(t, lease.Release(context.Background()))
}
