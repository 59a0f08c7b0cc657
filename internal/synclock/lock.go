// Package synclock implements C2: the per-(user, workspace) advisory sync
// lock described in spec §4.2. It is grounded on
// original_source/note-sync-server/src/services/sync_lock_service.rs,
// translated from the Rust guard-with-Drop idiom to a Go Lease value whose
// Release method callers invoke via defer (the transform instructions'
// suggested substitute where the target language lacks RAII).
package synclock

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/syncerr"
)

// DefaultTTL is the lock lease duration used by the sync transaction (spec §4.3.1).
const DefaultTTL = 30 * time.Second

// Manager grants at-most-one in-flight sync per (user, workspace), per
// spec §4.2's acquire contract.
type Manager struct {
	db sqlkit.Querier
}

func New(db sqlkit.Querier) *Manager {
	return &Manager{db: db}
}

// Lease is a held sync lock. Release is idempotent and best-effort; the
// TTL is the correctness backstop per spec §4.2.
type Lease struct {
	ID     string
	UserID string
	mgr    *Manager
}

// Acquire implements the contract in spec §4.2:
//  1. purge expired rows
//  2. extend a lease already held by this (user, device)
//  3. reject if another device holds the (user, workspace) lease
//  4. otherwise insert a new lease
//
// Two null workspaces count as the same workspace for step 2/3's
// comparison.
func (m *Manager) Acquire(ctx context.Context, userID, deviceID string, workspaceID *string, ttl time.Duration) (*Lease, error) {
	now := time.Now().Unix()
	expiresAt := now + int64(ttl.Seconds())

	if _, err := m.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE expires_at < ?`, now); err != nil {
		return nil, errAcquire(err)
	}

	var existingID string
	var existingWorkspace sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT id, workspace_id FROM sync_locks
		WHERE user_id = ? AND device_id = ? AND expires_at > ?
		ORDER BY acquired_at DESC LIMIT 1
	`, userID, deviceID, now).Scan(&existingID, &existingWorkspace)

	switch {
	case err == nil:
		if !sameWorkspace(existingWorkspace, workspaceID) {
			log.Info().Str("user_id", userID).Msg("sync lock held: other workspace of same user is syncing")
			return nil, fmtLockHeld("other workspace of same user is syncing")
		}
		if _, err := m.db.ExecContext(ctx, `UPDATE sync_locks SET expires_at = ? WHERE id = ?`, expiresAt, existingID); err != nil {
			return nil, errAcquire(err)
		}
		return &Lease{ID: existingID, UserID: userID, mgr: m}, nil

	case errors.Is(err, sql.ErrNoRows):
		var otherID string
		if workspaceID != nil {
			err = m.db.QueryRowContext(ctx, `
				SELECT id FROM sync_locks
				WHERE user_id = ? AND device_id != ? AND workspace_id = ? AND expires_at > ?
				LIMIT 1
			`, userID, deviceID, *workspaceID, now).Scan(&otherID)
		} else {
			err = m.db.QueryRowContext(ctx, `
				SELECT id FROM sync_locks
				WHERE user_id = ? AND device_id != ? AND workspace_id IS NULL AND expires_at > ?
				LIMIT 1
			`, userID, deviceID, now).Scan(&otherID)
		}

		if err == nil {
			log.Info().Str("user_id", userID).Msg("sync lock held: other device holds the lock")
			return nil, fmtLockHeld("other device holds the lock")
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, errAcquire(err)
		}

		newID := uuid.New().String()
		if _, err := m.db.ExecContext(ctx, `
			INSERT INTO sync_locks (id, user_id, device_id, workspace_id, acquired_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, newID, userID, deviceID, workspaceID, now, expiresAt); err != nil {
			return nil, errAcquire(err)
		}
		return &Lease{ID: newID, UserID: userID, mgr: m}, nil

	default:
		return nil, errAcquire(err)
	}
}

// Release deletes the lease by (id, user_id). Idempotent and best-effort:
// a failure here does not leave the lock stuck, since expiresAt reclaims
// it (spec §4.2, §9 "scoped lock release").
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	_, err := l.mgr.db.ExecContext(ctx, `DELETE FROM sync_locks WHERE id = ? AND user_id = ?`, l.ID, l.UserID)
	if err != nil {
		log.Warn().Err(err).Str("lock_id", l.ID).Msg("failed to release sync lock; TTL will reclaim it")
	}
	return err
}

func sameWorkspace(existing sql.NullString, requested *string) bool {
	if !existing.Valid {
		return requested == nil
	}
	return requested != nil && existing.String == *requested
}

func fmtLockHeld(reason string) error {
	return syncLockErr{reason: reason}
}

type syncLockErr struct{ reason string }

func (e syncLockErr) Error() string { return "sync lock held: " + e.reason }
func (e syncLockErr) Unwrap() error { return syncerr.ErrLockHeld }

func errAcquire(err error) error {
	return syncDBErr{cause: err}
}

type syncDBErr struct{ cause error }

func (e syncDBErr) Error() string { return "sync lock acquire: " + e.cause.Error() }
func (e syncDBErr) Unwrap() error { return syncerr.ErrDatabase }
