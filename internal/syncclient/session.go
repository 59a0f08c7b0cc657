// Package syncclient implements C4, the client sync driver, and C5,
// single-entity sync: the pipeline that collects locally dirty rows,
// POSTs them to /sync, and applies the response back into the client's
// local SQLite store. Grounded on spec §4.4/§4.5 and, for the
// checkpoint/cancellation idiom, on the teacher's context-cancellation
// style in internal/service (a long-running call checks ctx.Err() at
// each suspension point rather than polling a shared flag).
package syncclient

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/syncerr"
)

// Session is the unit against which mid-flight cancellation is judged
// (spec §4.4.1 step 1). It captures the signed-in user and the current
// workspace binding at the moment a sync begins.
type Session struct {
	ID          string
	UserID      string
	DeviceID    string
	WorkspaceID *string
}

// beginSession captures (user_id, workspace_id) from the client's local
// ambient state: user_auth.is_current and workspaces.is_current (spec §9
// "ambient mutable state" — read fresh rather than cached in memory, so
// a logout or workspace switch between checkpoints is observable).
func beginSession(ctx context.Context, db sqlkit.Querier) (Session, error) {
	var deviceID, userID string
	row := db.QueryRowContext(ctx, `SELECT device_id, user_id FROM user_auth WHERE is_current = 1 LIMIT 1`)
	if err := row.Scan(&deviceID, &userID); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, fmt.Errorf("syncclient: no current user: %w", syncerr.ErrAuthRequired)
		}
		return Session{}, fmt.Errorf("syncclient: read current user: %w", syncerr.ErrDatabase)
	}

	workspaceID, err := currentWorkspaceID(ctx, db)
	if err != nil {
		return Session{}, err
	}

	return Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		DeviceID:    deviceID,
		WorkspaceID: workspaceID,
	}, nil
}

// currentWorkspaceID reads workspaces.is_current, returning nil when no
// workspace is marked current (legacy/unscoped sync, per spec §4.3.1).
func currentWorkspaceID(ctx context.Context, db sqlkit.Querier) (*string, error) {
	var id string
	row := db.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE is_current = 1 AND is_deleted = 0 LIMIT 1`)
	switch err := row.Scan(&id); err {
	case nil:
		return &id, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, fmt.Errorf("syncclient: read current workspace: %w", syncerr.ErrDatabase)
	}
}

// checkpoint re-verifies the session against current ambient state (spec
// §4.4.1 step 2). Checkpoints occur before request build, request send,
// response apply, dirty-bit clear, and state update. A mismatch means the
// user logged out, switched accounts, or switched workspaces mid-flight.
func (s Session) checkpoint(ctx context.Context, db sqlkit.Querier) error {
	current, err := beginSession(ctx, db)
	if err != nil {
		return err
	}
	if current.UserID != s.UserID || current.DeviceID != s.DeviceID || !sameWorkspace(current.WorkspaceID, s.WorkspaceID) {
		return fmt.Errorf("syncclient: session invalidated: %w", syncerr.ErrSyncCancelled)
	}
	return nil
}

func sameWorkspace(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
