package synctx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/syncerr"
)

// bindWorkspace resolves the workspace a sync call operates against,
// per spec §4.3.1 step 1.
func bindWorkspace(ctx context.Context, q sqlkit.Querier, userID string, requested *string) (*string, error) {
	if requested != nil {
		var deleted bool
		err := q.QueryRowContext(ctx, `
			SELECT is_deleted FROM workspaces WHERE id = ? AND user_id = ?
		`, *requested, userID).Scan(&deleted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("workspace %s not found: %w", *requested, syncerr.ErrOwnership)
		case err != nil:
			return nil, fmt.Errorf("verify workspace ownership: %w", dbErr(err))
		case deleted:
			return nil, fmt.Errorf("workspace %s is deleted: %w", *requested, syncerr.ErrOwnership)
		}
		return requested, nil
	}

	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM workspaces WHERE user_id = ? AND is_default = TRUE AND is_deleted = FALSE LIMIT 1
	`, userID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("resolve default workspace: %w", dbErr(err))
	}
	return &id, nil
}

func dbErr(err error) error {
	return fmt.Errorf("%w: %v", syncerr.ErrDatabase, err)
}

// deviceLabel builds the printable "device id (user-agent)" bookkeeping
// value stamped onto pushed rows (spec §4.3.2 step 4).
func deviceLabel(deviceID *string, userAgent string) *string {
	if deviceID == nil {
		return nil
	}
	label := *deviceID
	if userAgent != "" {
		label = label + " (" + userAgent + ")"
	}
	return &label
}
