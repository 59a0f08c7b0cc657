package synctx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/notesync/core/internal/sqlkit"
)

// lockVersion takes a row lock on an existing row scoped by (id, user_id)
// and reports whether it exists and its stored server_ver (spec §4.3.2
// step 1, used for workspaces which have no workspace_id column of their
// own).
func lockVersion(ctx context.Context, tx sqlkit.Querier, table, id, userID string) (exists bool, serverVer int64, err error) {
	err = tx.QueryRowContext(ctx, `SELECT server_ver FROM `+table+` WHERE id = ? AND user_id = ? FOR UPDATE`, id, userID).Scan(&serverVer)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, 0, nil
	case err != nil:
		return false, 0, dbErr(err)
	}
	return true, serverVer, nil
}

// lockVersionScoped is lockVersion additionally scoped by workspace_id,
// for notes/tags/snapshots (spec §4.3.2 step 1).
func lockVersionScoped(ctx context.Context, tx sqlkit.Querier, table, id, userID string, workspaceID *string) (exists bool, serverVer int64, err error) {
	var row sqlkit.RowScanner
	if workspaceID != nil {
		row = tx.QueryRowContext(ctx, `
			SELECT server_ver FROM `+table+`
			WHERE id = ? AND user_id = ? AND workspace_id = ? FOR UPDATE
		`, id, userID, *workspaceID)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT server_ver FROM `+table+`
			WHERE id = ? AND user_id = ? AND workspace_id IS NULL FOR UPDATE
		`, id, userID)
	}
	err = row.Scan(&serverVer)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, 0, nil
	case err != nil:
		return false, 0, dbErr(err)
	}
	return true, serverVer, nil
}

// existingNoteTitle reads the server's current title for a note already
// known to exist (the row is already locked by the preceding
// lockVersionScoped call in the same transaction). Used to label a
// KeepBoth conflict copy after the server's own title (spec §8 scenario
// 3: the copy is "<server title> (冲突副本-本地)", not the incoming one).
func existingNoteTitle(ctx context.Context, tx sqlkit.Querier, id, userID string, workspaceID *string) (string, error) {
	var row sqlkit.RowScanner
	if workspaceID != nil {
		row = tx.QueryRowContext(ctx, `
			SELECT title FROM notes WHERE id = ? AND user_id = ? AND workspace_id = ?
		`, id, userID, *workspaceID)
	} else {
		row = tx.QueryRowContext(ctx, `
			SELECT title FROM notes WHERE id = ? AND user_id = ? AND workspace_id IS NULL
		`, id, userID)
	}
	var title string
	if err := row.Scan(&title); err != nil {
		return "", dbErr(err)
	}
	return title, nil
}
