package synctx

import (
	"context"

	"github.com/notesync/core/internal/sqlkit"
)

// pushNoteTags is insert-only: no version check, and INSERT IGNORE makes
// duplicates a no-op (spec §4.3.2). Per the chosen resolution of the
// open question in spec §9, only rows actually inserted are counted.
func pushNoteTags(ctx context.Context, tx sqlkit.Querier, userID string, rows []NoteTagPush, workspaceID *string, now int64) (int, error) {
	count := 0
	for _, nt := range rows {
		res, err := tx.ExecContext(ctx, `
			INSERT IGNORE INTO note_tag_relations
				(note_id, tag_id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, nt.NoteID, nt.TagID, userID, workspaceID, nt.IsDeleted, nt.DeletedAt, nt.CreatedAt, now)
		if err != nil {
			return count, dbErr(err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			count++
		}
	}
	return count, nil
}
