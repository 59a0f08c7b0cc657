package synctx

import (
	"context"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
)

// pushSnapshots enforces the snapshot cap (I7) per (note_id, workspace_id)
// bucket, then upserts each incoming snapshot. Grounded on
// original_source/note-sync-server/src/handlers/sync.rs's snapshot
// eviction pass.
func pushSnapshots(ctx context.Context, tx sqlkit.Querier, userID string, rows []model.NoteSnapshot, workspaceID, device, byDevice *string, now int64) (int, []model.ConflictInfo, error) {
	buckets := map[string][]model.NoteSnapshot{}
	for _, s := range rows {
		buckets[s.NoteID] = append(buckets[s.NoteID], s)
	}

	count := 0
	var conflicts []model.ConflictInfo

	for noteID, bucket := range buckets {
		incomingIDs := make([]any, 0, len(bucket))
		placeholders := ""
		for i, s := range bucket {
			incomingIDs = append(incomingIDs, s.ID)
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
		}

		// Idempotent re-push: drop any existing row that an incoming id
		// will replace before measuring current count.
		delArgs := append([]any{noteID, userID}, incomingIDs...)
		delQuery := `DELETE FROM note_snapshots WHERE note_id = ? AND user_id = ? AND id IN (` + placeholders + `)`
		if workspaceID != nil {
			delQuery += ` AND workspace_id = ?`
			delArgs = append(delArgs, *workspaceID)
		} else {
			delQuery += ` AND workspace_id IS NULL`
		}
		if _, err := tx.ExecContext(ctx, delQuery, delArgs...); err != nil {
			return count, conflicts, dbErr(err)
		}

		current, err := countSnapshots(ctx, tx, noteID, userID, workspaceID)
		if err != nil {
			return count, conflicts, err
		}

		overflow := current + len(bucket) - model.MaxSnapshotsPerNote
		if overflow > 0 {
			if err := evictOldestSnapshots(ctx, tx, noteID, userID, workspaceID, overflow); err != nil {
				return count, conflicts, err
			}
		}

		for _, s := range bucket {
			exists, vs, err := lockVersionScoped(ctx, tx, "note_snapshots", s.ID, userID, workspaceID)
			if err != nil {
				return count, conflicts, err
			}

			if model.Reconcile(exists, s.ServerVer, vs) == model.OutcomeConflict {
				conflicts = append(conflicts, model.ConflictInfo{
					ID: s.ID, EntityType: model.EntitySnapshot,
					LocalVersion: s.ServerVer, ServerVersion: vs, Title: s.Title,
				})
				continue
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO note_snapshots
					(id, user_id, workspace_id, note_id, title, content, snapshot_name,
					 is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					title = VALUES(title), content = VALUES(content), snapshot_name = VALUES(snapshot_name),
					is_deleted = VALUES(is_deleted), deleted_at = VALUES(deleted_at),
					updated_at = VALUES(updated_at), server_ver = server_ver + 1,
					device_id = VALUES(device_id), updated_by_device = VALUES(updated_by_device)
			`, s.ID, userID, workspaceID, noteID, s.Title, s.Content, s.SnapshotName,
				s.IsDeleted, s.DeletedAt, s.CreatedAt, now, s.ServerVer+1, device, byDevice); err != nil {
				return count, conflicts, dbErr(err)
			}
			count++
		}
	}

	return count, conflicts, nil
}

func countSnapshots(ctx context.Context, tx sqlkit.Querier, noteID, userID string, workspaceID *string) (int, error) {
	var n int
	var row sqlkit.RowScanner
	if workspaceID != nil {
		row = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_snapshots WHERE note_id = ? AND user_id = ? AND workspace_id = ?`, noteID, userID, *workspaceID)
	} else {
		row = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_snapshots WHERE note_id = ? AND user_id = ? AND workspace_id IS NULL`, noteID, userID)
	}
	if err := row.Scan(&n); err != nil {
		return 0, dbErr(err)
	}
	return n, nil
}

func evictOldestSnapshots(ctx context.Context, tx sqlkit.Querier, noteID, userID string, workspaceID *string, k int) error {
	var rows sqlkit.RowsScanner
	var err error
	if workspaceID != nil {
		rows, err = tx.QueryContext(ctx, `
			SELECT id FROM note_snapshots WHERE note_id = ? AND user_id = ? AND workspace_id = ?
			ORDER BY created_at ASC LIMIT ?
		`, noteID, userID, *workspaceID, k)
	} else {
		rows, err = tx.QueryContext(ctx, `
			SELECT id FROM note_snapshots WHERE note_id = ? AND user_id = ? AND workspace_id IS NULL
			ORDER BY created_at ASC LIMIT ?
		`, noteID, userID, k)
	}
	if err != nil {
		return dbErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return dbErr(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return dbErr(err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM note_snapshots WHERE id = ?`, id); err != nil {
			return dbErr(err)
		}
	}
	return nil
}
