package synctx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
)

// pushFolders writes incoming folders in dependency order (I5): a folder
// is only written once its parent is null, already written this call, or
// already present in the DB for this user+workspace. Grounded on
// original_source/note-sync-server/src/handlers/sync.rs's multi-pass
// folder writer.
func pushFolders(ctx context.Context, tx sqlkit.Querier, userID string, rows []model.Folder, workspaceID, device, byDevice *string, now int64) (int, []model.ConflictInfo, error) {
	remaining := make(map[string]model.Folder, len(rows))
	for _, f := range rows {
		remaining[f.ID] = f
	}
	written := make(map[string]bool, len(rows))

	count := 0
	var conflicts []model.ConflictInfo

	maxPasses := len(remaining) + 1
	for pass := 0; pass < maxPasses && len(remaining) > 0; pass++ {
		progressed := false

		for id, f := range remaining {
			if f.ParentID != nil && *f.ParentID != "" && !written[*f.ParentID] {
				already, err := folderExists(ctx, tx, *f.ParentID, userID, workspaceID)
				if err != nil {
					return count, conflicts, err
				}
				if !already {
					continue // parent not yet available; try next pass
				}
			}

			exists, vs, err := lockVersionScoped(ctx, tx, "folders", f.ID, userID, workspaceID)
			if err != nil {
				return count, conflicts, err
			}

			if model.Reconcile(exists, f.ServerVer, vs) == model.OutcomeConflict {
				conflicts = append(conflicts, model.ConflictInfo{
					ID: f.ID, EntityType: model.EntityFolder,
					LocalVersion: f.ServerVer, ServerVersion: vs, Title: f.Name,
				})
			} else {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO folders
						(id, user_id, workspace_id, name, parent_id, icon, color, sort_order,
						 is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
					ON DUPLICATE KEY UPDATE
						name = VALUES(name), parent_id = VALUES(parent_id), icon = VALUES(icon),
						color = VALUES(color), sort_order = VALUES(sort_order),
						is_deleted = VALUES(is_deleted), deleted_at = VALUES(deleted_at),
						updated_at = VALUES(updated_at), server_ver = server_ver + 1,
						device_id = VALUES(device_id), updated_by_device = VALUES(updated_by_device)
				`, f.ID, userID, workspaceID, f.Name, f.ParentID, f.Icon, f.Color, f.SortOrder,
					f.IsDeleted, f.DeletedAt, f.CreatedAt, now, f.ServerVer+1, device, byDevice); err != nil {
					return count, conflicts, dbErr(err)
				}
				count++
			}

			written[id] = true
			delete(remaining, id)
			progressed = true
		}

		if !progressed {
			break
		}
	}

	if len(remaining) > 0 {
		ids := make([]string, 0, len(remaining))
		for id := range remaining {
			ids = append(ids, id)
		}
		log.Warn().Strs("folder_ids", ids).Msg("folder push left unreachable rows: probable cycle or dangling parent")
	}

	return count, conflicts, nil
}

func folderExists(ctx context.Context, tx sqlkit.Querier, id, userID string, workspaceID *string) (bool, error) {
	var one int
	var row sqlkit.RowScanner
	if workspaceID != nil {
		row = tx.QueryRowContext(ctx, `SELECT 1 FROM folders WHERE id = ? AND user_id = ? AND workspace_id = ?`, id, userID, *workspaceID)
	} else {
		row = tx.QueryRowContext(ctx, `SELECT 1 FROM folders WHERE id = ? AND user_id = ? AND workspace_id IS NULL`, id, userID)
	}
	err := row.Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, dbErr(err)
	}
	return true, nil
}
