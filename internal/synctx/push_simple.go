package synctx

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
)

// pushWorkspaces absorbs incoming workspace rows. Workspaces always
// behave like KeepServer on conflict (spec §4.3.2: "other entities always
// behave like KeepServer").
func pushWorkspaces(ctx context.Context, tx sqlkit.Querier, userID string, rows []model.Workspace, device, byDevice *string, now int64) (int, []model.ConflictInfo, error) {
	count := 0
	var conflicts []model.ConflictInfo

	for _, w := range rows {
		exists, vs, err := lockVersion(ctx, tx, "workspaces", w.ID, userID)
		if err != nil {
			return count, conflicts, err
		}

		switch model.Reconcile(exists, w.ServerVer, vs) {
		case model.OutcomeConflict:
			conflicts = append(conflicts, model.ConflictInfo{
				ID: w.ID, EntityType: model.EntityWorkspace,
				LocalVersion: w.ServerVer, ServerVersion: vs, Title: w.Name,
			})
			continue

		default:
			_, err := tx.ExecContext(ctx, `
				INSERT INTO workspaces
					(id, user_id, name, description, icon, color, is_default, sort_order,
					 is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					name = VALUES(name), description = VALUES(description), icon = VALUES(icon),
					color = VALUES(color), sort_order = VALUES(sort_order),
					is_deleted = VALUES(is_deleted), deleted_at = VALUES(deleted_at),
					updated_at = VALUES(updated_at), server_ver = server_ver + 1,
					device_id = VALUES(device_id), updated_by_device = VALUES(updated_by_device)
			`, w.ID, userID, w.Name, w.Description, w.Icon, w.Color, w.IsDefault, w.SortOrder,
				w.IsDeleted, w.DeletedAt, w.CreatedAt, now, w.ServerVer+1, device, byDevice)
			if err != nil {
				return count, conflicts, dbErr(err)
			}
			count++
		}
	}
	return count, conflicts, nil
}

// pushTags absorbs incoming tag rows, scoped by workspace. Always
// KeepServer-like on conflict.
func pushTags(ctx context.Context, tx sqlkit.Querier, userID string, rows []model.Tag, workspaceID, device, byDevice *string, now int64) (int, []model.ConflictInfo, error) {
	count := 0
	var conflicts []model.ConflictInfo

	for _, tg := range rows {
		exists, vs, err := lockVersionScoped(ctx, tx, "tags", tg.ID, userID, workspaceID)
		if err != nil {
			return count, conflicts, err
		}

		switch model.Reconcile(exists, tg.ServerVer, vs) {
		case model.OutcomeConflict:
			conflicts = append(conflicts, model.ConflictInfo{
				ID: tg.ID, EntityType: model.EntityTag,
				LocalVersion: tg.ServerVer, ServerVersion: vs, Title: tg.Name,
			})
			continue

		default:
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tags
					(id, user_id, workspace_id, name, color,
					 is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON DUPLICATE KEY UPDATE
					name = VALUES(name), color = VALUES(color),
					is_deleted = VALUES(is_deleted), deleted_at = VALUES(deleted_at),
					updated_at = VALUES(updated_at), server_ver = server_ver + 1,
					device_id = VALUES(device_id), updated_by_device = VALUES(updated_by_device)
			`, tg.ID, userID, workspaceID, tg.Name, tg.Color,
				tg.IsDeleted, tg.DeletedAt, tg.CreatedAt, now, tg.ServerVer+1, device, byDevice)
			if err != nil {
				return count, conflicts, dbErr(err)
			}
			count++
		}
	}
	return count, conflicts, nil
}

// pushNotes absorbs incoming note rows and is the only entity whose
// conflict handling dispatches on the request's conflict_resolution
// (spec §4.3.2 step 2).
func pushNotes(ctx context.Context, tx sqlkit.Querier, userID string, rows []model.Note, workspaceID, device, byDevice *string, now int64, resolution model.ConflictResolution, newID func() string) (int, []model.ConflictInfo, error) {
	count := 0
	var conflicts []model.ConflictInfo

	for _, n := range rows {
		exists, vs, err := lockVersionScoped(ctx, tx, "notes", n.ID, userID, workspaceID)
		if err != nil {
			return count, conflicts, err
		}

		if model.Reconcile(exists, n.ServerVer, vs) != model.OutcomeConflict {
			if err := upsertNote(ctx, tx, userID, n, workspaceID, device, byDevice, now, n.ServerVer+1); err != nil {
				return count, conflicts, err
			}
			count++
			continue
		}

		conflicts = append(conflicts, model.ConflictInfo{
			ID: n.ID, EntityType: model.EntityNote,
			LocalVersion: n.ServerVer, ServerVersion: vs, Title: n.Title,
		})

		switch resolution {
		case model.KeepServer, model.ManualMerge:
			// leave the server row untouched (property P8).

		case model.KeepLocal:
			newVer := n.ServerVer + 1
			if newVer <= vs {
				log.Warn().Str("note_id", n.ID).Int64("new_ver", newVer).Int64("server_ver", vs).
					Msg("keepLocal write does not dominate existing server_ver (documented spec open question)")
			}
			if err := upsertNote(ctx, tx, userID, n, workspaceID, device, byDevice, now, newVer); err != nil {
				return count, conflicts, err
			}
			count++

		case model.KeepBoth:
			serverTitle, terr := existingNoteTitle(ctx, tx, n.ID, userID, workspaceID)
			if terr != nil {
				return count, conflicts, terr
			}
			copy := n
			copy.ID = newID()
			copy.Title = serverTitle + model.ConflictCopyTitleSuffix
			if err := insertNote(ctx, tx, userID, copy, workspaceID, device, byDevice, now, vs); err != nil {
				return count, conflicts, err
			}
			count++
		}
	}
	return count, conflicts, nil
}

func upsertNote(ctx context.Context, tx sqlkit.Querier, userID string, n model.Note, workspaceID, device, byDevice *string, now, newVer int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notes
			(id, user_id, workspace_id, title, content, excerpt, markdown_cache, folder_id,
			 is_favorite, is_pinned, author, word_count, read_time_minutes,
			 is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title), content = VALUES(content), excerpt = VALUES(excerpt),
			markdown_cache = VALUES(markdown_cache), folder_id = VALUES(folder_id),
			is_favorite = VALUES(is_favorite), is_pinned = VALUES(is_pinned),
			author = VALUES(author), word_count = VALUES(word_count),
			read_time_minutes = VALUES(read_time_minutes),
			is_deleted = VALUES(is_deleted), deleted_at = VALUES(deleted_at),
			updated_at = VALUES(updated_at), server_ver = VALUES(server_ver),
			device_id = VALUES(device_id), updated_by_device = VALUES(updated_by_device)
	`, n.ID, userID, workspaceID, n.Title, n.Content, n.Excerpt, n.MarkdownCache, n.FolderID,
		n.IsFavorite, n.IsPinned, n.Author, n.WordCount, n.ReadTimeMinutes,
		n.IsDeleted, n.DeletedAt, n.CreatedAt, now, newVer, device, byDevice)
	if err != nil {
		return dbErr(err)
	}
	return nil
}

// insertNote creates a conflict-copy row (KeepBoth); it never collides
// with an existing id because the caller supplies a fresh UUID.
func insertNote(ctx context.Context, tx sqlkit.Querier, userID string, n model.Note, workspaceID, device, byDevice *string, now, serverVer int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO notes
			(id, user_id, workspace_id, title, content, excerpt, markdown_cache, folder_id,
			 is_favorite, is_pinned, author, word_count, read_time_minutes,
			 is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, userID, workspaceID, n.Title, n.Content, n.Excerpt, n.MarkdownCache, n.FolderID,
		n.IsFavorite, n.IsPinned, n.Author, n.WordCount, n.ReadTimeMinutes,
		n.IsDeleted, n.DeletedAt, now, now, serverVer, device, byDevice)
	if err != nil {
		return dbErr(err)
	}
	return nil
}
