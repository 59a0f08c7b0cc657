package synctx

import (
	"context"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
)

// pullResult holds the pull-window rows for every entity type before they are
// partitioned into upserts and tombstones (spec §4.3.3, §4.3.4).
type pullResult struct {
	workspaces []model.Workspace
	notes      []model.Note
	folders    []model.Folder
	tags       []model.Tag
	snapshots  []model.NoteSnapshot
	noteTags   []model.NoteTagRelation
}

// pullWindow queries every syncable table scoped to (user_id,
// workspace_id) for rows touched since lastSyncAt, tombstones included
// (spec §4.3.3). Snapshots are immutable so they use created_at instead
// of updated_at; note_tags are filtered on the relation row's own
// updated_at, and the tag's updated_at is not consulted.
func pullWindow(ctx context.Context, tx sqlkit.Querier, userID string, workspaceID *string, lastSyncAt int64) (pullResult, error) {
	var out pullResult

	if err := queryRows(ctx, tx, workspacesQuery(workspaceID), workspaceArgs(userID, workspaceID, lastSyncAt), func(q sqlkit.RowsScanner) error {
		var w model.Workspace
		if err := q.Scan(&w.ID, &w.UserID, &w.Name, &w.Description, &w.Icon, &w.Color, &w.IsDefault, &w.SortOrder,
			&w.IsDeleted, &w.DeletedAt, &w.CreatedAt, &w.UpdatedAt, &w.ServerVer, &w.DeviceID, &w.UpdatedByDevice); err != nil {
			return err
		}
		out.workspaces = append(out.workspaces, w)
		return nil
	}); err != nil {
		return out, err
	}

	if err := queryRows(ctx, tx, notesQuery(workspaceID), scopedArgs(userID, workspaceID, lastSyncAt), func(q sqlkit.RowsScanner) error {
		var n model.Note
		if err := q.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.Title, &n.Content, &n.Excerpt, &n.MarkdownCache, &n.FolderID,
			&n.IsFavorite, &n.IsPinned, &n.Author, &n.WordCount, &n.ReadTimeMinutes,
			&n.IsDeleted, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt, &n.ServerVer, &n.DeviceID, &n.UpdatedByDevice); err != nil {
			return err
		}
		out.notes = append(out.notes, n)
		return nil
	}); err != nil {
		return out, err
	}

	if err := queryRows(ctx, tx, foldersQuery(workspaceID), scopedArgs(userID, workspaceID, lastSyncAt), func(q sqlkit.RowsScanner) error {
		var f model.Folder
		if err := q.Scan(&f.ID, &f.UserID, &f.WorkspaceID, &f.Name, &f.ParentID, &f.Icon, &f.Color, &f.SortOrder,
			&f.IsDeleted, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt, &f.ServerVer, &f.DeviceID, &f.UpdatedByDevice); err != nil {
			return err
		}
		out.folders = append(out.folders, f)
		return nil
	}); err != nil {
		return out, err
	}

	if err := queryRows(ctx, tx, tagsQuery(workspaceID), scopedArgs(userID, workspaceID, lastSyncAt), func(q sqlkit.RowsScanner) error {
		var tg model.Tag
		if err := q.Scan(&tg.ID, &tg.UserID, &tg.WorkspaceID, &tg.Name, &tg.Color,
			&tg.IsDeleted, &tg.DeletedAt, &tg.CreatedAt, &tg.UpdatedAt, &tg.ServerVer, &tg.DeviceID, &tg.UpdatedByDevice); err != nil {
			return err
		}
		out.tags = append(out.tags, tg)
		return nil
	}); err != nil {
		return out, err
	}

	if err := queryRows(ctx, tx, snapshotsQuery(workspaceID), scopedArgs(userID, workspaceID, lastSyncAt), func(q sqlkit.RowsScanner) error {
		var s model.NoteSnapshot
		if err := q.Scan(&s.ID, &s.UserID, &s.WorkspaceID, &s.NoteID, &s.Title, &s.Content, &s.SnapshotName,
			&s.IsDeleted, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt, &s.ServerVer, &s.DeviceID, &s.UpdatedByDevice); err != nil {
			return err
		}
		out.snapshots = append(out.snapshots, s)
		return nil
	}); err != nil {
		return out, err
	}

	if err := queryRows(ctx, tx, noteTagsQuery(workspaceID), scopedArgs(userID, workspaceID, lastSyncAt), func(q sqlkit.RowsScanner) error {
		var nt model.NoteTagRelation
		if err := q.Scan(&nt.NoteID, &nt.TagID, &nt.UserID, &nt.WorkspaceID, &nt.CreatedAt, &nt.UpdatedAt, &nt.IsDeleted, &nt.DeletedAt); err != nil {
			return err
		}
		out.noteTags = append(out.noteTags, nt)
		return nil
	}); err != nil {
		return out, err
	}

	return out, nil
}

func queryRows(ctx context.Context, tx sqlkit.Querier, query string, args []any, scan func(sqlkit.RowsScanner) error) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return dbErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return dbErr(err)
		}
	}
	return dbErr2(rows.Err())
}

func dbErr2(err error) error {
	if err == nil {
		return nil
	}
	return dbErr(err)
}

func workspaceArgs(userID string, workspaceID *string, lastSyncAt int64) []any {
	if workspaceID != nil {
		return []any{userID, *workspaceID, lastSyncAt}
	}
	return []any{userID, lastSyncAt}
}

func scopedArgs(userID string, workspaceID *string, lastSyncAt int64) []any {
	return workspaceArgs(userID, workspaceID, lastSyncAt)
}

func workspacesQuery(workspaceID *string) string {
	if workspaceID != nil {
		return `SELECT id, user_id, name, description, icon, color, is_default, sort_order,
			is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device
			FROM workspaces WHERE user_id = ? AND id = ? AND updated_at > ?`
	}
	return `SELECT id, user_id, name, description, icon, color, is_default, sort_order,
		is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device
		FROM workspaces WHERE user_id = ? AND updated_at > ?`
}

func notesQuery(workspaceID *string) string {
	return scopedQuery("notes", `id, user_id, workspace_id, title, content, excerpt, markdown_cache, folder_id,
		is_favorite, is_pinned, author, word_count, read_time_minutes,
		is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device`, "updated_at", workspaceID)
}

func foldersQuery(workspaceID *string) string {
	return scopedQuery("folders", `id, user_id, workspace_id, name, parent_id, icon, color, sort_order,
		is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device`, "updated_at", workspaceID)
}

func tagsQuery(workspaceID *string) string {
	return scopedQuery("tags", `id, user_id, workspace_id, name, color,
		is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device`, "updated_at", workspaceID)
}

func snapshotsQuery(workspaceID *string) string {
	return scopedQuery("note_snapshots", `id, user_id, workspace_id, note_id, title, content, snapshot_name,
		is_deleted, deleted_at, created_at, updated_at, server_ver, device_id, updated_by_device`, "created_at", workspaceID)
}

func noteTagsQuery(workspaceID *string) string {
	return scopedQuery("note_tag_relations", `note_id, tag_id, user_id, workspace_id, created_at, updated_at, is_deleted, deleted_at`, "updated_at", workspaceID)
}

func scopedQuery(table, columns, cmpColumn string, workspaceID *string) string {
	if workspaceID != nil {
		return `SELECT ` + columns + ` FROM ` + table + ` WHERE user_id = ? AND workspace_id = ? AND ` + cmpColumn + ` > ?`
	}
	return `SELECT ` + columns + ` FROM ` + table + ` WHERE user_id = ? AND workspace_id IS NULL AND ` + cmpColumn + ` > ?`
}
