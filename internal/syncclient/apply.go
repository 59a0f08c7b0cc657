package syncclient

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/synctx"
)

// appliedCounts tracks actually-written rows per entity, used to build
// the corrected pull counts of spec §4.4.3 (the server's pulled_* is a
// best guess; the client recomputes it from what it truly wrote).
type appliedCounts struct {
	workspaces, notes, folders, tags, snapshots, noteTags int
}

func (a *appliedCounts) total() int {
	return a.workspaces + a.notes + a.folders + a.tags + a.snapshots + a.noteTags
}

// applySyncResponse applies resp against the local store in the fixed
// order workspaces -> notes -> folders -> tags -> snapshots -> note_tags
// -> deletions -> conflicts (spec §4.4.2). syncTime stamps last_synced_at
// on every workspace, note, folder, tag and snapshot row this call upserts.
func applySyncResponse(ctx context.Context, db sqlkit.Querier, sess Session, resp *synctx.Response, syncTime int64) (appliedCounts, error) {
	var counts appliedCounts

	// Conflicts reference note ids that applyNotes is about to overwrite
	// with the server's winning content, so the client's own pre-sync
	// edit must be captured first (spec §4.4.2's local conflict copy
	// carries the content the client had, not the server's).
	preConflictNotes, err := captureConflictedNotes(ctx, db, resp.Conflicts)
	if err != nil {
		return counts, err
	}

	applied, err := applyWorkspaces(ctx, db, resp.UpsertedWorkspaces, syncTime)
	if err != nil {
		return counts, err
	}
	counts.workspaces = applied

	if applied, err = applyNotes(ctx, db, sess, resp.UpsertedNotes, syncTime); err != nil {
		return counts, err
	}
	counts.notes = applied

	if applied, err = applyFolders(ctx, db, sess, resp.UpsertedFolders, syncTime); err != nil {
		return counts, err
	}
	counts.folders = applied

	if applied, err = applyTags(ctx, db, sess, resp.UpsertedTags, syncTime); err != nil {
		return counts, err
	}
	counts.tags = applied

	if applied, err = applySnapshots(ctx, db, sess, resp.UpsertedSnapshots, syncTime); err != nil {
		return counts, err
	}
	counts.snapshots = applied

	if applied, err = applyNoteTags(ctx, db, resp.UpsertedNoteTags); err != nil {
		return counts, err
	}
	counts.noteTags = applied

	if err := applyDeletions(ctx, db, resp, syncTime); err != nil {
		return counts, err
	}

	if err := applyConflicts(ctx, db, resp.Conflicts, preConflictNotes, syncTime); err != nil {
		return counts, err
	}

	return counts, nil
}

type noteSnapshot struct {
	title, content string
}

func captureConflictedNotes(ctx context.Context, db sqlkit.Querier, conflicts []model.ConflictInfo) (map[string]noteSnapshot, error) {
	out := map[string]noteSnapshot{}
	for _, c := range conflicts {
		if c.EntityType != model.EntityNote {
			continue
		}
		var title, content string
		row := db.QueryRowContext(ctx, `SELECT title, content FROM notes WHERE id = ?`, c.ID)
		switch err := row.Scan(&title, &content); err {
		case nil:
			out[c.ID] = noteSnapshot{title: title, content: content}
		case sql.ErrNoRows:
			// Nothing local to preserve; the conflict copy step skips it.
		default:
			return nil, wrapDBErr("capture conflicted note", err)
		}
	}
	return out, nil
}

func localServerVer(ctx context.Context, db sqlkit.Querier, table, id string) (int64, bool, error) {
	var ver int64
	row := db.QueryRowContext(ctx, `SELECT server_ver FROM `+table+` WHERE id = ?`, id)
	switch err := row.Scan(&ver); err {
	case nil:
		return ver, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, wrapDBErr("read local server_ver from "+table, err)
	}
}

func applyWorkspaces(ctx context.Context, db sqlkit.Querier, rows []model.Workspace, syncTime int64) (int, error) {
	count := 0
	for _, w := range rows {
		localVer, exists, err := localServerVer(ctx, db, "workspaces", w.ID)
		if err != nil {
			return count, err
		}
		if model.ShouldSkipApply(exists, localVer, w.ServerVer) {
			continue
		}
		// is_current is client-local state and is never overwritten by a
		// sync response (spec §4.4.2).
		_, err = db.ExecContext(ctx, `
			INSERT INTO workspaces (id, user_id, name, description, icon, color, is_default,
				sort_order, is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty,
				last_synced_at, device_id, updated_by_device, is_current)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, 0)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id, name = excluded.name, description = excluded.description,
				icon = excluded.icon, color = excluded.color, is_default = excluded.is_default,
				sort_order = excluded.sort_order, is_deleted = excluded.is_deleted, deleted_at = excluded.deleted_at,
				created_at = excluded.created_at, updated_at = excluded.updated_at, server_ver = excluded.server_ver,
				is_dirty = 0, last_synced_at = excluded.last_synced_at, device_id = excluded.device_id,
				updated_by_device = excluded.updated_by_device
		`, w.ID, w.UserID, w.Name, w.Description, w.Icon, w.Color, w.IsDefault,
			w.SortOrder, w.IsDeleted, w.DeletedAt, w.CreatedAt, w.UpdatedAt, w.ServerVer,
			syncTime, w.DeviceID, w.UpdatedByDevice)
		if err != nil {
			return count, wrapDBErr("apply workspace", err)
		}
		count++
	}
	return count, nil
}

func applyNotes(ctx context.Context, db sqlkit.Querier, sess Session, rows []model.Note, syncTime int64) (int, error) {
	count := 0
	for _, n := range rows {
		localVer, exists, err := localServerVer(ctx, db, "notes", n.ID)
		if err != nil {
			return count, err
		}
		if model.ShouldSkipApply(exists, localVer, n.ServerVer) {
			continue
		}
		workspaceID := stampWorkspace(n.WorkspaceID, sess.WorkspaceID)
		_, err = db.ExecContext(ctx, `
			INSERT INTO notes (id, user_id, workspace_id, title, content, excerpt, markdown_cache, folder_id,
				is_favorite, is_pinned, author, word_count, read_time_minutes, is_deleted, deleted_at,
				created_at, updated_at, server_ver, is_dirty, last_synced_at, device_id, updated_by_device)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id, workspace_id = excluded.workspace_id, title = excluded.title,
				content = excluded.content, excerpt = excluded.excerpt, markdown_cache = excluded.markdown_cache,
				folder_id = excluded.folder_id, is_favorite = excluded.is_favorite, is_pinned = excluded.is_pinned,
				author = excluded.author, word_count = excluded.word_count, read_time_minutes = excluded.read_time_minutes,
				is_deleted = excluded.is_deleted, deleted_at = excluded.deleted_at, created_at = excluded.created_at,
				updated_at = excluded.updated_at, server_ver = excluded.server_ver, is_dirty = 0,
				last_synced_at = excluded.last_synced_at, device_id = excluded.device_id,
				updated_by_device = excluded.updated_by_device
		`, n.ID, n.UserID, workspaceID, n.Title, n.Content, n.Excerpt, n.MarkdownCache, n.FolderID,
			n.IsFavorite, n.IsPinned, n.Author, n.WordCount, n.ReadTimeMinutes, n.IsDeleted, n.DeletedAt,
			n.CreatedAt, n.UpdatedAt, n.ServerVer, syncTime, n.DeviceID, n.UpdatedByDevice)
		if err != nil {
			return count, wrapDBErr("apply note", err)
		}
		count++
	}
	return count, nil
}

func applyFolders(ctx context.Context, db sqlkit.Querier, sess Session, rows []model.Folder, syncTime int64) (int, error) {
	count := 0
	for _, f := range rows {
		localVer, exists, err := localServerVer(ctx, db, "folders", f.ID)
		if err != nil {
			return count, err
		}
		if model.ShouldSkipApply(exists, localVer, f.ServerVer) {
			continue
		}
		workspaceID := stampWorkspace(f.WorkspaceID, sess.WorkspaceID)
		_, err = db.ExecContext(ctx, `
			INSERT INTO folders (id, user_id, workspace_id, name, parent_id, icon, color, sort_order,
				is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at,
				device_id, updated_by_device)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id, workspace_id = excluded.workspace_id, name = excluded.name,
				parent_id = excluded.parent_id, icon = excluded.icon, color = excluded.color,
				sort_order = excluded.sort_order, is_deleted = excluded.is_deleted, deleted_at = excluded.deleted_at,
				created_at = excluded.created_at, updated_at = excluded.updated_at, server_ver = excluded.server_ver,
				is_dirty = 0, last_synced_at = excluded.last_synced_at, device_id = excluded.device_id,
				updated_by_device = excluded.updated_by_device
		`, f.ID, f.UserID, workspaceID, f.Name, f.ParentID, f.Icon, f.Color, f.SortOrder,
			f.IsDeleted, f.DeletedAt, f.CreatedAt, f.UpdatedAt, f.ServerVer, syncTime, f.DeviceID, f.UpdatedByDevice)
		if err != nil {
			return count, wrapDBErr("apply folder", err)
		}
		count++
	}
	return count, nil
}

func applyTags(ctx context.Context, db sqlkit.Querier, sess Session, rows []model.Tag, syncTime int64) (int, error) {
	count := 0
	for _, t := range rows {
		localVer, exists, err := localServerVer(ctx, db, "tags", t.ID)
		if err != nil {
			return count, err
		}
		if model.ShouldSkipApply(exists, localVer, t.ServerVer) {
			continue
		}
		workspaceID := stampWorkspace(t.WorkspaceID, sess.WorkspaceID)
		_, err = db.ExecContext(ctx, `
			INSERT INTO tags (id, user_id, workspace_id, name, color, is_deleted, deleted_at,
				created_at, updated_at, server_ver, is_dirty, last_synced_at, device_id, updated_by_device)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id, workspace_id = excluded.workspace_id, name = excluded.name,
				color = excluded.color, is_deleted = excluded.is_deleted, deleted_at = excluded.deleted_at,
				created_at = excluded.created_at, updated_at = excluded.updated_at, server_ver = excluded.server_ver,
				is_dirty = 0, last_synced_at = excluded.last_synced_at, device_id = excluded.device_id,
				updated_by_device = excluded.updated_by_device
		`, t.ID, t.UserID, workspaceID, t.Name, t.Color, t.IsDeleted, t.DeletedAt,
			t.CreatedAt, t.UpdatedAt, t.ServerVer, syncTime, t.DeviceID, t.UpdatedByDevice)
		if err != nil {
			return count, wrapDBErr("apply tag", err)
		}
		count++
	}
	return count, nil
}

func applySnapshots(ctx context.Context, db sqlkit.Querier, sess Session, rows []model.NoteSnapshot, syncTime int64) (int, error) {
	count := 0
	for _, s := range rows {
		localVer, exists, err := localServerVer(ctx, db, "note_snapshots", s.ID)
		if err != nil {
			return count, err
		}
		if model.ShouldSkipApply(exists, localVer, s.ServerVer) {
			continue
		}
		workspaceID := stampWorkspace(s.WorkspaceID, sess.WorkspaceID)
		_, err = db.ExecContext(ctx, `
			INSERT INTO note_snapshots (id, user_id, workspace_id, note_id, title, content, snapshot_name,
				is_deleted, deleted_at, created_at, updated_at, server_ver, is_dirty, last_synced_at,
				device_id, updated_by_device)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				user_id = excluded.user_id, workspace_id = excluded.workspace_id, note_id = excluded.note_id,
				title = excluded.title, content = excluded.content, snapshot_name = excluded.snapshot_name,
				is_deleted = excluded.is_deleted, deleted_at = excluded.deleted_at, created_at = excluded.created_at,
				updated_at = excluded.updated_at, server_ver = excluded.server_ver, is_dirty = 0,
				last_synced_at = excluded.last_synced_at, device_id = excluded.device_id,
				updated_by_device = excluded.updated_by_device
		`, s.ID, s.UserID, workspaceID, s.NoteID, s.Title, s.Content, s.SnapshotName,
			s.IsDeleted, s.DeletedAt, s.CreatedAt, s.UpdatedAt, s.ServerVer, syncTime, s.DeviceID, s.UpdatedByDevice)
		if err != nil {
			return count, wrapDBErr("apply snapshot", err)
		}
		count++
	}
	return count, nil
}

// applyNoteTags has no version check: note_tags carry no server_ver
// (presence is the fact), so every row the server returns is written.
func applyNoteTags(ctx context.Context, db sqlkit.Querier, rows []model.NoteTagRelation) (int, error) {
	count := 0
	for _, nt := range rows {
		_, err := db.ExecContext(ctx, `
			INSERT INTO note_tag_relations (note_id, tag_id, user_id, workspace_id, is_deleted, deleted_at,
				created_at, updated_at, is_dirty)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(note_id, tag_id) DO UPDATE SET
				user_id = excluded.user_id, workspace_id = excluded.workspace_id, is_deleted = excluded.is_deleted,
				deleted_at = excluded.deleted_at, created_at = excluded.created_at, updated_at = excluded.updated_at,
				is_dirty = 0
		`, nt.NoteID, nt.TagID, nt.UserID, nt.WorkspaceID, nt.IsDeleted, nt.DeletedAt, nt.CreatedAt, nt.UpdatedAt)
		if err != nil {
			return count, wrapDBErr("apply note_tag", err)
		}
		count++
	}
	return count, nil
}

// applyDeletions tombstones locally the ids the server reports deleted.
// The default workspace can never be tombstoned (I6): it is skipped
// silently rather than erroring.
func applyDeletions(ctx context.Context, db sqlkit.Querier, resp *synctx.Response, deletedAt int64) error {
	if err := tombstone(ctx, db, "workspaces", resp.DeletedWorkspaceIDs, true, deletedAt); err != nil {
		return err
	}
	if err := tombstone(ctx, db, "notes", resp.DeletedNoteIDs, false, deletedAt); err != nil {
		return err
	}
	if err := tombstone(ctx, db, "folders", resp.DeletedFolderIDs, false, deletedAt); err != nil {
		return err
	}
	if err := tombstone(ctx, db, "tags", resp.DeletedTagIDs, false, deletedAt); err != nil {
		return err
	}
	return nil
}

func tombstone(ctx context.Context, db sqlkit.Querier, table string, ids []string, guardDefault bool, deletedAt int64) error {
	for _, id := range ids {
		if guardDefault {
			var isDefault bool
			row := db.QueryRowContext(ctx, `SELECT is_default FROM workspaces WHERE id = ?`, id)
			if err := row.Scan(&isDefault); err == nil && isDefault {
				continue
			}
		}
		_, err := db.ExecContext(ctx, `UPDATE `+table+` SET is_deleted = 1, deleted_at = ?, is_dirty = 0 WHERE id = ?`, deletedAt, id)
		if err != nil {
			return wrapDBErr("tombstone "+table, err)
		}
	}
	return nil
}

// applyConflicts creates a local conflict copy for every note-entity
// conflict, carrying the client's own pre-sync content forward so the
// user's losing edit is never silently discarded (spec §4.4.2). Other
// entity types are recorded in the caller's SyncReport only.
func applyConflicts(ctx context.Context, db sqlkit.Querier, conflicts []model.ConflictInfo, preSync map[string]noteSnapshot, syncTime int64) error {
	for _, c := range conflicts {
		if c.EntityType != model.EntityNote {
			continue
		}
		snap, ok := preSync[c.ID]
		if !ok {
			continue
		}
		copyID := uuid.NewString()
		_, err := db.ExecContext(ctx, `
			INSERT INTO notes (id, user_id, workspace_id, title, content, is_deleted, created_at, updated_at,
				server_ver, is_dirty)
			SELECT ?, user_id, workspace_id, ?, ?, 0, ?, ?, 0, 1
			FROM notes WHERE id = ?
		`, copyID, snap.title+model.ConflictCopyTitleSuffixClient, snap.content, syncTime, syncTime, c.ID)
		if err != nil {
			return wrapDBErr("create conflict copy", err)
		}
	}
	return nil
}

// stampWorkspace applies the client's current workspace binding to an
// incoming row, matching spec §4.4.2's "the server response is already
// scoped" rule, unless the row already carries its own id (server rows
// always do; this guards the rare nil case).
func stampWorkspace(incoming, current *string) *string {
	if incoming != nil {
		return incoming
	}
	return current
}
