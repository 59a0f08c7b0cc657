package syncclient

import (
	"context"
	"fmt"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/syncerr"
	"github.com/notesync/core/internal/synctx"
)

// dirtySet is the collected local mutations for one sync call (spec
// §4.4.1 step 3). Every syncable table contributes rows where
// is_dirty = true; dirty deletes are included too (this codebase's
// choice among the spec's two documented policies — see DESIGN.md).
type dirtySet struct {
	Workspaces []model.Workspace
	Notes      []model.Note
	Folders    []model.Folder
	Tags       []model.Tag
	Snapshots  []model.NoteSnapshot
	NoteTags   []synctx.NoteTagPush
}

func (d dirtySet) empty() bool {
	return len(d.Workspaces) == 0 && len(d.Notes) == 0 && len(d.Folders) == 0 &&
		len(d.Tags) == 0 && len(d.Snapshots) == 0 && len(d.NoteTags) == 0
}

// collectDirty gathers the full dirty set scoped to workspaceID (nil
// means the legacy unscoped binding). NoteTagRelations are not filtered
// on their is_dirty column, so every non-deleted row for the workspace is
// always included (spec §4.4.1 step 3).
func collectDirty(ctx context.Context, db sqlkit.Querier, workspaceID *string) (dirtySet, error) {
	var set dirtySet
	var err error

	if set.Workspaces, err = collectWorkspaces(ctx, db); err != nil {
		return dirtySet{}, err
	}
	if set.Notes, err = collectNotes(ctx, db, workspaceID); err != nil {
		return dirtySet{}, err
	}
	if set.Folders, err = collectFolders(ctx, db, workspaceID); err != nil {
		return dirtySet{}, err
	}
	if set.Tags, err = collectTags(ctx, db, workspaceID); err != nil {
		return dirtySet{}, err
	}
	if set.Snapshots, err = collectSnapshots(ctx, db, workspaceID); err != nil {
		return dirtySet{}, err
	}
	if set.NoteTags, err = collectNoteTags(ctx, db, workspaceID); err != nil {
		return dirtySet{}, err
	}
	return set, nil
}

const dirtyPredicate = `is_dirty = 1`

func collectWorkspaces(ctx context.Context, db sqlkit.Querier) ([]model.Workspace, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, name, description, icon, color, is_default, is_current, sort_order
		FROM workspaces WHERE `+dirtyPredicate)
	if err != nil {
		return nil, wrapDBErr("collect workspaces", err)
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var w model.Workspace
		if err := rows.Scan(&w.ID, &w.UserID, &w.IsDeleted, &w.DeletedAt, &w.CreatedAt, &w.UpdatedAt,
			&w.ServerVer, &w.DeviceID, &w.UpdatedByDevice, &w.Name, &w.Description, &w.Icon, &w.Color,
			&w.IsDefault, &w.IsCurrent, &w.SortOrder); err != nil {
			return nil, wrapDBErr("scan workspace", err)
		}
		out = append(out, w)
	}
	return out, wrapDBErr("iterate workspaces", rows.Err())
}

func collectNotes(ctx context.Context, db sqlkit.Querier, workspaceID *string) ([]model.Note, error) {
	query, args := scopedQuery(`
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, title, content, excerpt, markdown_cache, folder_id,
		       is_favorite, is_pinned, author, word_count, read_time_minutes
		FROM notes WHERE `+dirtyPredicate, workspaceID)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr("collect notes", err)
	}
	defer rows.Close()

	var out []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.IsDeleted, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt,
			&n.ServerVer, &n.DeviceID, &n.UpdatedByDevice, &n.Title, &n.Content, &n.Excerpt, &n.MarkdownCache,
			&n.FolderID, &n.IsFavorite, &n.IsPinned, &n.Author, &n.WordCount, &n.ReadTimeMinutes); err != nil {
			return nil, wrapDBErr("scan note", err)
		}
		out = append(out, n)
	}
	return out, wrapDBErr("iterate notes", rows.Err())
}

func collectFolders(ctx context.Context, db sqlkit.Querier, workspaceID *string) ([]model.Folder, error) {
	query, args := scopedQuery(`
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, name, parent_id, icon, color, sort_order
		FROM folders WHERE `+dirtyPredicate, workspaceID)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr("collect folders", err)
	}
	defer rows.Close()

	var out []model.Folder
	for rows.Next() {
		var f model.Folder
		if err := rows.Scan(&f.ID, &f.UserID, &f.WorkspaceID, &f.IsDeleted, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt,
			&f.ServerVer, &f.DeviceID, &f.UpdatedByDevice, &f.Name, &f.ParentID, &f.Icon, &f.Color, &f.SortOrder); err != nil {
			return nil, wrapDBErr("scan folder", err)
		}
		out = append(out, f)
	}
	return out, wrapDBErr("iterate folders", rows.Err())
}

func collectTags(ctx context.Context, db sqlkit.Querier, workspaceID *string) ([]model.Tag, error) {
	query, args := scopedQuery(`
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, name, color
		FROM tags WHERE `+dirtyPredicate, workspaceID)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr("collect tags", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.WorkspaceID, &t.IsDeleted, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
			&t.ServerVer, &t.DeviceID, &t.UpdatedByDevice, &t.Name, &t.Color); err != nil {
			return nil, wrapDBErr("scan tag", err)
		}
		out = append(out, t)
	}
	return out, wrapDBErr("iterate tags", rows.Err())
}

func collectSnapshots(ctx context.Context, db sqlkit.Querier, workspaceID *string) ([]model.NoteSnapshot, error) {
	query, args := scopedQuery(`
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, note_id, title, content, snapshot_name
		FROM note_snapshots WHERE `+dirtyPredicate, workspaceID)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr("collect snapshots", err)
	}
	defer rows.Close()

	var out []model.NoteSnapshot
	for rows.Next() {
		var s model.NoteSnapshot
		if err := rows.Scan(&s.ID, &s.UserID, &s.WorkspaceID, &s.IsDeleted, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
			&s.ServerVer, &s.DeviceID, &s.UpdatedByDevice, &s.NoteID, &s.Title, &s.Content, &s.SnapshotName); err != nil {
			return nil, wrapDBErr("scan snapshot", err)
		}
		out = append(out, s)
	}
	return out, wrapDBErr("iterate snapshots", rows.Err())
}

// collectNoteTags includes every non-deleted relation for the workspace,
// not just dirty ones — its query does not filter on is_dirty (spec §4.4.1).
func collectNoteTags(ctx context.Context, db sqlkit.Querier, workspaceID *string) ([]synctx.NoteTagPush, error) {
	query, args := scopedQuery(`
		SELECT note_id, tag_id, user_id, created_at, is_deleted, deleted_at
		FROM note_tag_relations WHERE is_deleted = 0`, workspaceID)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBErr("collect note_tags", err)
	}
	defer rows.Close()

	var out []synctx.NoteTagPush
	for rows.Next() {
		var nt synctx.NoteTagPush
		if err := rows.Scan(&nt.NoteID, &nt.TagID, &nt.UserID, &nt.CreatedAt, &nt.IsDeleted, &nt.DeletedAt); err != nil {
			return nil, wrapDBErr("scan note_tag", err)
		}
		out = append(out, nt)
	}
	return out, wrapDBErr("iterate note_tags", rows.Err())
}

// scopedQuery always appends a workspace_id filter, treating NULL as its
// own bucket: "workspace_id = ?" when workspaceID is set (rows with a NULL
// workspace_id are then left out), "workspace_id IS NULL" when it is nil.
func scopedQuery(base string, workspaceID *string) (string, []any) {
	if workspaceID == nil {
		return base + ` AND workspace_id IS NULL`, nil
	}
	return base + ` AND workspace_id = ?`, []any{*workspaceID}
}

func wrapDBErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("syncclient: %s: %w", op, fmt.Errorf("%v: %w", err, syncerr.ErrDatabase))
}
