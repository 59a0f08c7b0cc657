package syncclient

import (
	"context"
	"database/sql"
	"strings"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/synctx"
)

func selectTagByID(ctx context.Context, db sqlkit.Querier, id string) (model.Tag, bool, error) {
	var t model.Tag
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, name, color
		FROM tags WHERE id = ?`, id)
	switch err := row.Scan(&t.ID, &t.UserID, &t.WorkspaceID, &t.IsDeleted, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
		&t.ServerVer, &t.DeviceID, &t.UpdatedByDevice, &t.Name, &t.Color); err {
	case nil:
		return t, true, nil
	case sql.ErrNoRows:
		return model.Tag{}, false, nil
	default:
		return model.Tag{}, false, wrapDBErr("select tag", err)
	}
}

func selectSnapshotByID(ctx context.Context, db sqlkit.Querier, id string) (model.NoteSnapshot, bool, error) {
	var s model.NoteSnapshot
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, note_id, title, content, snapshot_name
		FROM note_snapshots WHERE id = ?`, id)
	switch err := row.Scan(&s.ID, &s.UserID, &s.WorkspaceID, &s.IsDeleted, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
		&s.ServerVer, &s.DeviceID, &s.UpdatedByDevice, &s.NoteID, &s.Title, &s.Content, &s.SnapshotName); err {
	case nil:
		return s, true, nil
	case sql.ErrNoRows:
		return model.NoteSnapshot{}, false, nil
	default:
		return model.NoteSnapshot{}, false, wrapDBErr("select snapshot", err)
	}
}

func selectNoteByID(ctx context.Context, db sqlkit.Querier, id string) (model.Note, bool, error) {
	var n model.Note
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, title, content, excerpt, markdown_cache, folder_id,
		       is_favorite, is_pinned, author, word_count, read_time_minutes
		FROM notes WHERE id = ?`, id)
	switch err := row.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.IsDeleted, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt,
		&n.ServerVer, &n.DeviceID, &n.UpdatedByDevice, &n.Title, &n.Content, &n.Excerpt, &n.MarkdownCache,
		&n.FolderID, &n.IsFavorite, &n.IsPinned, &n.Author, &n.WordCount, &n.ReadTimeMinutes); err {
	case nil:
		return n, true, nil
	case sql.ErrNoRows:
		return model.Note{}, false, nil
	default:
		return model.Note{}, false, wrapDBErr("select note", err)
	}
}

// collectSingleTag returns just the tag row, matching §4.5's narrowest
// variant.
func collectSingleTag(ctx context.Context, db sqlkit.Querier, tagID string) (dirtySet, error) {
	tag, ok, err := selectTagByID(ctx, db, tagID)
	if err != nil || !ok {
		return dirtySet{}, err
	}
	return dirtySet{Tags: []model.Tag{tag}}, nil
}

// collectSingleSnapshot returns just the snapshot row.
func collectSingleSnapshot(ctx context.Context, db sqlkit.Querier, snapshotID string) (dirtySet, error) {
	snap, ok, err := selectSnapshotByID(ctx, db, snapshotID)
	if err != nil || !ok {
		return dirtySet{}, err
	}
	return dirtySet{Snapshots: []model.NoteSnapshot{snap}}, nil
}

// collectSingleNote gathers the note (if dirty), its dirty tags (via the
// join table), its dirty snapshots, and its non-deleted note_tags rows
// (spec §4.5).
func collectSingleNote(ctx context.Context, db sqlkit.Querier, noteID string) (dirtySet, error) {
	var set dirtySet

	note, ok, err := selectNoteByID(ctx, db, noteID)
	if err != nil {
		return dirtySet{}, err
	}
	if ok && note.IsDirty {
		set.Notes = append(set.Notes, note)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.workspace_id, t.is_deleted, t.deleted_at, t.created_at, t.updated_at,
		       t.server_ver, t.device_id, t.updated_by_device, t.name, t.color
		FROM tags t
		JOIN note_tag_relations r ON r.tag_id = t.id
		WHERE r.note_id = ? AND t.is_dirty = 1`, noteID)
	if err != nil {
		return dirtySet{}, wrapDBErr("collect single-note dirty tags", err)
	}
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.WorkspaceID, &t.IsDeleted, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
			&t.ServerVer, &t.DeviceID, &t.UpdatedByDevice, &t.Name, &t.Color); err != nil {
			rows.Close()
			return dirtySet{}, wrapDBErr("scan single-note dirty tag", err)
		}
		set.Tags = append(set.Tags, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return dirtySet{}, wrapDBErr("iterate single-note dirty tags", err)
	}
	rows.Close()

	snapRows, err := db.QueryContext(ctx, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, note_id, title, content, snapshot_name
		FROM note_snapshots WHERE note_id = ? AND is_dirty = 1`, noteID)
	if err != nil {
		return dirtySet{}, wrapDBErr("collect single-note dirty snapshots", err)
	}
	for snapRows.Next() {
		var s model.NoteSnapshot
		if err := snapRows.Scan(&s.ID, &s.UserID, &s.WorkspaceID, &s.IsDeleted, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
			&s.ServerVer, &s.DeviceID, &s.UpdatedByDevice, &s.NoteID, &s.Title, &s.Content, &s.SnapshotName); err != nil {
			snapRows.Close()
			return dirtySet{}, wrapDBErr("scan single-note dirty snapshot", err)
		}
		set.Snapshots = append(set.Snapshots, s)
	}
	if err := snapRows.Err(); err != nil {
		snapRows.Close()
		return dirtySet{}, wrapDBErr("iterate single-note dirty snapshots", err)
	}
	snapRows.Close()

	noteTags, err := noteTagsForNotes(ctx, db, []string{noteID})
	if err != nil {
		return dirtySet{}, err
	}
	set.NoteTags = noteTags

	return set, nil
}

// collectSingleFolder walks the transitive closure of folderID's children
// with an explicit visited set (cycle protection, I5/P7), then gathers
// dirty folders in that closure, dirty notes inside them, and each such
// note's dirty tags/snapshots and note_tags rows (spec §4.5).
func collectSingleFolder(ctx context.Context, db sqlkit.Querier, folderID string) (dirtySet, error) {
	closure, err := folderClosure(ctx, db, folderID)
	if err != nil {
		return dirtySet{}, err
	}
	if len(closure) == 0 {
		return dirtySet{}, nil
	}

	var set dirtySet
	folderRows, err := queryIn(ctx, db, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, name, parent_id, icon, color, sort_order
		FROM folders WHERE is_dirty = 1 AND id IN (%s)`, closure)
	if err != nil {
		return dirtySet{}, wrapDBErr("collect single-folder dirty folders", err)
	}
	for folderRows.Next() {
		var f model.Folder
		if err := folderRows.Scan(&f.ID, &f.UserID, &f.WorkspaceID, &f.IsDeleted, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt,
			&f.ServerVer, &f.DeviceID, &f.UpdatedByDevice, &f.Name, &f.ParentID, &f.Icon, &f.Color, &f.SortOrder); err != nil {
			folderRows.Close()
			return dirtySet{}, wrapDBErr("scan single-folder dirty folder", err)
		}
		set.Folders = append(set.Folders, f)
	}
	if err := folderRows.Err(); err != nil {
		folderRows.Close()
		return dirtySet{}, wrapDBErr("iterate single-folder dirty folders", err)
	}
	folderRows.Close()

	noteRows, err := queryIn(ctx, db, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, title, content, excerpt, markdown_cache, folder_id,
		       is_favorite, is_pinned, author, word_count, read_time_minutes
		FROM notes WHERE is_dirty = 1 AND folder_id IN (%s)`, closure)
	if err != nil {
		return dirtySet{}, wrapDBErr("collect single-folder dirty notes", err)
	}
	var noteIDs []string
	for noteRows.Next() {
		var n model.Note
		if err := noteRows.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.IsDeleted, &n.DeletedAt, &n.CreatedAt, &n.UpdatedAt,
			&n.ServerVer, &n.DeviceID, &n.UpdatedByDevice, &n.Title, &n.Content, &n.Excerpt, &n.MarkdownCache,
			&n.FolderID, &n.IsFavorite, &n.IsPinned, &n.Author, &n.WordCount, &n.ReadTimeMinutes); err != nil {
			noteRows.Close()
			return dirtySet{}, wrapDBErr("scan single-folder dirty note", err)
		}
		set.Notes = append(set.Notes, n)
		noteIDs = append(noteIDs, n.ID)
	}
	if err := noteRows.Err(); err != nil {
		noteRows.Close()
		return dirtySet{}, wrapDBErr("iterate single-folder dirty notes", err)
	}
	noteRows.Close()

	if len(noteIDs) == 0 {
		return set, nil
	}

	tagRows, err := queryIn(ctx, db, `
		SELECT DISTINCT t.id, t.user_id, t.workspace_id, t.is_deleted, t.deleted_at, t.created_at, t.updated_at,
		       t.server_ver, t.device_id, t.updated_by_device, t.name, t.color
		FROM tags t
		JOIN note_tag_relations r ON r.tag_id = t.id
		WHERE t.is_dirty = 1 AND r.note_id IN (%s)`, noteIDs)
	if err != nil {
		return dirtySet{}, wrapDBErr("collect single-folder dirty tags", err)
	}
	for tagRows.Next() {
		var t model.Tag
		if err := tagRows.Scan(&t.ID, &t.UserID, &t.WorkspaceID, &t.IsDeleted, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
			&t.ServerVer, &t.DeviceID, &t.UpdatedByDevice, &t.Name, &t.Color); err != nil {
			tagRows.Close()
			return dirtySet{}, wrapDBErr("scan single-folder dirty tag", err)
		}
		set.Tags = append(set.Tags, t)
	}
	if err := tagRows.Err(); err != nil {
		tagRows.Close()
		return dirtySet{}, wrapDBErr("iterate single-folder dirty tags", err)
	}
	tagRows.Close()

	snapRows, err := queryIn(ctx, db, `
		SELECT id, user_id, workspace_id, is_deleted, deleted_at, created_at, updated_at, server_ver,
		       device_id, updated_by_device, note_id, title, content, snapshot_name
		FROM note_snapshots WHERE is_dirty = 1 AND note_id IN (%s)`, noteIDs)
	if err != nil {
		return dirtySet{}, wrapDBErr("collect single-folder dirty snapshots", err)
	}
	for snapRows.Next() {
		var s model.NoteSnapshot
		if err := snapRows.Scan(&s.ID, &s.UserID, &s.WorkspaceID, &s.IsDeleted, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt,
			&s.ServerVer, &s.DeviceID, &s.UpdatedByDevice, &s.NoteID, &s.Title, &s.Content, &s.SnapshotName); err != nil {
			snapRows.Close()
			return dirtySet{}, wrapDBErr("scan single-folder dirty snapshot", err)
		}
		set.Snapshots = append(set.Snapshots, s)
	}
	if err := snapRows.Err(); err != nil {
		snapRows.Close()
		return dirtySet{}, wrapDBErr("iterate single-folder dirty snapshots", err)
	}
	snapRows.Close()

	noteTags, err := noteTagsForNotes(ctx, db, noteIDs)
	if err != nil {
		return dirtySet{}, err
	}
	set.NoteTags = noteTags

	return set, nil
}

// folderClosure walks the child-folder tree rooted at folderID via BFS
// with a visited set, so a corrupt parent cycle can never loop forever
// (spec §4.5, I5/P7).
func folderClosure(ctx context.Context, db sqlkit.Querier, folderID string) ([]string, error) {
	visited := map[string]bool{folderID: true}
	queue := []string{folderID}
	order := []string{folderID}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		rows, err := db.QueryContext(ctx, `SELECT id FROM folders WHERE parent_id = ?`, parent)
		if err != nil {
			return nil, wrapDBErr("walk folder closure", err)
		}
		var children []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, wrapDBErr("scan folder closure child", err)
			}
			children = append(children, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, wrapDBErr("iterate folder closure children", err)
		}
		rows.Close()

		for _, id := range children {
			if visited[id] {
				continue
			}
			visited[id] = true
			order = append(order, id)
			queue = append(queue, id)
		}
	}
	return order, nil
}

// noteTagsForNotes returns every non-deleted note_tag relation for the
// given note ids, dirty or not (the query does not filter on is_dirty).
func noteTagsForNotes(ctx context.Context, db sqlkit.Querier, noteIDs []string) ([]synctx.NoteTagPush, error) {
	if len(noteIDs) == 0 {
		return nil, nil
	}
	rows, err := queryIn(ctx, db, `
		SELECT note_id, tag_id, user_id, created_at, is_deleted, deleted_at
		FROM note_tag_relations WHERE is_deleted = 0 AND note_id IN (%s)`, noteIDs)
	if err != nil {
		return nil, wrapDBErr("collect note_tags for notes", err)
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

// queryIn substitutes a "?, ?, ..." placeholder list into format's single
// %s and runs it with ids bound as args. Small, fixed-size id lists make
// this safe without a query builder dependency.
func queryIn(ctx context.Context, db sqlkit.Querier, format string, ids []string) (sqlkit.RowsScanner, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := strings.Replace(format, "%s", placeholders, 1)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return db.QueryContext(ctx, query, args...)
}
