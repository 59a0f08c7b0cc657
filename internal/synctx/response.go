package synctx

import "github.com/notesync/core/internal/model"

// buildResponse partitions the pull window into upserts/tombstones and
// assembles the wire response (spec §4.3.4, §4.3.5). pulled_* is
// recomputed as |upserted| minus ids that were present in the client's
// own push, so "pulled" means "truly new to this client" per spec.
func buildResponse(req *Request, pull pullResult, push pushTally, lastSyncAt, serverTime int64) *Response {
	resp := &Response{
		ServerTime: serverTime,
		LastSyncAt: lastSyncAt,

		PushedWorkspaces: push.workspaces,
		PushedNotes:      push.notes,
		PushedFolders:    push.folders,
		PushedTags:       push.tags,
		PushedSnapshots:  push.snapshots,
		PushedNoteTags:   push.noteTags,

		Conflicts: push.conflicts,
	}
	resp.PushedTotal = push.total()

	pushedWorkspaceIDs := idSet(req.Workspaces, func(w model.Workspace) string { return w.ID })
	pushedNoteIDs := idSet(req.Notes, func(n model.Note) string { return n.ID })
	pushedFolderIDs := idSet(req.Folders, func(f model.Folder) string { return f.ID })
	pushedTagIDs := idSet(req.Tags, func(t model.Tag) string { return t.ID })
	pushedSnapshotIDs := idSet(req.Snapshots, func(s model.NoteSnapshot) string { return s.ID })

	for _, w := range pull.workspaces {
		if w.IsDeleted {
			resp.DeletedWorkspaceIDs = append(resp.DeletedWorkspaceIDs, w.ID)
		} else {
			resp.UpsertedWorkspaces = append(resp.UpsertedWorkspaces, w)
		}
	}
	resp.PulledWorkspaces = countNew(resp.UpsertedWorkspaces, pushedWorkspaceIDs, func(w model.Workspace) string { return w.ID })

	for _, n := range pull.notes {
		if n.IsDeleted {
			resp.DeletedNoteIDs = append(resp.DeletedNoteIDs, n.ID)
		} else {
			resp.UpsertedNotes = append(resp.UpsertedNotes, n)
		}
	}
	resp.PulledNotes = countNew(resp.UpsertedNotes, pushedNoteIDs, func(n model.Note) string { return n.ID })

	for _, f := range pull.folders {
		if f.IsDeleted {
			resp.DeletedFolderIDs = append(resp.DeletedFolderIDs, f.ID)
		} else {
			resp.UpsertedFolders = append(resp.UpsertedFolders, f)
		}
	}
	resp.PulledFolders = countNew(resp.UpsertedFolders, pushedFolderIDs, func(f model.Folder) string { return f.ID })

	for _, t := range pull.tags {
		if t.IsDeleted {
			resp.DeletedTagIDs = append(resp.DeletedTagIDs, t.ID)
		} else {
			resp.UpsertedTags = append(resp.UpsertedTags, t)
		}
	}
	resp.PulledTags = countNew(resp.UpsertedTags, pushedTagIDs, func(t model.Tag) string { return t.ID })

	// Snapshots have no tombstone list (spec §4.3.4).
	resp.UpsertedSnapshots = pull.snapshots
	resp.PulledSnapshots = countNew(resp.UpsertedSnapshots, pushedSnapshotIDs, func(s model.NoteSnapshot) string { return s.ID })

	for _, nt := range pull.noteTags {
		if !nt.IsDeleted {
			resp.UpsertedNoteTags = append(resp.UpsertedNoteTags, nt)
		}
	}
	resp.PulledNoteTags = len(resp.UpsertedNoteTags)

	resp.PulledTotal = resp.PulledWorkspaces + resp.PulledNotes + resp.PulledFolders +
		resp.PulledTags + resp.PulledSnapshots + resp.PulledNoteTags

	if len(resp.Conflicts) > 0 {
		resp.Status = StatusPartialSuccess
	} else {
		resp.Status = StatusSuccess
	}

	return resp
}

func idSet[T any](rows []T, id func(T) string) map[string]bool {
	set := make(map[string]bool, len(rows))
	for _, r := range rows {
		set[id(r)] = true
	}
	return set
}

func countNew[T any](rows []T, pushed map[string]bool, id func(T) string) int {
	n := 0
	for _, r := range rows {
		if !pushed[id(r)] {
			n++
		}
	}
	return n
}
