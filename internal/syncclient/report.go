package syncclient

import "github.com/notesync/core/internal/synctx"

// SyncReport is the user-visible summary of one sync call (spec §4.4.3,
// §7's "final SyncReport"). Pulled_* counts are the client's corrected
// figures, not the server's best guess.
type SyncReport struct {
	Success bool `json:"success"`

	PushedWorkspaces int `json:"pushed_workspaces"`
	PushedNotes      int `json:"pushed_notes"`
	PushedFolders    int `json:"pushed_folders"`
	PushedTags       int `json:"pushed_tags"`
	PushedSnapshots  int `json:"pushed_snapshots"`
	PushedNoteTags   int `json:"pushed_note_tags"`
	PushedTotal      int `json:"pushed_total"`

	PulledWorkspaces int `json:"pulled_workspaces"`
	PulledNotes      int `json:"pulled_notes"`
	PulledFolders    int `json:"pulled_folders"`
	PulledTags       int `json:"pulled_tags"`
	PulledSnapshots  int `json:"pulled_snapshots"`
	PulledNoteTags   int `json:"pulled_note_tags"`
	PulledTotal      int `json:"pulled_total"`

	DeletedWorkspaces int `json:"deleted_workspaces"`
	DeletedNotes      int `json:"deleted_notes"`
	DeletedFolders    int `json:"deleted_folders"`
	DeletedTags       int `json:"deleted_tags"`

	ConflictCount int    `json:"conflict_count"`
	Error         string `json:"error,omitempty"`
}

// buildReport assembles the final SyncReport from the server's response
// and the client's own actually-applied counts (spec §4.4.3: "the client
// recomputes it as the count of actually_applied_* writes").
func buildReport(resp *synctx.Response, applied appliedCounts) SyncReport {
	return SyncReport{
		Success: true,

		PushedWorkspaces: resp.PushedWorkspaces,
		PushedNotes:      resp.PushedNotes,
		PushedFolders:    resp.PushedFolders,
		PushedTags:       resp.PushedTags,
		PushedSnapshots:  resp.PushedSnapshots,
		PushedNoteTags:   resp.PushedNoteTags,
		PushedTotal:      resp.PushedTotal,

		PulledWorkspaces: applied.workspaces,
		PulledNotes:      applied.notes,
		PulledFolders:    applied.folders,
		PulledTags:       applied.tags,
		PulledSnapshots:  applied.snapshots,
		PulledNoteTags:   applied.noteTags,
		PulledTotal:      applied.total(),

		DeletedWorkspaces: len(resp.DeletedWorkspaceIDs),
		DeletedNotes:      len(resp.DeletedNoteIDs),
		DeletedFolders:    len(resp.DeletedFolderIDs),
		DeletedTags:       len(resp.DeletedTagIDs),

		ConflictCount: len(resp.Conflicts),
	}
}

func errorReport(err error) SyncReport {
	return SyncReport{Success: false, Error: err.Error()}
}
