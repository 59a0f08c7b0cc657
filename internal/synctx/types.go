// Package synctx implements C3, the server-side sync transaction: one
// request resolves to one MySQL transaction that absorbs the client's
// push, evaluates conflicts, reads the pull window, and returns a single
// response. Grounded on the teacher's internal/service/syncservice
// transaction-scoped handler style, and on
// original_source/note-sync-server/src/handlers/sync.rs for the exact
// per-entity push/pull/partition behavior.
package synctx

import "github.com/notesync/core/internal/model"

// NoteTagPush is the wire shape of an incoming note_tags row. It has no
// server_ver; presence is the fact (spec §3).
type NoteTagPush struct {
	NoteID    string `json:"note_id"`
	TagID     string `json:"tag_id"`
	UserID    string `json:"user_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
	IsDeleted bool   `json:"is_deleted,omitempty"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// Request is the body of POST /sync (spec §6.1).
type Request struct {
	LastSyncAt         *int64                   `json:"last_sync_at,omitempty"`
	WorkspaceID        *string                  `json:"workspace_id,omitempty"`
	DeviceID           *string                  `json:"device_id,omitempty"`
	DeviceLabel        string                   `json:"-"`
	ConflictResolution model.ConflictResolution `json:"conflict_resolution,omitempty"`

	Workspaces []model.Workspace    `json:"workspaces,omitempty"`
	Notes      []model.Note         `json:"notes,omitempty"`
	Folders    []model.Folder       `json:"folders,omitempty"`
	Tags       []model.Tag          `json:"tags,omitempty"`
	Snapshots  []model.NoteSnapshot `json:"snapshots,omitempty"`
	NoteTags   []NoteTagPush        `json:"note_tags,omitempty"`
}

func (r *Request) resolution() model.ConflictResolution {
	if r.ConflictResolution == "" {
		return model.DefaultConflictResolution
	}
	return r.ConflictResolution
}

func (r *Request) lastSyncAt() int64 {
	if r.LastSyncAt == nil {
		return 0
	}
	return *r.LastSyncAt
}

// Status is the top-level outcome reported in a Response (spec §4.3.5).
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
)

// Response is the body returned by a successful sync call (spec §4.3.5).
// Conflicts are reported here, never as an error — only transaction-level
// failures (lock, ownership, SQL) become HTTP errors (spec §4.3.6).
type Response struct {
	Status     Status `json:"status"`
	ServerTime int64  `json:"server_time"`
	LastSyncAt int64  `json:"last_sync_at"`

	UpsertedWorkspaces []model.Workspace       `json:"upserted_workspaces,omitempty"`
	UpsertedNotes      []model.Note            `json:"upserted_notes,omitempty"`
	UpsertedFolders    []model.Folder          `json:"upserted_folders,omitempty"`
	UpsertedTags       []model.Tag             `json:"upserted_tags,omitempty"`
	UpsertedSnapshots  []model.NoteSnapshot    `json:"upserted_snapshots,omitempty"`
	UpsertedNoteTags   []model.NoteTagRelation `json:"upserted_note_tags,omitempty"`

	DeletedWorkspaceIDs []string `json:"deleted_workspace_ids,omitempty"`
	DeletedNoteIDs      []string `json:"deleted_note_ids,omitempty"`
	DeletedFolderIDs    []string `json:"deleted_folder_ids,omitempty"`
	DeletedTagIDs       []string `json:"deleted_tag_ids,omitempty"`

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

	Conflicts []model.ConflictInfo `json:"conflicts,omitempty"`
}

// pushTally accumulates per-entity accepted-write counts and conflicts
// across the whole push phase (spec §4.3.2 step 5).
type pushTally struct {
	workspaces, notes, folders, tags, snapshots, noteTags int
	conflicts                                             []model.ConflictInfo
}

func (p *pushTally) total() int {
	return p.workspaces + p.notes + p.folders + p.tags + p.snapshots + p.noteTags
}
