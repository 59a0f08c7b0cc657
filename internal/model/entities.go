package model

// Workspace is a top-level container of folders, notes, and tags (spec §3).
type Workspace struct {
	Base
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
	Icon        *string `json:"icon,omitempty" db:"icon"`
	Color       *string `json:"color,omitempty" db:"color"`
	IsDefault   bool    `json:"is_default" db:"is_default"`
	IsCurrent   bool    `json:"is_current,omitempty" db:"is_current"`
	SortOrder   int     `json:"sort_order" db:"sort_order"`
}

// Folder is a node in the per-workspace folder forest (spec §3, I5).
type Folder struct {
	Base
	Name      string  `json:"name" db:"name"`
	ParentID  *string `json:"parent_id,omitempty" db:"parent_id"`
	Icon      *string `json:"icon,omitempty" db:"icon"`
	Color     *string `json:"color,omitempty" db:"color"`
	SortOrder int     `json:"sort_order" db:"sort_order"`
}

// Note is the primary content entity (spec §3).
type Note struct {
	Base
	Title           string  `json:"title" db:"title"`
	Content         string  `json:"content" db:"content"`
	Excerpt         *string `json:"excerpt,omitempty" db:"excerpt"`
	MarkdownCache   *string `json:"markdown_cache,omitempty" db:"markdown_cache"`
	FolderID        *string `json:"folder_id,omitempty" db:"folder_id"`
	IsFavorite      bool    `json:"is_favorite" db:"is_favorite"`
	IsPinned        bool    `json:"is_pinned" db:"is_pinned"`
	Author          *string `json:"author,omitempty" db:"author"`
	WordCount       int     `json:"word_count" db:"word_count"`
	ReadTimeMinutes int     `json:"read_time_minutes" db:"read_time_minutes"`
}

// Tag labels notes. (user_id, workspace_id, name) is unique among
// non-deleted tags (spec §3).
type Tag struct {
	Base
	Name  string  `json:"name" db:"name"`
	Color *string `json:"color,omitempty" db:"color"`
}

// NoteSnapshot is a point-in-time copy of a note's content, capped at
// MaxSnapshotsPerNote per (note_id, workspace_id) (spec §3, I7).
type NoteSnapshot struct {
	Base
	NoteID       string  `json:"note_id" db:"note_id"`
	Title        string  `json:"title" db:"title"`
	Content      string  `json:"content" db:"content"`
	SnapshotName *string `json:"snapshot_name,omitempty" db:"snapshot_name"`
}

// NoteTagRelation joins a note to a tag. It has no server_ver: presence
// of a non-deleted row is the fact (spec §3).
type NoteTagRelation struct {
	NoteID      string  `json:"note_id" db:"note_id"`
	TagID       string  `json:"tag_id" db:"tag_id"`
	UserID      string  `json:"user_id,omitempty" db:"user_id"`
	WorkspaceID *string `json:"workspace_id,omitempty" db:"workspace_id"`
	CreatedAt   int64   `json:"created_at" db:"created_at"`
	UpdatedAt   int64   `json:"updated_at" db:"updated_at"`
	IsDeleted   bool    `json:"is_deleted" db:"is_deleted"`
	DeletedAt   *int64  `json:"deleted_at,omitempty" db:"deleted_at"`
}
