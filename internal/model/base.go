// Package model defines the syncable entity shape shared by the server's
// MySQL store and the client's local SQLite store (spec §3, C1).
package model

// ConflictResolution selects how the server push path handles a row whose
// server_ver already exceeds the client's known version (spec §4.3.2).
type ConflictResolution string

const (
	KeepServer  ConflictResolution = "keepServer"
	KeepLocal   ConflictResolution = "keepLocal"
	KeepBoth    ConflictResolution = "keepBoth"
	ManualMerge ConflictResolution = "manualMerge"
)

// DefaultConflictResolution is used when a sync request omits the field.
const DefaultConflictResolution = KeepBoth

// ConflictCopyTitleSuffix is appended to the title of a conflict copy
// created on the server during a KeepBoth push (spec §4.3.2). This exact
// sentinel is carried over from the original implementation.
const ConflictCopyTitleSuffix = " (冲突副本-本地)"

// ConflictCopyTitleSuffixClient is appended to the title of a conflict
// copy the client creates locally after seeing a note conflict in a sync
// response (spec §4.4.2). Distinct from the server-side suffix per spec.
const ConflictCopyTitleSuffixClient = " (冲突副本 - 本地)"

// MaxSnapshotsPerNote is invariant I7: at most this many snapshots may
// exist for a given (note_id, workspace_id) pair at any instant.
const MaxSnapshotsPerNote = 20

// SnapshotRetentionDays bounds how long a tombstoned row survives before
// the compaction job may hard-delete it (spec §3 lifecycles, §6.3).
const SnapshotRetentionDays = 30

// Base holds the fields common to every syncable entity (spec §3).
type Base struct {
	ID              string  `json:"id" db:"id"`
	UserID          string  `json:"user_id,omitempty" db:"user_id"`
	WorkspaceID     *string `json:"workspace_id,omitempty" db:"workspace_id"`
	IsDeleted       bool    `json:"is_deleted" db:"is_deleted"`
	DeletedAt       *int64  `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt       int64   `json:"created_at" db:"created_at"`
	UpdatedAt       int64   `json:"updated_at" db:"updated_at"`
	ServerVer       int64   `json:"server_ver" db:"server_ver"`
	IsDirty         bool    `json:"is_dirty,omitempty" db:"is_dirty"`
	LastSyncedAt    *int64  `json:"last_synced_at,omitempty" db:"last_synced_at"`
	DeviceID        *string `json:"device_id,omitempty" db:"device_id"`
	UpdatedByDevice *string `json:"updated_by_device,omitempty" db:"updated_by_device"`
}

// EntityType names each syncable table, used in ConflictInfo and logging.
type EntityType string

const (
	EntityWorkspace EntityType = "workspace"
	EntityFolder    EntityType = "folder"
	EntityNote      EntityType = "note"
	EntityTag       EntityType = "tag"
	EntitySnapshot  EntityType = "snapshot"
	EntityNoteTag   EntityType = "note_tag"
)

// ConflictInfo describes a single row the server could not cleanly apply
// (spec §4.3.5).
type ConflictInfo struct {
	ID            string     `json:"id"`
	EntityType    EntityType `json:"entity_type"`
	LocalVersion  int64      `json:"local_version"`
	ServerVersion int64      `json:"server_version"`
	Title         string     `json:"title,omitempty"`
}
