package syncclient

import (
	"context"

	"github.com/notesync/core/internal/sqlkit"
)

// clearDirtyMarkers clears is_dirty only for the rows this sync's request
// actually included (spec §4.4.1 step 8). This is intentionally scoped to
// the request, not "all dirty rows", so edits made during the sync (P2)
// remain dirty and will be picked up by the next sync.
func clearDirtyMarkers(ctx context.Context, db sqlkit.Querier, set dirtySet, lastSyncAt int64) error {
	upd := func(table, id string) error {
		_, err := db.ExecContext(ctx, `UPDATE `+table+` SET is_dirty = 0, last_synced_at = ? WHERE id = ?`, lastSyncAt, id)
		return wrapDBErr("clear dirty bit on "+table, err)
	}

	for _, w := range set.Workspaces {
		if err := upd("workspaces", w.ID); err != nil {
			return err
		}
	}
	for _, n := range set.Notes {
		if err := upd("notes", n.ID); err != nil {
			return err
		}
	}
	for _, f := range set.Folders {
		if err := upd("folders", f.ID); err != nil {
			return err
		}
	}
	for _, t := range set.Tags {
		if err := upd("tags", t.ID); err != nil {
			return err
		}
	}
	for _, s := range set.Snapshots {
		if err := upd("note_snapshots", s.ID); err != nil {
			return err
		}
	}
	for _, nt := range set.NoteTags {
		_, err := db.ExecContext(ctx, `UPDATE note_tag_relations SET is_dirty = 0 WHERE note_id = ? AND tag_id = ?`, nt.NoteID, nt.TagID)
		if err != nil {
			return wrapDBErr("clear dirty bit on note_tag_relations", err)
		}
	}
	return nil
}
