// C5: single-entity sync variants (spec §4.5). Same wire protocol as the
// full pipeline in sync.go; the only difference is how the dirty set is
// collected. All variants reuse the unexported sendSyncRequest,
// applySyncResponse, clearDirtyMarkers, and updateSyncState helpers.
package syncclient

import (
	"context"

	"github.com/notesync/core/internal/sqlkit"
)

// runSingle is the shared C5 pipeline: collect a narrowed set, then drive
// the same send/apply/clear/update sequence as the full sync.
func (d *Driver) runSingle(ctx context.Context, accessToken string, collect func(context.Context, sqlkit.Querier) (dirtySet, error)) (SyncReport, error) {
	sess, err := beginSession(ctx, d.DB)
	if err != nil {
		return errorReport(err), err
	}
	if err := sess.checkpoint(ctx, d.DB); err != nil {
		return errorReport(err), err
	}

	set, err := collect(ctx, d.DB)
	if err != nil {
		return errorReport(err), err
	}

	req, err := buildRequest(ctx, d.DB, sess, set)
	if err != nil {
		return errorReport(err), err
	}

	if err := sess.checkpoint(ctx, d.DB); err != nil {
		return errorReport(err), err
	}
	resp, err := d.sendSyncRequest(ctx, accessToken, req)
	if err != nil {
		return errorReport(err), err
	}

	if err := sess.checkpoint(ctx, d.DB); err != nil {
		return errorReport(err), err
	}
	applied, err := applySyncResponse(ctx, d.DB, sess, resp, resp.LastSyncAt)
	if err != nil {
		return errorReport(err), err
	}

	if err := sess.checkpoint(ctx, d.DB); err != nil {
		return errorReport(err), err
	}
	if err := clearDirtyMarkers(ctx, d.DB, set, resp.LastSyncAt); err != nil {
		return errorReport(err), err
	}
	if err := updateSyncState(ctx, d.DB, resp.LastSyncAt, len(resp.Conflicts)); err != nil {
		return errorReport(err), err
	}

	return buildReport(resp, applied), nil
}

// SyncSingleTag pushes (and pulls back) just the one tag row.
func (d *Driver) SyncSingleTag(ctx context.Context, accessToken, tagID string) (SyncReport, error) {
	return d.runSingle(ctx, accessToken, func(ctx context.Context, db sqlkit.Querier) (dirtySet, error) {
		return collectSingleTag(ctx, db, tagID)
	})
}

// SyncSingleSnapshot pushes just the one note_snapshot row.
func (d *Driver) SyncSingleSnapshot(ctx context.Context, accessToken, snapshotID string) (SyncReport, error) {
	return d.runSingle(ctx, accessToken, func(ctx context.Context, db sqlkit.Querier) (dirtySet, error) {
		return collectSingleSnapshot(ctx, db, snapshotID)
	})
}

// SyncSingleNote pushes the note (if dirty), its dirty tags, its dirty
// snapshots, and its non-deleted note_tag relations (spec §4.5).
func (d *Driver) SyncSingleNote(ctx context.Context, accessToken, noteID string) (SyncReport, error) {
	return d.runSingle(ctx, accessToken, func(ctx context.Context, db sqlkit.Querier) (dirtySet, error) {
		return collectSingleNote(ctx, db, noteID)
	})
}

// SyncSingleFolder pushes the transitive closure of the folder's children
// (dirty ones), the dirty notes inside them, and each such note's dirty
// tags/snapshots and note_tag relations (spec §4.5).
func (d *Driver) SyncSingleFolder(ctx context.Context, accessToken, folderID string) (SyncReport, error) {
	return d.runSingle(ctx, accessToken, func(ctx context.Context, db sqlkit.Querier) (dirtySet, error) {
		return collectSingleFolder(ctx, db, folderID)
	})
}
