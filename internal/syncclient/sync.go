package syncclient

import (
	"context"

	"github.com/notesync/core/internal/sqlkit"
)

// Sync runs the full C4 pipeline (spec §4.4.1): begin session, collect
// the dirty set, build and send the request (with auth retry), apply the
// response, clear dirty bits scoped to the request, and update
// sync_state. accessToken is the current access token; a 401 mid-flight
// triggers exactly one refresh via d.Refresher.
func (d *Driver) Sync(ctx context.Context, accessToken string) (SyncReport, error) {
	sess, err := beginSession(ctx, d.DB)
	if err != nil {
		return errorReport(err), err
	}

	if err := sess.checkpoint(ctx, d.DB); err != nil {
		return errorReport(err), err
	}
	set, err := collectDirty(ctx, d.DB, sess.WorkspaceID)
	if err != nil {
		return errorReport(err), err
	}

	if err := sess.checkpoint(ctx, d.DB); err != nil {
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
		// Rows successfully applied above stay applied; only the dirty-bit
		// clear and sync_state update are skipped (spec §4.4.1's per-step
		// checkpoints bound how much of the pipeline a cancellation undoes).
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

// updateSyncState stores last_sync_at and conflict_count, and recomputes
// pending_count from the remaining dirty rows (spec §4.4.1 step 9).
func updateSyncState(ctx context.Context, db sqlkit.Querier, lastSyncAt int64, conflictCount int) error {
	pending, err := countPending(ctx, db)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		UPDATE sync_state SET last_sync_at = ?, conflict_count = ?, pending_count = ?, last_error = NULL
		WHERE id = 1
	`, lastSyncAt, conflictCount, pending)
	if err != nil {
		return wrapDBErr("update sync_state", err)
	}
	return nil
}

func countPending(ctx context.Context, db sqlkit.Querier) (int, error) {
	tables := []string{"workspaces", "notes", "folders", "tags", "note_snapshots"}
	total := 0
	for _, t := range tables {
		var n int
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t+` WHERE is_dirty = 1`)
		if err := row.Scan(&n); err != nil {
			return 0, wrapDBErr("count pending in "+t, err)
		}
		total += n
	}
	return total, nil
}
