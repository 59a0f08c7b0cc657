package synctx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
	"github.com/notesync/core/internal/synclock"
)

// HistoryRecorder appends one row per completed sync call (spec §6.2
// sync_history). Implemented by internal/synchistory; kept as a narrow
// interface here so synctx does not depend on that package's storage
// details.
type HistoryRecorder interface {
	Record(ctx context.Context, userID, syncType string, pushed, pulled, conflicts int, errMsg string, durationMs int64) error
}

// Transactor is the single entry point for C3: one call absorbs a
// client's push, evaluates conflicts, reads the pull window, and returns
// one response, all inside one DB transaction guarded by one advisory
// lock lease (spec §4.3).
type Transactor struct {
	db      sqlkit.DB
	locks   *synclock.Manager
	history HistoryRecorder
	newID   func() string
}

func New(db sqlkit.DB, locks *synclock.Manager) *Transactor {
	return &Transactor{
		db:    db,
		locks: locks,
		newID: func() string { return uuid.New().String() },
	}
}

// WithHistory attaches a sync_history recorder.
func (t *Transactor) WithHistory(h HistoryRecorder) *Transactor {
	t.history = h
	return t
}

// Sync implements the full C3 contract (spec §4.3.1-§4.3.6).
func (t *Transactor) Sync(ctx context.Context, userID string, req *Request) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		if err != nil && t.history != nil {
			_ = t.history.Record(ctx, userID, "full", 0, 0, 0, err.Error(), time.Since(start).Milliseconds())
		}
	}()

	workspaceID, err := bindWorkspace(ctx, t.db, userID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	deviceID := ""
	if req.DeviceID != nil {
		deviceID = *req.DeviceID
	}
	lease, err := t.locks.Acquire(ctx, userID, deviceID, workspaceID, synclock.DefaultTTL)
	if err != nil {
		return nil, err
	}
	defer lease.Release(ctx)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	byDevice := deviceLabel(req.DeviceID, req.DeviceLabel)
	resolution := req.resolution()

	var tally pushTally
	var conflicts []model.ConflictInfo

	tally.workspaces, conflicts, err = pushWorkspaces(ctx, tx, userID, req.Workspaces, req.DeviceID, byDevice, now)
	if err != nil {
		return nil, err
	}
	tally.conflicts = append(tally.conflicts, conflicts...)

	tally.notes, conflicts, err = pushNotes(ctx, tx, userID, req.Notes, workspaceID, req.DeviceID, byDevice, now, resolution, t.newID)
	if err != nil {
		return nil, err
	}
	tally.conflicts = append(tally.conflicts, conflicts...)

	tally.folders, conflicts, err = pushFolders(ctx, tx, userID, req.Folders, workspaceID, req.DeviceID, byDevice, now)
	if err != nil {
		return nil, err
	}
	tally.conflicts = append(tally.conflicts, conflicts...)

	tally.tags, conflicts, err = pushTags(ctx, tx, userID, req.Tags, workspaceID, req.DeviceID, byDevice, now)
	if err != nil {
		return nil, err
	}
	tally.conflicts = append(tally.conflicts, conflicts...)

	tally.snapshots, conflicts, err = pushSnapshots(ctx, tx, userID, req.Snapshots, workspaceID, req.DeviceID, byDevice, now)
	if err != nil {
		return nil, err
	}
	tally.conflicts = append(tally.conflicts, conflicts...)

	tally.noteTags, err = pushNoteTags(ctx, tx, userID, req.NoteTags, workspaceID, now)
	if err != nil {
		return nil, err
	}

	pull, err := pullWindow(ctx, tx, userID, workspaceID, req.lastSyncAt())
	if err != nil {
		return nil, err
	}

	resp = buildResponse(req, pull, tally, now, now)

	if err := tx.Commit(); err != nil {
		return nil, dbErr(err)
	}
	committed = true

	if t.history != nil {
		errMsg := ""
		_ = t.history.Record(ctx, userID, "full", resp.PushedTotal, resp.PulledTotal, len(resp.Conflicts), errMsg, time.Since(start).Milliseconds())
	}

	return resp, nil
}
