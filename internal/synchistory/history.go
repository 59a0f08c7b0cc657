// Package synchistory implements A4: an append-only log of completed
// sync calls (spec §6.2 sync_history), satisfying synctx.HistoryRecorder.
// Grounded on
// original_source/note-sync-server/src/services/sync_history_service.rs
// (create/list/clear/delete_before), ported from sqlx to database/sql.
package synchistory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/notesync/core/internal/sqlkit"
)

// Recorder appends rows to the sync_history table.
type Recorder struct {
	db sqlkit.Querier
}

func New(db sqlkit.Querier) *Recorder {
	return &Recorder{db: db}
}

// Record implements synctx.HistoryRecorder: one row per completed sync
// call, success or failure (errMsg empty on success).
func (r *Recorder) Record(ctx context.Context, userID, syncType string, pushed, pulled, conflicts int, errMsg string, durationMs int64) error {
	id := uuid.New().String()
	now := time.Now().Unix()

	var errVal any
	if errMsg != "" {
		errVal = errMsg
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_history
			(id, user_id, sync_type, pushed_count, pulled_count, conflict_count, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, userID, syncType, pushed, pulled, conflicts, errVal, durationMs, now)
	return err
}

// Entry is one row of a user's sync history, returned by List.
type Entry struct {
	ID            string
	UserID        string
	SyncType      string
	PushedCount   int
	PulledCount   int
	ConflictCount int
	Error         *string
	DurationMs    int64
	CreatedAt     int64
}

// List returns a user's most recent sync_history rows, newest first,
// capped at 100 per the original service's limit.min(100) rule.
func (r *Recorder) List(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, sync_type, pushed_count, pulled_count, conflict_count, error, duration_ms, created_at
		FROM sync_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SyncType, &e.PushedCount, &e.PulledCount,
			&e.ConflictCount, &e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear deletes all sync_history rows for a user.
func (r *Recorder) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_history WHERE user_id = ?`, userID)
	return err
}

// DeleteBefore removes history rows older than the given cutoff, mirroring
// delete_before's retention-trim role in the original service.
func (r *Recorder) DeleteBefore(ctx context.Context, userID string, beforeUnix int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_history WHERE user_id = ? AND created_at < ?`, userID, beforeUnix)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
