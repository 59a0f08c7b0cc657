// Package compaction implements A7: the client-startup purge of
// tombstoned rows older than the retention window (spec §6.3). Grounded
// on the teacher's repo's sibling internal/compact package's
// Config/New/Run shape (steveyegge-beads's tiered issue compactor),
// adapted here from an LLM-driven summarizer into a plain SQL retention
// sweep gated by a "last run" timestamp.
package compaction

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/notesync/core/internal/model"
	"github.com/notesync/core/internal/sqlkit"
)

// Config controls one compaction run.
type Config struct {
	RetentionDays int
	DryRun        bool
}

// DefaultConfig uses the retention window named by the data model (I7's
// sibling invariant in §3 lifecycles).
func DefaultConfig() *Config {
	return &Config{RetentionDays: model.SnapshotRetentionDays}
}

// Compactor purges tombstones from the client's local store.
type Compactor struct {
	db     sqlkit.Querier
	config *Config
}

func New(db sqlkit.Querier, config *Config) *Compactor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = model.SnapshotRetentionDays
	}
	return &Compactor{db: db, config: config}
}

// Result reports how many rows were purged per table.
type Result struct {
	Workspaces, Folders, Notes, Tags, Snapshots int
}

func (r Result) Total() int {
	return r.Workspaces + r.Folders + r.Notes + r.Tags + r.Snapshots
}

// RunIfDue purges rows with is_deleted = true and deleted_at older than
// the retention window, but only if it has not already run within the
// last retention window, per settings.last_compaction_at (spec §6.3:
// "runs only on demand at client startup, gated by a last run
// timestamp"). The default workspace is never eligible for deletion
// (I6), enforced by excluding is_default rows from the workspace purge.
func (c *Compactor) RunIfDue(ctx context.Context, now time.Time) (Result, error) {
	due, err := c.due(ctx, now)
	if err != nil {
		return Result{}, err
	}
	if !due {
		log.Debug().Msg("compaction skipped: ran within retention window")
		return Result{}, nil
	}
	return c.run(ctx, now)
}

func (c *Compactor) due(ctx context.Context, now time.Time) (bool, error) {
	var lastRun *int64
	row := c.db.QueryRowContext(ctx, `SELECT last_compaction_at FROM settings WHERE id = 1`)
	if err := row.Scan(&lastRun); err != nil {
		return false, fmt.Errorf("compaction: read settings: %w", err)
	}
	if lastRun == nil {
		return true, nil
	}
	cutoff := now.Add(-time.Duration(c.config.RetentionDays) * 24 * time.Hour).Unix()
	return *lastRun < cutoff, nil
}

func (c *Compactor) run(ctx context.Context, now time.Time) (Result, error) {
	cutoff := now.Add(-time.Duration(c.config.RetentionDays) * 24 * time.Hour).Unix()
	var result Result
	var err error

	if result.Workspaces, err = c.purge(ctx, "workspaces", cutoff, true); err != nil {
		return Result{}, err
	}
	if result.Folders, err = c.purge(ctx, "folders", cutoff, false); err != nil {
		return Result{}, err
	}
	if result.Notes, err = c.purge(ctx, "notes", cutoff, false); err != nil {
		return Result{}, err
	}
	if result.Tags, err = c.purge(ctx, "tags", cutoff, false); err != nil {
		return Result{}, err
	}
	if result.Snapshots, err = c.purge(ctx, "note_snapshots", cutoff, false); err != nil {
		return Result{}, err
	}

	if c.config.DryRun {
		log.Info().Int("total", result.Total()).Msg("compaction dry run: rows eligible for purge")
		return result, nil
	}

	_, err = c.db.ExecContext(ctx, `UPDATE settings SET last_compaction_at = ? WHERE id = 1`, now.Unix())
	if err != nil {
		return Result{}, fmt.Errorf("compaction: update last_compaction_at: %w", err)
	}
	log.Info().Int("total", result.Total()).Msg("compaction completed")
	return result, nil
}

func (c *Compactor) purge(ctx context.Context, table string, cutoff int64, guardDefault bool) (int, error) {
	query := `DELETE FROM ` + table + ` WHERE is_deleted = 1 AND deleted_at IS NOT NULL AND deleted_at < ?`
	if guardDefault {
		query += ` AND is_default = 0`
	}
	if c.config.DryRun {
		query = `SELECT COUNT(*) FROM ` + table + ` WHERE is_deleted = 1 AND deleted_at IS NOT NULL AND deleted_at < ?`
		if guardDefault {
			query += ` AND is_default = 0`
		}
		var n int
		row := c.db.QueryRowContext(ctx, query, cutoff)
		if err := row.Scan(&n); err != nil {
			return 0, fmt.Errorf("compaction: count eligible %s: %w", table, err)
		}
		return n, nil
	}

	res, err := c.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("compaction: purge %s: %w", table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("compaction: rows affected for %s: %w", table, err)
	}
	return int(affected), nil
}
