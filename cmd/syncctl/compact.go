package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notesync/core/internal/compaction"
)

var compactDryRun bool

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Run the client-startup tombstone purge (A7) if due",
	RunE:  runCompact,
}

func init() {
	compactCmd.Flags().BoolVar(&compactDryRun, "dry-run", false, "report rows eligible for purge without deleting them")
}

func runCompact(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, closeDB, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	cfg := compaction.DefaultConfig()
	cfg.DryRun = compactDryRun
	c := compaction.New(db, cfg)

	result, err := c.RunIfDue(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("purged: workspaces=%d folders=%d notes=%d tags=%d snapshots=%d (total=%d)\n",
		result.Workspaces, result.Folders, result.Notes, result.Tags, result.Snapshots, result.Total())
	return nil
}
