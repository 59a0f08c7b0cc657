package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the local sync_state bookkeeping row",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	db, closeDB, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	var lastSyncAt, pending, conflicts int64
	var lastErr *string
	row := db.QueryRowContext(ctx, `SELECT last_sync_at, pending_count, conflict_count, last_error FROM sync_state WHERE id = 1`)
	if err := row.Scan(&lastSyncAt, &pending, &conflicts, &lastErr); err != nil {
		return fmt.Errorf("read sync_state: %w", err)
	}

	fmt.Printf("last_sync_at:   %d\n", lastSyncAt)
	fmt.Printf("pending_count:  %d\n", pending)
	fmt.Printf("conflict_count: %d\n", conflicts)
	if lastErr != nil {
		fmt.Printf("last_error:     %s\n", *lastErr)
	}
	return nil
}
