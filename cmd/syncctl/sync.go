package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notesync/core/internal/syncclient"
	"github.com/notesync/core/internal/tokenstore"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full sync cycle (C4)",
	RunE:  runFullSync,
}

var syncNoteCmd = &cobra.Command{
	Use:   "note <note-id>",
	Short: "Sync a single note and its dependents (C5)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSingleSync("note"),
}

var syncTagCmd = &cobra.Command{
	Use:   "tag <tag-id>",
	Short: "Sync a single tag (C5)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSingleSync("tag"),
}

var syncFolderCmd = &cobra.Command{
	Use:   "folder <folder-id>",
	Short: "Sync a folder and its transitive children (C5)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSingleSync("folder"),
}

var syncSnapshotCmd = &cobra.Command{
	Use:   "snapshot <snapshot-id>",
	Short: "Sync a single note snapshot (C5)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSingleSync("snapshot"),
}

func init() {
	syncCmd.AddCommand(syncNoteCmd, syncTagCmd, syncFolderCmd, syncSnapshotCmd)
}

func openDriver(ctx context.Context) (*syncclient.Driver, func(), string, error) {
	db, closeDB, err := openDB(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	store := tokenstore.New(db, appSalt)
	deviceID, _, err := store.CurrentUser(ctx)
	if err != nil {
		closeDB()
		return nil, nil, "", fmt.Errorf("no signed-in user, run `syncctl login` first: %w", err)
	}
	accessToken, _, err := store.Load(ctx, deviceID)
	if err != nil {
		closeDB()
		return nil, nil, "", fmt.Errorf("load stored tokens: %w", err)
	}

	driver := syncclient.NewDriver(db, serverURL, userAgent, appSalt, noRefresher{})
	return driver, closeDB, accessToken, nil
}

func runFullSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	driver, closeDB, accessToken, err := openDriver(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	report, err := driver.Sync(ctx, accessToken)
	printReport(report)
	return err
}

func runSingleSync(kind string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		driver, closeDB, accessToken, err := openDriver(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		id := args[0]
		var report syncclient.SyncReport
		switch kind {
		case "note":
			report, err = driver.SyncSingleNote(ctx, accessToken, id)
		case "tag":
			report, err = driver.SyncSingleTag(ctx, accessToken, id)
		case "folder":
			report, err = driver.SyncSingleFolder(ctx, accessToken, id)
		case "snapshot":
			report, err = driver.SyncSingleSnapshot(ctx, accessToken, id)
		}
		printReport(report)
		return err
	}
}

func printReport(report syncclient.SyncReport) {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Println("sync report:", report)
		return
	}
	fmt.Println(string(out))
}
