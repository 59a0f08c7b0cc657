package sqlitestore

import (
	"context"
	"testing"
)

func TestOpen_AppliesSchemaAndSeedsSingletons(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sync_state WHERE id = 1`).Scan(&count); err != nil {
		t.Fatalf("query sync_state: %v", err)
	}
	if count != 1 {
		t.Fatalf("sync_state rows = %d, want 1", count)
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM settings WHERE id = 1`).Scan(&count); err != nil {
		t.Fatalf("query settings: %v", err)
	}
	if count != 1 {
		t.Fatalf("settings rows = %d, want 1", count)
	}
}

func TestOpen_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sync_state`).Scan(&count); err != nil {
		t.Fatalf("query sync_state: %v", err)
	}
	if count != 1 {
		t.Fatalf("sync_state rows = %d after re-migrate, want 1 (no duplicate singleton)", count)
	}
}

func TestOpen_NotesTableHasDirtyBitColumns(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO notes (id, user_id, title, content, created_at, updated_at, is_dirty)
		VALUES ('n1', 'u1', 't', 'c', 1, 1, 1)`)
	if err != nil {
		t.Fatalf("insert note: %v", err)
	}

	var dirty int
	if err := db.QueryRow(`SELECT is_dirty FROM notes WHERE id = 'n1'`).Scan(&dirty); err != nil {
		t.Fatalf("query note: %v", err)
	}
	if dirty != 1 {
		t.Fatalf("is_dirty = %d, want 1", dirty)
	}
}
