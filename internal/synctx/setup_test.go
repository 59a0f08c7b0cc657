package synctx

import (
	"context"
	"errors"
	"testing"

	"github.com/notesync/core/internal/syncerr"
)

func seedWS(store *fakeStore, id, userID string, isDefault, isDeleted bool) {
	store.workspaces = append(store.workspaces, map[string]any{
		"id": id, "user_id": userID, "name": "ws", "description": (*string)(nil),
		"icon": (*string)(nil), "color": (*string)(nil), "is_default": isDefault, "sort_order": 0,
		"is_deleted": isDeleted, "deleted_at": (*int64)(nil),
		"created_at": int64(1), "updated_at": int64(1), "server_ver": int64(1),
		"device_id": (*string)(nil), "updated_by_device": (*string)(nil),
	})
}

// P6: when no workspace is requested, the user's default workspace is
// resolved, and it is never a deleted one.
func TestBindWorkspace_ResolvesDefault(t *testing.T) {
	store := newFakeStore()
	db := &fakeDB{store: store}
	ctx := context.Background()
	seedWS(store, "w-default", "u1", true, false)
	seedWS(store, "w-other", "u1", false, false)

	id, err := bindWorkspace(ctx, db, "u1", nil)
	if err != nil {
		t.Fatalf("bindWorkspace: %v", err)
	}
	if id == nil || *id != "w-default" {
		t.Fatalf("bindWorkspace = %v, want w-default", id)
	}
}

// A deleted default workspace is never resolved.
func TestBindWorkspace_SkipsDeletedDefault(t *testing.T) {
	store := newFakeStore()
	db := &fakeDB{store: store}
	ctx := context.Background()
	seedWS(store, "w-gone", "u1", true, true)

	id, err := bindWorkspace(ctx, db, "u1", nil)
	if err != nil {
		t.Fatalf("bindWorkspace: %v", err)
	}
	if id != nil {
		t.Fatalf("bindWorkspace = %v, want nil (no usable default)", id)
	}
}

// Requesting a workspace owned by a different user is rejected.
func TestBindWorkspace_RejectsUnowned(t *testing.T) {
	store := newFakeStore()
	db := &fakeDB{store: store}
	ctx := context.Background()
	seedWS(store, "w1", "someone-else", false, false)

	_, err := bindWorkspace(ctx, db, "u1", strPtr("w1"))
	if !errors.Is(err, syncerr.ErrOwnership) {
		t.Fatalf("err = %v, want ErrOwnership", err)
	}
}

// Requesting an explicitly deleted workspace is rejected the same way.
func TestBindWorkspace_RejectsDeleted(t *testing.T) {
	store := newFakeStore()
	db := &fakeDB{store: store}
	ctx := context.Background()
	seedWS(store, "w1", "u1", false, true)

	_, err := bindWorkspace(ctx, db, "u1", strPtr("w1"))
	if !errors.Is(err, syncerr.ErrOwnership) {
		t.Fatalf("err = %v, want ErrOwnership", err)
	}
}

func strPtr(s string) *string { return &s }
