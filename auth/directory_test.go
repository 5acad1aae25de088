package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mrkeshav-05/learning-backend/cache/memory"
)

func TestStoreDirectoryCreateNormalizes(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dir := NewStoreDirectory(memory.NewStore(), StoreDirectoryOptions{Now: fixedNow(created)})

	identity, err := dir.Create(context.Background(), Identity{
		Username:            "  Alice ",
		Email:               "Alice@Example.com",
		FullName:            "Alice",
		PasswordHash:        "hash",
		CurrentRefreshToken: "must-not-persist",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if identity.ID == "" {
		t.Fatal("Create() must assign an id")
	}
	if identity.Username != "alice" || identity.Email != "alice@example.com" {
		t.Fatalf("Create() = %+v, want normalized handles", identity)
	}
	if !identity.CreatedAt.Equal(created) || !identity.UpdatedAt.Equal(created) {
		t.Fatalf("timestamps = %v/%v, want %v", identity.CreatedAt, identity.UpdatedAt, created)
	}

	loaded, err := dir.FindByID(context.Background(), identity.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if loaded.PasswordHash != "hash" {
		t.Fatalf("PasswordHash = %q", loaded.PasswordHash)
	}
	if loaded.CurrentRefreshToken != "" {
		t.Fatalf("new identity has refresh slot %q", loaded.CurrentRefreshToken)
	}
}

func TestStoreDirectoryCreateConflicts(t *testing.T) {
	dir := newTestDirectory(t)
	seedIdentity(t, dir, "alice")

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"username taken", "ALICE", "other@example.com"},
		{"email taken", "bob", "alice@example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.Create(context.Background(), Identity{Username: tt.username, Email: tt.email})
			if !errors.Is(err, ErrConflict) {
				t.Fatalf("Create() error = %v, want ErrConflict", err)
			}
		})
	}

	// The username claimed before the email conflict must have been released.
	if _, err := dir.Create(context.Background(), Identity{Username: "bob", Email: "bob@example.com"}); err != nil {
		t.Fatalf("Create(bob) after rollback error = %v", err)
	}
}

func TestStoreDirectoryCreateRequiresHandles(t *testing.T) {
	dir := newTestDirectory(t)
	_, err := dir.Create(context.Background(), Identity{Username: " ", Email: "x@example.com"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation", err)
	}
}

func TestStoreDirectoryFindByUsernameOrEmail(t *testing.T) {
	dir := newTestDirectory(t)
	alice := seedIdentity(t, dir, "alice")
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		wantErr  error
	}{
		{"username", "Alice", "", nil},
		{"email", "", "ALICE@example.com", nil},
		{"unknown username falls through to email", "nobody", "alice@example.com", nil},
		{"both unknown", "nobody", "nobody@example.com", ErrNotFound},
		{"both empty", "", "", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.FindByUsernameOrEmail(ctx, tt.username, tt.email)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got.ID != alice.ID {
				t.Fatalf("got id %q, want %q", got.ID, alice.ID)
			}
		})
	}
}

func TestStoreDirectoryUnknownIdentity(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID() error = %v", err)
	}
	if err := dir.UpdateRefreshToken(ctx, "missing", "tok"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateRefreshToken() error = %v", err)
	}
	if err := dir.UpdatePasswordHash(ctx, "missing", "h"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdatePasswordHash() error = %v", err)
	}
}

func TestStoreDirectoryRefreshSlot(t *testing.T) {
	dir := newTestDirectory(t)
	alice := seedIdentity(t, dir, "alice")
	ctx := context.Background()

	if err := dir.UpdateRefreshToken(ctx, alice.ID, "r1"); err != nil {
		t.Fatalf("UpdateRefreshToken() error = %v", err)
	}
	got, _ := dir.FindByID(ctx, alice.ID)
	if got.CurrentRefreshToken != "r1" {
		t.Fatalf("slot = %q, want r1", got.CurrentRefreshToken)
	}
	if got.PasswordHash != alice.PasswordHash {
		t.Fatal("slot write must not touch the identity record")
	}

	if err := dir.UpdateRefreshToken(ctx, alice.ID, ""); err != nil {
		t.Fatalf("clear error = %v", err)
	}
	// Clearing an already empty slot is fine.
	if err := dir.UpdateRefreshToken(ctx, alice.ID, ""); err != nil {
		t.Fatalf("second clear error = %v", err)
	}
	got, _ = dir.FindByID(ctx, alice.ID)
	if got.CurrentRefreshToken != "" {
		t.Fatalf("slot = %q after clear", got.CurrentRefreshToken)
	}
}

func TestStoreDirectoryRefreshSlotExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	dir := NewStoreDirectory(memory.NewStore(memory.WithNow(clock)), StoreDirectoryOptions{
		RefreshTTL: time.Hour,
		Now:        clock,
	})
	alice := seedIdentity(t, dir, "alice")
	ctx := context.Background()

	if err := dir.UpdateRefreshToken(ctx, alice.ID, "r1"); err != nil {
		t.Fatalf("UpdateRefreshToken() error = %v", err)
	}
	now = now.Add(time.Hour)

	got, err := dir.FindByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.CurrentRefreshToken != "" {
		t.Fatalf("slot = %q, want expired", got.CurrentRefreshToken)
	}
}

func TestStoreDirectorySwapRefreshToken(t *testing.T) {
	dir := newTestDirectory(t)
	alice := seedIdentity(t, dir, "alice")
	ctx := context.Background()

	if ok, err := dir.SwapRefreshToken(ctx, alice.ID, "r1", "r2"); err != nil || ok {
		t.Fatalf("swap on empty slot = %v, %v; want false", ok, err)
	}
	if err := dir.UpdateRefreshToken(ctx, alice.ID, "r1"); err != nil {
		t.Fatalf("UpdateRefreshToken() error = %v", err)
	}
	if ok, _ := dir.SwapRefreshToken(ctx, alice.ID, "stale", "r2"); ok {
		t.Fatal("swap with stale token must fail")
	}
	if ok, _ := dir.SwapRefreshToken(ctx, alice.ID, "", "r2"); ok {
		t.Fatal("swap with empty current must fail")
	}
	if ok, err := dir.SwapRefreshToken(ctx, alice.ID, "r1", "r2"); err != nil || !ok {
		t.Fatalf("swap = %v, %v; want true", ok, err)
	}
	if ok, _ := dir.SwapRefreshToken(ctx, alice.ID, "r1", "r3"); ok {
		t.Fatal("second swap with the same token must fail")
	}

	got, _ := dir.FindByID(ctx, alice.ID)
	if got.CurrentRefreshToken != "r2" {
		t.Fatalf("slot = %q, want r2", got.CurrentRefreshToken)
	}
}

func TestStoreDirectoryUpdatePasswordHash(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	dir := NewStoreDirectory(memory.NewStore(), StoreDirectoryOptions{Now: clock})
	alice := seedIdentity(t, dir, "alice")
	ctx := context.Background()

	now = now.Add(time.Minute)
	if err := dir.UpdatePasswordHash(ctx, alice.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash() error = %v", err)
	}
	got, _ := dir.FindByID(ctx, alice.ID)
	if got.PasswordHash != "new-hash" {
		t.Fatalf("PasswordHash = %q", got.PasswordHash)
	}
	if !got.UpdatedAt.Equal(now) || !got.CreatedAt.Equal(alice.CreatedAt) {
		t.Fatalf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestStoreDirectoryHonorsCancellation(t *testing.T) {
	dir := newTestDirectory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := dir.FindByID(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("FindByID() error = %v", err)
	}
	if _, err := dir.SwapRefreshToken(ctx, "x", "a", "b"); !errors.Is(err, context.Canceled) {
		t.Fatalf("SwapRefreshToken() error = %v", err)
	}
}
