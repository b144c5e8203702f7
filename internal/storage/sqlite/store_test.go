package sqlite

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"liquidityPilot/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return store
}

func TestGetUserMissing(t *testing.T) {
	store := openTestStore(t)
	user, err := store.GetUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil user, got %+v", user)
	}
}

func TestUpsertUserKeepsWallet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	store.now = func() time.Time { return time.Unix(1000, 0) }

	sealed := []byte("sealed-envelope")
	if err := store.UpsertUser(ctx, &model.User{ID: 42, ChatID: 100, WalletAddress: "0xabc", EncryptedKey: sealed}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	store.now = func() time.Time { return time.Unix(2000, 0) }
	if err := store.UpsertUser(ctx, &model.User{ID: 42, ChatID: 101}); err != nil {
		t.Fatalf("touch: %v", err)
	}

	user, err := store.GetUser(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if user == nil || !user.HasWallet() {
		t.Fatalf("expected wallet to survive, got %+v", user)
	}
	if user.ChatID != 101 || user.WalletAddress != "0xabc" || !bytes.Equal(user.EncryptedKey, sealed) {
		t.Fatalf("user mismatch: %+v", user)
	}
	if user.CreatedAt.Unix() != 1000 || user.LastActive.Unix() != 2000 {
		t.Fatalf("timestamps mismatch: %v %v", user.CreatedAt, user.LastActive)
	}
}

func TestUpsertUserRequiresID(t *testing.T) {
	store := openTestStore(t)
	if err := store.UpsertUser(context.Background(), &model.User{}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
