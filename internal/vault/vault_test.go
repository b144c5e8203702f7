package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"liquidityPilot/internal/model"
)

type memoryProfiles struct {
	users   map[int64]*model.User
	upserts int
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{users: make(map[int64]*model.User)}
}

func (m *memoryProfiles) GetUser(_ context.Context, userID int64) (*model.User, error) {
	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *memoryProfiles) UpsertUser(_ context.Context, user *model.User) error {
	m.upserts++
	existing, ok := m.users[user.ID]
	if !ok {
		copied := *user
		m.users[user.ID] = &copied
		return nil
	}
	existing.ChatID = user.ChatID
	if user.WalletAddress != "" {
		existing.WalletAddress = user.WalletAddress
		existing.EncryptedKey = user.EncryptedKey
	}
	return nil
}

func TestProvisionIsIdempotent(t *testing.T) {
	profiles := newMemoryProfiles()
	v, err := New(profiles, "correct horse", nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	ctx := context.Background()

	first, created, err := v.Provision(ctx, 7, 70)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !created || !first.HasWallet() {
		t.Fatalf("expected new wallet, got %+v", first)
	}

	second, created, err := v.Provision(ctx, 7, 71)
	if err != nil {
		t.Fatalf("provision again: %v", err)
	}
	if created {
		t.Fatalf("expected existing wallet")
	}
	if second.WalletAddress != first.WalletAddress {
		t.Fatalf("wallet changed: %s != %s", second.WalletAddress, first.WalletAddress)
	}
	if profiles.users[7].ChatID != 71 {
		t.Fatalf("chat id not refreshed")
	}
}

func TestSigningKeyMatchesAddress(t *testing.T) {
	v, err := New(newMemoryProfiles(), "correct horse", nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	ctx := context.Background()
	user, _, err := v.Provision(ctx, 7, 70)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	key, err := v.SigningKey(ctx, 7)
	if err != nil {
		t.Fatalf("signing key: %v", err)
	}
	if got := crypto.PubkeyToAddress(key.PublicKey).Hex(); got != user.WalletAddress {
		t.Fatalf("address mismatch: %s != %s", got, user.WalletAddress)
	}

	exported, err := v.ExportKey(ctx, 7)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	imported, err := crypto.HexToECDSA(exported[2:])
	if err != nil {
		t.Fatalf("import exported key: %v", err)
	}
	if crypto.PubkeyToAddress(imported.PublicKey).Hex() != user.WalletAddress {
		t.Fatalf("exported key does not match wallet")
	}

	address, err := v.Address(ctx, 7)
	if err != nil || address != user.WalletAddress {
		t.Fatalf("address: %s %v", address, err)
	}
}

func TestSigningKeyWithoutWallet(t *testing.T) {
	v, err := New(newMemoryProfiles(), "correct horse", nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if _, err := v.SigningKey(context.Background(), 9); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
	if _, err := v.Address(context.Background(), 9); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestSigningKeyWrongPassphrase(t *testing.T) {
	profiles := newMemoryProfiles()
	v, err := New(profiles, "correct horse", nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if _, _, err := v.Provision(context.Background(), 7, 70); err != nil {
		t.Fatalf("provision: %v", err)
	}

	other, err := New(profiles, "battery staple", nil)
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if _, err := other.SigningKey(context.Background(), 7); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestEnvelopeBoundToOwner(t *testing.T) {
	sealed, err := seal("pass", []byte("secret"), ownerTag(1))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	plain, err := open("pass", sealed, ownerTag(1))
	if err != nil || string(plain) != "secret" {
		t.Fatalf("open: %q %v", plain, err)
	}
	if _, err := open("pass", sealed, ownerTag(2)); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed for other owner, got %v", err)
	}
	if _, err := open("pass", []byte("garbage"), ownerTag(1)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestNewRequiresPassphrase(t *testing.T) {
	if _, err := New(newMemoryProfiles(), "", nil); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
}
