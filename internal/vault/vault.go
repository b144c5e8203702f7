// Package vault provisions per-user signing keys and keeps them sealed at
// rest in the profile store.
package vault

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"liquidityPilot/internal/lperr"
	"liquidityPilot/internal/model"
)

var ErrNoWallet = lperr.New(lperr.CodePrecondition, "you have no wallet yet, use /start to create one")

// Profiles is the subset of the profile store the vault needs.
type Profiles interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) error
}

type Vault struct {
	profiles   Profiles
	passphrase string
	logger     *zap.Logger
}

func New(profiles Profiles, passphrase string, logger *zap.Logger) (*Vault, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vault{profiles: profiles, passphrase: passphrase, logger: logger}, nil
}

// Provision creates a wallet for userID unless one exists. created reports
// whether a new key was generated. Callers serialize provisioning per user.
func (v *Vault) Provision(ctx context.Context, userID, chatID int64) (user *model.User, created bool, err error) {
	user, err = v.profiles.GetUser(ctx, userID)
	if err != nil {
		return nil, false, lperr.Wrap(lperr.CodeUnavailable, "profile store unavailable", err)
	}
	if user.HasWallet() {
		user.ChatID = chatID
		if err := v.profiles.UpsertUser(ctx, &model.User{ID: userID, ChatID: chatID}); err != nil {
			v.logger.Warn("touch user failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return user, false, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, false, fmt.Errorf("generate key: %w", err)
	}
	raw := crypto.FromECDSA(key)
	defer zeroBytes(raw)

	sealed, err := seal(v.passphrase, raw, ownerTag(userID))
	if err != nil {
		return nil, false, fmt.Errorf("seal key: %w", err)
	}
	user = &model.User{
		ID:            userID,
		ChatID:        chatID,
		WalletAddress: crypto.PubkeyToAddress(key.PublicKey).Hex(),
		EncryptedKey:  sealed,
	}
	if err := v.profiles.UpsertUser(ctx, user); err != nil {
		return nil, false, lperr.Wrap(lperr.CodeUnavailable, "profile store unavailable", err)
	}
	v.logger.Info("wallet provisioned", zap.Int64("user_id", userID), zap.String("address", user.WalletAddress))
	return user, true, nil
}

// SigningKey decrypts the user's key. Keys are never cached.
func (v *Vault) SigningKey(ctx context.Context, userID int64) (*ecdsa.PrivateKey, error) {
	raw, err := v.rawKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(raw)

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return key, nil
}

// ExportKey returns the hex-encoded private key.
func (v *Vault) ExportKey(ctx context.Context, userID int64) (string, error) {
	raw, err := v.rawKey(ctx, userID)
	if err != nil {
		return "", err
	}
	defer zeroBytes(raw)
	return hexutil.Encode(raw), nil
}

// Address returns the wallet address of userID.
func (v *Vault) Address(ctx context.Context, userID int64) (string, error) {
	user, err := v.profiles.GetUser(ctx, userID)
	if err != nil {
		return "", lperr.Wrap(lperr.CodeUnavailable, "profile store unavailable", err)
	}
	if !user.HasWallet() {
		return "", ErrNoWallet
	}
	return user.WalletAddress, nil
}

func (v *Vault) rawKey(ctx context.Context, userID int64) ([]byte, error) {
	user, err := v.profiles.GetUser(ctx, userID)
	if err != nil {
		return nil, lperr.Wrap(lperr.CodeUnavailable, "profile store unavailable", err)
	}
	if !user.HasWallet() {
		return nil, ErrNoWallet
	}
	raw, err := open(v.passphrase, user.EncryptedKey, ownerTag(userID))
	if err != nil {
		return nil, lperr.Wrap(lperr.CodeInternal, "wallet key cannot be decrypted", err)
	}
	return raw, nil
}

func ownerTag(userID int64) []byte {
	return []byte("user:" + strconv.FormatInt(userID, 10))
}
