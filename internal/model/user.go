package model

import "time"

// User is a chat user with an optional provisioned wallet. EncryptedKey is a
// sealed envelope, never the raw key.
type User struct {
	ID            int64     `json:"id"`
	ChatID        int64     `json:"chat_id"`
	WalletAddress string    `json:"wallet_address"`
	EncryptedKey  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	LastActive    time.Time `json:"last_active"`
}

// HasWallet reports whether a signing key has been provisioned.
func (u *User) HasWallet() bool {
	return u != nil && u.WalletAddress != "" && len(u.EncryptedKey) > 0
}
