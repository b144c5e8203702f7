package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityPilot/internal/model"
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id BIGINT PRIMARY KEY,
		chat_id BIGINT NOT NULL,
		wallet_address TEXT NOT NULL DEFAULT '',
		encrypted_key BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_active TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_active ON users (last_active);
`

// Store provides Postgres persistence for chat users.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates the users table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUser returns nil when the user is unknown.
func (s *Store) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, chat_id, wallet_address, encrypted_key, created_at, last_active
		FROM users WHERE user_id=$1
	`, userID)

	var user model.User
	if err := row.Scan(&user.ID, &user.ChatID, &user.WalletAddress, &user.EncryptedKey, &user.CreatedAt, &user.LastActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpsertUser inserts or updates a user. An empty wallet never replaces an
// existing one.
func (s *Store) UpsertUser(ctx context.Context, user *model.User) error {
	if user == nil || user.ID == 0 {
		return fmt.Errorf("user id required")
	}
	var key interface{}
	if len(user.EncryptedKey) > 0 {
		key = user.EncryptedKey
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, chat_id, wallet_address, encrypted_key, created_at, last_active)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			wallet_address = COALESCE(NULLIF(EXCLUDED.wallet_address, ''), users.wallet_address),
			encrypted_key = COALESCE(EXCLUDED.encrypted_key, users.encrypted_key),
			last_active = now()
	`, user.ID, user.ChatID, user.WalletAddress, key)
	return err
}
