package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"liquidityPilot/internal/model"
)

// Store provides SQLite persistence for chat users.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the users table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			wallet_address TEXT NOT NULL DEFAULT '',
			encrypted_key BLOB,
			created_at INTEGER NOT NULL,
			last_active INTEGER NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init users schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser returns nil when the user is unknown.
func (s *Store) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, chat_id, wallet_address, encrypted_key, created_at, last_active
		FROM users WHERE user_id = ?`, userID)

	var (
		user                  model.User
		createdAt, lastActive int64
	)
	err := row.Scan(&user.ID, &user.ChatID, &user.WalletAddress, &user.EncryptedKey, &createdAt, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	user.LastActive = time.Unix(lastActive, 0).UTC()
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
	now := s.now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, chat_id, wallet_address, encrypted_key, created_at, last_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			chat_id = excluded.chat_id,
			wallet_address = COALESCE(NULLIF(excluded.wallet_address, ''), users.wallet_address),
			encrypted_key = COALESCE(excluded.encrypted_key, users.encrypted_key),
			last_active = excluded.last_active`,
		user.ID, user.ChatID, user.WalletAddress, key, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
