package storage

import (
	"context"
	"fmt"

	"liquidityPilot/internal/model"
	"liquidityPilot/internal/storage/postgres"
	"liquidityPilot/internal/storage/sqlite"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ProfileStore persists chat users and their sealed wallets.
type ProfileStore interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) error
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Journal defines a sink for lifecycle records.
type Journal interface {
	PutJournal(ctx context.Context, records []model.JournalRecord) error
}

// OpenProfiles opens the profile store for driver and ensures its schema.
func OpenProfiles(ctx context.Context, driver, sqlitePath, pgDSN string) (ProfileStore, error) {
	var (
		store ProfileStore
		err   error
	)
	switch driver {
	case "", DriverSQLite:
		store, err = sqlite.NewStore(sqlitePath)
	case DriverPostgres:
		store, err = postgres.NewStore(ctx, pgDSN)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}
