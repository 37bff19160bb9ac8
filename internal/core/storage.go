package core

import (
	"context"
	"fmt"
	"os"

	"geomodel/internal/infra/persistence/postgres"
	"geomodel/internal/infra/persistence/sqlite"
	"geomodel/pkg/domain"
)

// StorageDriver identifies a concrete snapshot persistence backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // no persistence (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a snapshot backend using environment variables
// and returns a store hydrated from it. Defaults to memory when unset.
//
//	GEOMODEL_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	GEOMODEL_SQLITE_PATH: path to sqlite file (default ./geomodel.db)
//	GEOMODEL_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(ctx context.Context, engine *RulesEngine) (*MemoryStore, error) {
	persister, err := openPersister(ctx, StorageDriver(os.Getenv("GEOMODEL_STORAGE_DRIVER")))
	if err != nil {
		return nil, err
	}
	store, err := NewPersistentStore(ctx, engine, persister)
	if err != nil {
		if persister != nil {
			_ = persister.Close()
		}
		return nil, err
	}
	return store, nil
}

func openPersister(ctx context.Context, driver StorageDriver) (domain.SnapshotPersister, error) {
	switch driver {
	case "", StorageMemory:
		return nil, nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("GEOMODEL_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(ctx, os.Getenv("GEOMODEL_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
