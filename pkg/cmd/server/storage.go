package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nsyszr/soilcontrol/config"
	"github.com/nsyszr/soilcontrol/pkg/storage"
	"github.com/nsyszr/soilcontrol/pkg/storage/memory"
	"github.com/nsyszr/soilcontrol/pkg/storage/mongo"
	"github.com/nsyszr/soilcontrol/pkg/storage/sqlstore"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite3"
	StorageDriverMongo    = "mongo"
)

// OpenStore returns the store selected by the storage driver setting.
// SQLite databases are migrated on open, PostgreSQL databases are migrated
// with the migrate sql command.
func OpenStore(ctx context.Context, c *config.Config) (storage.Interface, error) {
	switch c.StorageDriver {
	case "", StorageDriverMemory:
		log.Warn("Using the in-memory store, data is lost on shutdown")
		return memory.NewStore(), nil

	case StorageDriverPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", c.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to postgres")
		}
		return sqlstore.NewStore(db), nil

	case StorageDriverSQLite:
		db, err := sqlx.ConnectContext(ctx, "sqlite3", c.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open sqlite database")
		}
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)

		n, err := sqlstore.Migrate(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.Infof("Applied %d SQL migrations", n)
		return sqlstore.NewStore(db), nil

	case StorageDriverMongo:
		return mongo.Connect(ctx, c.MongoURL, c.MongoDatabase)
	}

	return nil, fmt.Errorf("unknown storage driver '%s'", c.StorageDriver)
}
