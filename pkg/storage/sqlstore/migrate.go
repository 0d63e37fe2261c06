package sqlstore

import (
	"github.com/jmoiron/sqlx"
	"github.com/nsyszr/soilcontrol/db"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

// Migrate applies all pending schema migrations and returns the number of
// applied migrations.
func Migrate(conn *sqlx.DB) (int, error) {
	n, err := migrate.Exec(conn.DB, conn.DriverName(), db.Migrations(), migrate.Up)
	if err != nil {
		return 0, errors.Wrap(err, "failed to apply migrations")
	}
	return n, nil
}
