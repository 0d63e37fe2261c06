package cmd

import (
	"github.com/spf13/cobra"
)

// migrateSQLCmd represents the migrate sql command
var migrateSQLCmd = &cobra.Command{
	Use:   "sql [database-url]",
	Short: "Create SQL schemas and apply migration plans",
	Long: `Applies the pending migrations to a postgres or sqlite3 database.
The database URL defaults to DATABASE_URL.`,
	Run: cmdHandler.Migration.MigrateSQL,
}

func init() {
	migrateCmd.AddCommand(migrateSQLCmd)

	migrateSQLCmd.Flags().String("driver", "postgres", "SQL driver, one of postgres or sqlite3")
}
