package cli

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	colorable "github.com/mattn/go-colorable"
	"github.com/nsyszr/soilcontrol/config"
	"github.com/nsyszr/soilcontrol/pkg/storage/sqlstore"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	// SQL drivers supported by the migrate sql command
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type MigrateHandler struct {
	c *config.Config
}

func newMigrateHandler(c *config.Config) *MigrateHandler {
	return &MigrateHandler{c: c}
}

func getDatabaseURL(cmd *cobra.Command, args []string, position int, fallback string) (url string) {
	if len(args) > position {
		url = args[position]
	}
	if url == "" {
		url = fallback
	}

	if url == "" {
		fmt.Println(cmd.UsageString())
		return
	}
	return
}

func (h *MigrateHandler) MigrateSQL(cmd *cobra.Command, args []string) {
	url := getDatabaseURL(cmd, args, 0, h.c.DatabaseURL)
	if url == "" {
		os.Exit(2) // Return missing keyword or command
	}

	driver, _ := cmd.Flags().GetString("driver")
	if driver != "postgres" && driver != "sqlite3" {
		fmt.Printf("Unsupported SQL driver '%s'\n", driver)
		os.Exit(2)
	}

	log.SetLevel(log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{
		ForceColors: true,
	})
	log.SetOutput(colorable.NewColorableStdout())

	log.Info("Applying SQL migration...")

	db, err := sqlx.Open(driver, url)
	if err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}
	defer db.Close()

	// Check the database connection
	if err := db.Ping(); err != nil {
		log.Errorf("An error occurred while connecting to SQL: %s", err)
		os.Exit(1)
	}

	n, err := sqlstore.Migrate(db)
	if err != nil {
		log.Errorf("An error occurred while running the migrations: %s", err)
		os.Exit(1)
	}
	log.Infof("Migration successful! Applied a total of %d migrations.", n)
}
