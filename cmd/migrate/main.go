// ==============================================================================
// CUSTODY LEDGER MIGRATIONS - cmd/migrate/main.go
// ==============================================================================
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"stakehub/pkg/config"
	"stakehub/pkg/logger"
)

const usage = "usage: migrate [up|down|version|force VERSION]"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New("migrate")

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required", nil)
	}
	if len(os.Args) < 2 {
		log.Fatal(usage, nil)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migration driver", map[string]interface{}{
			"error": err.Error(),
		})
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrate instance", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := run(m, os.Args[1:], log); err != nil {
		log.Fatal("Migration command failed", map[string]interface{}{
			"command": os.Args[1],
			"error":   err.Error(),
		})
	}
}

func run(m *migrate.Migrate, args []string, log logger.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Info("Migrations applied", nil)

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		log.Info("Migrations rolled back", nil)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("Current version: %d (dirty: %t)\n", version, dirty)

	case "force":
		if len(args) < 2 {
			return errors.New(usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := m.Force(version); err != nil {
			return err
		}
		log.Info("Forced migration version", map[string]interface{}{"version": version})

	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
	return nil
}
