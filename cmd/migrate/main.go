// Command migrate applies or rolls back the ledger schema.
//
//	migrate up           apply all pending migrations
//	migrate down [n]     roll back n migrations (default 1)
//	migrate version      print the current schema version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"ledger-core/config"
	pgStorage "ledger-core/internal/adapter/storage/postgres"
	"ledger-core/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("LEDGER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if cmd == "up" {
		if err := pgStorage.MigrateUp(cfg.Database.DSN(), log); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		return
	}

	m, err := pgStorage.NewMigrator(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("open migrator")
	}
	defer m.Close() //nolint:errcheck

	switch cmd {
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			if steps, err = strconv.Atoi(os.Args[2]); err != nil || steps < 1 {
				log.Fatal().Str("arg", os.Args[2]).Msg("down takes a positive step count")
			}
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Int("steps", steps).Msg("rollback failed")
		}
		log.Info().Int("steps", steps).Msg("rolled back")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("read version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	default:
		log.Fatal().Str("command", cmd).Msg("unknown command, want up, down or version")
	}
}
