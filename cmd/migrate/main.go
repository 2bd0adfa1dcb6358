package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"petshop/internal/database"
	"petshop/internal/telemetry"
)

func main() {
	telemetry.InitLogger("petshop-migrate")

	databaseURI := flag.String("d", os.Getenv("DATABASE_URI"), "database URI")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		slog.Error("usage: migrate [-d uri] <up|down|version>")
		os.Exit(1)
	}
	if *databaseURI == "" {
		slog.Error("DATABASE_URI environment variable or -d flag is required")
		os.Exit(1)
	}

	db, err := database.NewDB(*databaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}

	m, err := database.NewMigrator(db)
	if err != nil {
		slog.Error("failed to create migrate instance", "error", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	switch command := args[0]; command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("no pending migrations")
			return
		}
		if err != nil {
			slog.Error("migration up failed", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied successfully")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("no migrations to rollback")
			return
		}
		if err != nil {
			slog.Error("migration down failed", "error", err)
			os.Exit(1)
		}
		slog.Info("migration rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			slog.Info("no migrations applied yet")
			return
		}
		if err != nil {
			slog.Error("failed to get version", "error", err)
			os.Exit(1)
		}
		slog.Info("current migration version", "version", version, "dirty", dirty)

	default:
		slog.Error("unknown command", "command", command)
		os.Exit(1)
	}
}
