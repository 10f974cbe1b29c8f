package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"purchase-order-service/config"
	"purchase-order-service/internal/util"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	flag.Parse()
	args := flag.Args()

	cfg := config.Load()
	if err := util.InitLogger("purchase-order-migrate", cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	if len(args) < 1 {
		logger.Fatal("usage: migrate <up|down|version>")
	}

	m, err := migrate.New(cfg.Database.MigrationsPath, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer func() { _, _ = m.Close() }()

	switch command := args[0]; command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No pending migrations")
			return
		}
		if err != nil {
			logger.Fatal("Migration up failed", zap.Error(err))
		}
		logger.Info("Migrations applied")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("No migrations to roll back")
			return
		}
		if err != nil {
			logger.Fatal("Migration down failed", zap.Error(err))
		}
		logger.Info("Migration rolled back")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("No migrations applied yet")
			return
		}
		if err != nil {
			logger.Fatal("Failed to read version", zap.Error(err))
		}
		logger.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	default:
		logger.Fatal("Unknown command", zap.String("command", command))
	}
}
