package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/safar/go-pos-register/internal/config"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: go run scripts/run_migrations.go [up|down]")
		os.Exit(2)
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("pos-register-migrate", cfg.Log.Level)

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	files, err := database.Migrate(ctx, db, direction)
	if err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, name := range files {
		log.Info("ran migration", slog.String("file", name))
	}
	log.Info("migrations complete",
		slog.String("direction", direction),
		slog.Int("count", len(files)),
	)
}
