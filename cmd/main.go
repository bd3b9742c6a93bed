package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ExpenseCertify/internal/appmanager"
	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/store"
)

func main() {
	// Load .env for local dev; deployed environments set variables directly
	_ = godotenv.Load(".env", "../.env")
	settings := config.Load()
	log := logger.Component("main")

	db, err := sql.Open("postgres", settings.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()
	appmanager.SetDB(db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := pgxpool.New(ctx, settings.DatabaseURL)
	if err != nil {
		log.WithError(err).Warn("pgx pool unavailable, bulk writes fall back to inserts")
	} else {
		defer pool.Close()
		appmanager.SetPgxPool(pool)
	}
	if err := store.New(db, nil).Migrate(ctx); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to migrate schema")
	}
	cancel()

	manager := appmanager.NewAppManager()

	servicesCfg, err := appmanager.LoadServiceSequence(settings.ServicesFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load service sequence")
	}
	manager.AutoRegisterServices(servicesCfg)

	if err := manager.StartAll(); err != nil {
		log.WithError(err).Fatal("failed to start")
	}

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.WithError(err).Error("failed to stop cleanly")
	}
}
