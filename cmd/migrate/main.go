package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"loanaudit/internal/config"
	"loanaudit/internal/container"
	"loanaudit/internal/logging"
	"loanaudit/internal/migration"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(appConfig.Log.Level, appConfig.Log.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbConfig := appConfig.Database
	dbConfig.RunMigrations = false
	db, err := container.Connect(ctx, dbConfig, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := container.Migrate(ctx, db, migration.NewRunner(logger), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
