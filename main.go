package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"loanaudit/internal/api"
	"loanaudit/internal/config"
	"loanaudit/internal/container"
	"loanaudit/internal/logging"
	"loanaudit/internal/metrics"
	"loanaudit/internal/ops"
)

const version = "1.0.0"

func main() {
	// Load environment variables from .env file
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
	defer logging.Install(logger)()

	if err := run(appConfig, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(appConfig *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		return err
	}
	defer appContainer.Shutdown(context.Background())

	if appConfig.Database.Enabled() {
		db, err := container.Connect(ctx, appConfig.Database, logger)
		if err != nil {
			return err
		}
		if err := appContainer.InitWithDatabase(ctx, db); err != nil {
			return err
		}
	} else {
		logger.Warn("DATABASE_URL not set, provenance ledger is kept in memory")
	}

	apiServer := api.NewServer(appContainer.Service, logger, api.Options{
		Addr:         ":" + appConfig.Server.Port,
		Mode:         appConfig.Server.GinMode,
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
		DefaultSeed:  appConfig.Audit.Seed,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiServer.Start(ctx) })
	if appConfig.Profiling.Enabled {
		opsServer := ops.NewServer(":"+appConfig.Profiling.Port, version, prometheus.DefaultGatherer, appContainer.ReadinessChecks(), logger)
		g.Go(func() error { return opsServer.Start(ctx) })
	}

	logger.Info("loanaudit started",
		zap.String("version", version),
		zap.String("actor", appContainer.Service.Actor()),
		zap.Bool("database", appConfig.Database.Enabled()))
	return g.Wait()
}
