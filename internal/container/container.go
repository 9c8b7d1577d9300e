package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"loanaudit/adapters/excel"
	"loanaudit/adapters/postgres"
	"loanaudit/app"
	"loanaudit/domain/provenance"
	"loanaudit/internal/config"
	"loanaudit/internal/errors"
	"loanaudit/internal/migration"
	"loanaudit/internal/ops"
	"loanaudit/internal/testkit"
	"loanaudit/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure; DB is nil when the ledger is kept in memory
	DB *sqlx.DB

	// Ports
	Ledger ports.ProvenanceStore
	Runs   ports.AuditRunRepository
	Reader ports.DatasetReader
	RNG    ports.RNGPort

	Service *app.AuditService
}

// New creates a container with in-memory storage. Call InitWithDatabase to
// switch the ledger and run records to PostgreSQL before using Service.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	readerCfg := excel.DefaultReaderConfig()
	readerCfg.Sheet = cfg.Audit.Sheet

	c := &Container{
		Config: cfg,
		Logger: logger,
		Ledger: provenance.NewLedger(),
		Runs:   testkit.NewInMemoryRunRepository(),
		Reader: excel.NewDataReader(readerCfg, logger),
		RNG:    &testkit.RNGAdapter{},
	}
	c.initService()
	return c, nil
}

// Connect opens the configured database, applying migrations when enabled
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to connect to database"))
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.RunMigrations {
		if err := Migrate(ctx, db, migration.NewRunner(logger), logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies the schema with the given migrator
func Migrate(ctx context.Context, db *sqlx.DB, m migration.Migrator, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := m.Run(ctx, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}
	logger.Info("schema is up to date", zap.String("version", m.Version()))
	return nil
}

// InitWithDatabase moves the ledger and run records to PostgreSQL
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.PingContext(ctx); err != nil {
		return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "database connection test failed"))
	}

	c.DB = db
	c.Ledger = postgres.NewProvenanceRepository(db)
	c.Runs = postgres.NewRunRepository(db)
	c.initService()

	c.Logger.Info("container initialized with database ledger")
	return nil
}

func (c *Container) initService() {
	c.Service = app.NewAuditService(c.Ledger, c.Runs, c.RNG, c.Reader, c.Logger, app.ServiceOptions{
		Actor: c.Config.Audit.Actor,
	})
}

// ReadinessChecks returns the dependency checks for the ops server
func (c *Container) ReadinessChecks() map[string]ops.ReadinessCheck {
	checks := map[string]ops.ReadinessCheck{}
	if c.DB != nil {
		checks["database"] = c.DB.PingContext
	}
	return checks
}

// Shutdown releases held resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to close database"))
		}
	}
	return nil
}
