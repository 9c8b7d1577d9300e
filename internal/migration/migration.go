package migration

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"loanaudit/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	logger  *zap.Logger
}

// NewRunner creates a new migration runner
func NewRunner(logger *zap.Logger) *MigrationRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationRunner{
		version: "1.0.0",
		logger:  logger.Named("migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range Statements() {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrapf(err, "failed to %s", step.Name))
		}
	}

	for _, idxSQL := range indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			r.logger.Warn("failed to create index", zap.String("statement", idxSQL), zap.Error(err))
		}
	}

	r.logger.Info("migrations applied", zap.String("version", r.version))
	return nil
}

// Step is one named schema statement
type Step struct {
	Name string
	SQL  string
}

// Statements returns the schema statements in execution order
func Statements() []Step {
	return []Step{
		{Name: "create provenance_entries table", SQL: createProvenanceEntries},
		{Name: "protect provenance_entries from updates", SQL: appendOnlyTrigger},
		{Name: "create audit_runs table", SQL: createAuditRuns},
	}
}

const createProvenanceEntries = `
	CREATE TABLE IF NOT EXISTS provenance_entries (
		seq BIGSERIAL PRIMARY KEY,
		id VARCHAR(64) UNIQUE NOT NULL,
		recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
		action VARCHAR(64) NOT NULL,
		description TEXT NOT NULL CHECK (length(trim(description)) > 0),
		actor VARCHAR(255) NOT NULL,
		run_id VARCHAR(64)
	)
`

// Rejects UPDATE and DELETE so the ledger stays append-only at the storage level
const appendOnlyTrigger = `
	DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_proc WHERE proname = 'provenance_entries_immutable') THEN
			CREATE FUNCTION provenance_entries_immutable() RETURNS trigger AS $f$
			BEGIN
				RAISE EXCEPTION 'provenance_entries is append-only';
			END;
			$f$ LANGUAGE plpgsql;
		END IF;

		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'provenance_entries_no_mutation') THEN
			CREATE TRIGGER provenance_entries_no_mutation
				BEFORE UPDATE OR DELETE ON provenance_entries
				FOR EACH ROW EXECUTE FUNCTION provenance_entries_immutable();
		END IF;
	END $$;
`

const createAuditRuns = `
	CREATE TABLE IF NOT EXISTS audit_runs (
		id VARCHAR(64) PRIMARY KEY,
		stage VARCHAR(32) NOT NULL,
		actor VARCHAR(255) NOT NULL,
		seed BIGINT,
		config JSONB,
		input_hash VARCHAR(64) NOT NULL,
		output_hash VARCHAR(64) NOT NULL DEFAULT '',
		rows_in INTEGER NOT NULL DEFAULT 0,
		rows_out INTEGER NOT NULL DEFAULT 0,
		fingerprint VARCHAR(64) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)
`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_provenance_action ON provenance_entries(action)",
	"CREATE INDEX IF NOT EXISTS idx_provenance_run_id ON provenance_entries(run_id)",
	"CREATE INDEX IF NOT EXISTS idx_runs_stage_created ON audit_runs(stage, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON audit_runs(fingerprint)",
}
