package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"loanaudit/domain/core"
	"loanaudit/domain/run"
	apperrors "loanaudit/internal/errors"
	"loanaudit/ports"
)

// runRepository implements ports.AuditRunRepository
type runRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new audit run repository
func NewRunRepository(db *sqlx.DB) ports.AuditRunRepository {
	return &runRepository{db: db}
}

const runColumns = `id, stage, actor, seed, config, input_hash, output_hash, rows_in, rows_out, fingerprint, created_at`

// Save inserts a run record
func (r *runRepository) Save(ctx context.Context, ar *run.AuditRun) error {
	query := `INSERT INTO audit_runs (` + runColumns + `) VALUES (
		$1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11
	)`
	config := string(ar.Config)
	if config == "" {
		config = "null"
	}
	_, err := r.db.ExecContext(ctx, query,
		string(ar.ID), string(ar.Stage), ar.Actor, ar.Seed, config, string(ar.InputHash), string(ar.OutputHash),
		ar.RowsIn, ar.RowsOut, string(ar.Fingerprint), ar.CreatedAt,
	)
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, apperrors.Wrap(err, "failed to save audit run"))
	}
	return nil
}

// Get retrieves a run by ID
func (r *runRepository) Get(ctx context.Context, id core.RunID) (*run.AuditRun, error) {
	var ar run.AuditRun
	err := r.db.GetContext(ctx, &ar, `SELECT `+runColumns+` FROM audit_runs WHERE id = $1`, string(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.WithCode(apperrors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrRunNotFound, id))
		}
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, apperrors.Wrap(err, "failed to get audit run"))
	}
	return &ar, nil
}

// List returns runs newest first
func (r *runRepository) List(ctx context.Context, filter run.Filter) ([]run.AuditRun, error) {
	query, args := buildRunQuery(filter)
	var runs []run.AuditRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, apperrors.Wrap(err, "failed to list audit runs"))
	}
	return runs, nil
}

func buildRunQuery(filter run.Filter) (string, []interface{}) {
	var args []interface{}
	var b strings.Builder
	b.WriteString("SELECT " + runColumns + " FROM audit_runs")
	if filter.Stage != "" {
		args = append(args, string(filter.Stage))
		fmt.Fprintf(&b, " WHERE stage = $%d", len(args))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
