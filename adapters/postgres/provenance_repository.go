package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"loanaudit/domain/core"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
	"loanaudit/ports"
)

// provenanceRepository implements ports.ProvenanceStore on an append-only table
type provenanceRepository struct {
	db *sqlx.DB
}

// NewProvenanceRepository creates a new provenance repository
func NewProvenanceRepository(db *sqlx.DB) ports.ProvenanceStore {
	return &provenanceRepository{db: db}
}

type entryRow struct {
	ID          string         `db:"id"`
	RecordedAt  time.Time      `db:"recorded_at"`
	Action      string         `db:"action"`
	Description string         `db:"description"`
	Actor       string         `db:"actor"`
	RunID       sql.NullString `db:"run_id"`
}

func (r entryRow) toEntry() provenance.Entry {
	return provenance.Entry{
		ID:          core.EntryID(r.ID),
		Timestamp:   r.RecordedAt.UTC(),
		Action:      provenance.ActionKind(r.Action),
		Description: r.Description,
		Actor:       r.Actor,
		RunID:       core.RunID(r.RunID.String),
	}
}

// Append inserts an entry. Rows are never updated or deleted.
func (r *provenanceRepository) Append(ctx context.Context, entry provenance.Entry) error {
	if err := entry.Validate(); err != nil {
		return apperrors.WithCode(apperrors.CodeValidationError, err)
	}

	query := `INSERT INTO provenance_entries (
		id, recorded_at, action, description, actor, run_id
	) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`

	_, err := r.db.ExecContext(ctx, query,
		string(entry.ID), entry.Timestamp, string(entry.Action), entry.Description, entry.Actor, string(entry.RunID),
	)
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, apperrors.Wrap(err, "failed to append provenance entry"))
	}
	return nil
}

// List returns matching entries in append order
func (r *provenanceRepository) List(ctx context.Context, filter provenance.Filter) ([]provenance.Entry, error) {
	query, args := buildEntryQuery(filter)

	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeDatabaseError, apperrors.Wrap(err, "failed to list provenance entries"))
	}

	entries := make([]provenance.Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.toEntry()
	}
	return entries, nil
}

func buildEntryQuery(filter provenance.Filter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.RunID != "" {
		args = append(args, string(filter.RunID))
		where = append(where, fmt.Sprintf("run_id = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT id, recorded_at, action, description, actor, run_id FROM provenance_entries")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY seq ASC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}
