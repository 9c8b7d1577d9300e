package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"loanaudit/domain/core"
	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	"loanaudit/domain/run"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/metrics"
	"loanaudit/ports"
)

// StageRunner does the bookkeeping around one stage execution: timing,
// metrics, the audit run record and the ledger appends.
type StageRunner struct {
	ledger ports.ProvenanceStore
	runs   ports.AuditRunRepository
	clock  core.Clock
	actor  string
	logger *zap.Logger
}

// NewStageRunner creates a new stage runner. runs may be nil when run
// records are not persisted.
func NewStageRunner(ledger ports.ProvenanceStore, runs ports.AuditRunRepository, actor string, clock core.Clock, logger *zap.Logger) *StageRunner {
	if clock == nil {
		clock = core.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StageRunner{ledger: ledger, runs: runs, clock: clock, actor: actor, logger: logger}
}

// StageSpec describes a stage execution to be recorded
type StageSpec struct {
	Stage  run.Stage
	Input  *dataset.Dataset
	Seed   *int64
	Config interface{}
}

// StageOutcome is what a stage body hands back for recording
type StageOutcome struct {
	Output  *dataset.Dataset
	Entries []provenance.Entry
}

// Execute runs body, then records the run and appends its entries. Nothing
// is recorded when body fails.
func (r *StageRunner) Execute(ctx context.Context, spec StageSpec, body func() (StageOutcome, error)) (*run.AuditRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	rowsIn := 0
	inputHash := core.Hash("")
	if spec.Input != nil {
		rowsIn = spec.Input.Len()
		inputHash = spec.Input.Fingerprint()
	}

	outcome, err := body()
	metrics.ObserveStage(string(spec.Stage), time.Since(start), rowsIn, err)
	if err != nil {
		r.logger.Warn("stage failed", zap.String("stage", string(spec.Stage)), zap.Error(err))
		return nil, apperrors.InStage(string(spec.Stage), err)
	}

	ar, err := run.NewAuditRun(spec.Stage, r.actor, spec.Seed, spec.Config, inputHash, r.clock())
	if err != nil {
		return nil, apperrors.InStage(string(spec.Stage), apperrors.WithCode(apperrors.CodeInternalError, err))
	}
	ar.RowsIn = rowsIn
	if outcome.Output != nil {
		ar.RowsOut = outcome.Output.Len()
		ar.OutputHash = outcome.Output.Fingerprint()
	} else {
		ar.RowsOut = rowsIn
	}

	if r.runs != nil {
		if err := r.runs.Save(ctx, ar); err != nil {
			return nil, apperrors.InStage(string(spec.Stage), err)
		}
	}
	for _, e := range outcome.Entries {
		if err := r.Append(ctx, e.WithRun(ar.ID)); err != nil {
			return nil, apperrors.InStage(string(spec.Stage), err)
		}
	}

	r.logger.Info("stage completed",
		zap.String("stage", string(spec.Stage)),
		zap.String("run_id", ar.ID.String()),
		zap.Int("rows_in", ar.RowsIn),
		zap.Int("rows_out", ar.RowsOut),
		zap.Int("entries", len(outcome.Entries)),
		zap.Duration("elapsed", time.Since(start)))
	return ar, nil
}

// Append writes one entry to the ledger
func (r *StageRunner) Append(ctx context.Context, e provenance.Entry) error {
	if err := r.ledger.Append(ctx, e); err != nil {
		return err
	}
	metrics.ObserveLedgerAppend(string(e.Action))
	return nil
}
