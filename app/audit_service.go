package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"loanaudit/domain/core"
	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	"loanaudit/domain/run"
	"loanaudit/internal/cleaning"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/fairness"
	"loanaudit/internal/metrics"
	"loanaudit/internal/quality"
	"loanaudit/internal/simulation"
	"loanaudit/internal/testkit"
	"loanaudit/ports"
)

// ServiceOptions configures an AuditService
type ServiceOptions struct {
	Actor string
	Clock core.Clock
	Model *simulation.RiskModel // nil means simulation.DefaultRiskModel()
}

// AuditService runs audit stages over dataset snapshots and keeps the
// provenance ledger in step with every stage that succeeds.
type AuditService struct {
	runner    *StageRunner
	ledger    ports.ProvenanceStore
	runs      ports.AuditRunRepository
	rng       ports.RNGPort
	reader    ports.DatasetReader
	recorder  *provenance.Recorder
	quality   *quality.Analyzer
	cleaner   *cleaning.Engine
	fairness  *fairness.Analyzer
	simulator *simulation.Simulator
	logger    *zap.Logger
}

// NewAuditService wires the stage components. reader and runs may be nil;
// a nil rng uses math/rand streams seeded directly.
func NewAuditService(ledger ports.ProvenanceStore, runs ports.AuditRunRepository, rng ports.RNGPort, reader ports.DatasetReader, logger *zap.Logger, opts ServiceOptions) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("audit")
	recorder := provenance.NewRecorder(opts.Actor, opts.Clock)
	if rng == nil {
		rng = &testkit.RNGAdapter{}
	}
	model := simulation.DefaultRiskModel()
	if opts.Model != nil {
		model = *opts.Model
	}
	return &AuditService{
		runner:    NewStageRunner(ledger, runs, recorder.Actor(), opts.Clock, logger),
		ledger:    ledger,
		runs:      runs,
		rng:       rng,
		reader:    reader,
		recorder:  recorder,
		quality:   quality.NewAnalyzer(recorder),
		cleaner:   cleaning.NewEngine(recorder),
		fairness:  fairness.NewAnalyzer(recorder),
		simulator: simulation.NewSimulator(model, recorder),
		logger:    logger,
	}
}

// Actor returns the identity stamped on stage entries
func (s *AuditService) Actor() string { return s.recorder.Actor() }

// IngestResult is a loaded snapshot and the entry describing it
type IngestResult struct {
	RunID   core.RunID       `json:"run_id"`
	Dataset *dataset.Dataset `json:"dataset"`
	Entry   provenance.Entry `json:"entry"`
}

// Ingest reads a data file and records it as the start of a lineage
func (s *AuditService) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	if s.reader == nil {
		return nil, apperrors.InStage(string(run.StageIngestion), apperrors.InternalError("no dataset reader configured"))
	}
	ds, err := s.reader.ReadFile(ctx, path)
	if err != nil {
		return nil, apperrors.InStage(string(run.StageIngestion), err)
	}
	return s.Register(ctx, ds, path)
}

// Register records an already-loaded snapshot, e.g. one generated in process
func (s *AuditService) Register(ctx context.Context, ds *dataset.Dataset, source string) (*IngestResult, error) {
	if ds == nil {
		return nil, apperrors.InStage(string(run.StageIngestion), apperrors.InvalidInput("dataset is required"))
	}
	missing := 0
	for _, c := range ds.ColumnNames() {
		missing += ds.MissingCount(c)
	}
	entry := s.recorder.Recordf(provenance.ActionIngestion,
		"Loaded %d records with %d columns from %s (%d missing cells).", ds.Len(), ds.Width(), source, missing)

	ar, err := s.runner.Execute(ctx, StageSpec{Stage: run.StageIngestion, Input: ds, Config: map[string]string{"source": source}},
		func() (StageOutcome, error) {
			return StageOutcome{Output: ds, Entries: []provenance.Entry{entry}}, nil
		})
	if err != nil {
		return nil, err
	}
	return &IngestResult{RunID: ar.ID, Dataset: ds, Entry: entry.WithRun(ar.ID)}, nil
}

// QualityResult wraps a quality report with its run
type QualityResult struct {
	RunID core.RunID `json:"run_id"`
	*quality.Result
}

// Quality audits missing values and outliers
func (s *AuditService) Quality(ctx context.Context, ds *dataset.Dataset, opts quality.Options) (*QualityResult, error) {
	var res *quality.Result
	ar, err := s.runner.Execute(ctx, StageSpec{Stage: run.StageQuality, Input: ds, Config: opts},
		func() (StageOutcome, error) {
			var err error
			if res, err = s.quality.Analyze(ds, opts); err != nil {
				return StageOutcome{}, err
			}
			return StageOutcome{Entries: []provenance.Entry{res.Entry}}, nil
		})
	if err != nil {
		return nil, err
	}
	res.Entry = res.Entry.WithRun(ar.ID)
	return &QualityResult{RunID: ar.ID, Result: res}, nil
}

// CleanRequest is an imputation plan plus outlier policy. A nil Plan means
// cleaning.DefaultPlan for the dataset and an empty method means no outlier
// handling.
type CleanRequest struct {
	Plan   cleaning.Plan          `json:"imputation"`
	Policy cleaning.OutlierPolicy `json:"outlier_policy"`
}

// CleanResult wraps a cleaning result with its run
type CleanResult struct {
	RunID core.RunID `json:"run_id"`
	*cleaning.Result
}

// Clean applies imputation and outlier handling and returns a new snapshot
func (s *AuditService) Clean(ctx context.Context, ds *dataset.Dataset, req CleanRequest) (*CleanResult, error) {
	if ds == nil {
		return nil, apperrors.InStage(cleaning.Stage, apperrors.InvalidInput("dataset is required"))
	}
	if req.Plan == nil {
		req.Plan = cleaning.DefaultPlan(ds)
	}
	if req.Policy.Method == "" {
		req.Policy.Method = cleaning.OutlierNone
	}

	var res *cleaning.Result
	ar, err := s.runner.Execute(ctx, StageSpec{Stage: run.StageCleaning, Input: ds, Config: req},
		func() (StageOutcome, error) {
			var err error
			if res, err = s.cleaner.Clean(ds, req.Plan, req.Policy); err != nil {
				return StageOutcome{}, err
			}
			return StageOutcome{Output: res.Dataset, Entries: res.Entries}, nil
		})
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		res.Entries[i] = res.Entries[i].WithRun(ar.ID)
	}
	return &CleanResult{RunID: ar.ID, Result: res}, nil
}

// FairnessResult wraps a parity measurement with its run
type FairnessResult struct {
	RunID core.RunID `json:"run_id"`
	*fairness.Result
}

// Fairness measures demographic parity. Fewer than two groups is reported
// through a nil Metrics, not an error.
func (s *AuditService) Fairness(ctx context.Context, ds *dataset.Dataset, req fairness.Request) (*FairnessResult, error) {
	if ds == nil {
		return nil, apperrors.InStage(fairness.Stage, apperrors.InvalidInput("dataset is required"))
	}
	var res *fairness.Result
	ar, err := s.runner.Execute(ctx, StageSpec{Stage: run.StageFairness, Input: ds, Config: req},
		func() (StageOutcome, error) {
			var err error
			if res, err = s.fairness.DemographicParity(ds, req); err != nil {
				return StageOutcome{}, err
			}
			return StageOutcome{Entries: []provenance.Entry{res.Entry}}, nil
		})
	if err != nil {
		return nil, err
	}
	if res.Metrics != nil {
		metrics.SetDemographicParity(req.SensitiveColumn, res.Metrics.DPD)
	}
	res.Entry = res.Entry.WithRun(ar.ID)
	return &FairnessResult{RunID: ar.ID, Result: res}, nil
}

// SimulationResult wraps a simulation with its run and seed
type SimulationResult struct {
	RunID core.RunID `json:"run_id"`
	Seed  int64      `json:"seed"`
	*simulation.Result
}

// Simulate runs one seeded risk simulation. The same dataset, config and
// seed always produce the same output.
func (s *AuditService) Simulate(ctx context.Context, ds *dataset.Dataset, cfg simulation.Config, seed int64) (*SimulationResult, error) {
	if ds == nil {
		return nil, apperrors.InStage(simulation.Stage, apperrors.InvalidInput("dataset is required"))
	}
	config := struct {
		simulation.Config
		Model simulation.RiskModel `json:"model"`
	}{cfg, s.simulator.Model()}

	var res *simulation.Result
	ar, err := s.runner.Execute(ctx, StageSpec{Stage: run.StageSimulation, Input: ds, Seed: &seed, Config: config},
		func() (StageOutcome, error) {
			rng, err := s.rng.SeededStream(ctx, simulation.Stage, seed)
			if err != nil {
				return StageOutcome{}, err
			}
			if res, err = s.simulator.Simulate(ds, cfg, rng); err != nil {
				return StageOutcome{}, err
			}
			return StageOutcome{Output: res.Dataset, Entries: []provenance.Entry{res.Entry}}, nil
		})
	if err != nil {
		return nil, err
	}
	metrics.ObserveReviewFlags(res.Summary.Flagged)
	res.Entry = res.Entry.WithRun(ar.ID)
	return &SimulationResult{RunID: ar.ID, Seed: seed, Result: res}, nil
}

// BatchResult wraps a batch of seeded simulations with its run
type BatchResult struct {
	RunID core.RunID `json:"run_id"`
	*simulation.BatchResult
}

// SimulateBatch runs one simulation per seed concurrently
func (s *AuditService) SimulateBatch(ctx context.Context, ds *dataset.Dataset, cfg simulation.Config, seeds []int64) (*BatchResult, error) {
	if ds == nil {
		return nil, apperrors.InStage(simulation.Stage, apperrors.InvalidInput("dataset is required"))
	}
	streams := func(seed int64) (*rand.Rand, error) {
		return s.rng.SeededStream(ctx, simulation.Stage, seed)
	}
	config := struct {
		simulation.Config
		Model simulation.RiskModel `json:"model"`
		Seeds []int64              `json:"seeds"`
	}{cfg, s.simulator.Model(), seeds}

	var res *simulation.BatchResult
	ar, err := s.runner.Execute(ctx, StageSpec{Stage: run.StageBatch, Input: ds, Config: config},
		func() (StageOutcome, error) {
			var err error
			if res, err = s.simulator.RunBatch(ctx, ds, cfg, seeds, streams); err != nil {
				return StageOutcome{}, err
			}
			return StageOutcome{Entries: []provenance.Entry{res.Entry}}, nil
		})
	if err != nil {
		return nil, err
	}
	res.Entry = res.Entry.WithRun(ar.ID)
	return &BatchResult{RunID: ar.ID, BatchResult: res}, nil
}

// PipelineRequest configures a full audit: quality on the input, cleaning,
// then fairness and simulation on the cleaned snapshot.
type PipelineRequest struct {
	Quality    quality.Options   `json:"quality"`
	Clean      CleanRequest      `json:"clean"`
	Fairness   fairness.Request  `json:"fairness"`
	Simulation simulation.Config `json:"simulation"`
	Seed       int64             `json:"seed"`
}

// DefaultPipelineRequest uses the default plan, capping at k = 1.5, gender
// parity on approvals and the default simulation settings.
func DefaultPipelineRequest(seed int64) PipelineRequest {
	return PipelineRequest{
		Quality:    quality.DefaultOptions(),
		Clean:      CleanRequest{Policy: cleaning.DefaultOutlierPolicy()},
		Fairness:   fairness.DefaultRequest(),
		Simulation: simulation.DefaultConfig(),
		Seed:       seed,
	}
}

// PipelineResult collects every stage output of one pipeline
type PipelineResult struct {
	Quality    *QualityResult    `json:"quality"`
	Cleaning   *CleanResult      `json:"cleaning"`
	Fairness   *FairnessResult   `json:"fairness"`
	Simulation *SimulationResult `json:"simulation"`
}

// Pipeline runs the stages in order, stopping at the first failure. Stages
// that completed before a failure keep their ledger entries.
func (s *AuditService) Pipeline(ctx context.Context, ds *dataset.Dataset, req PipelineRequest) (*PipelineResult, error) {
	if ds == nil {
		return nil, apperrors.InStage(string(run.StagePipeline), apperrors.InvalidInput("dataset is required"))
	}
	if err := req.Simulation.Validate(); err != nil {
		return nil, err
	}

	out := &PipelineResult{}
	var err error
	if out.Quality, err = s.Quality(ctx, ds, req.Quality); err != nil {
		return nil, err
	}
	if out.Cleaning, err = s.Clean(ctx, ds, req.Clean); err != nil {
		return nil, err
	}
	cleaned := out.Cleaning.Dataset
	if out.Fairness, err = s.Fairness(ctx, cleaned, req.Fairness); err != nil {
		return nil, err
	}
	if out.Simulation, err = s.Simulate(ctx, cleaned, req.Simulation, req.Seed); err != nil {
		return nil, err
	}

	s.logger.Info("pipeline completed",
		zap.Int("rows_in", ds.Len()),
		zap.Int("rows_out", cleaned.Len()),
		zap.Int("flagged", out.Simulation.Summary.Flagged))
	return out, nil
}

// RecordLineage appends a manual lineage note. A blank actor uses the
// service actor.
func (s *AuditService) RecordLineage(ctx context.Context, actor, description string) (provenance.Entry, error) {
	if strings.TrimSpace(description) == "" {
		return provenance.Entry{}, apperrors.WithCode(apperrors.CodeInvalidInput, core.ErrEmptyDescription)
	}
	recorder := s.recorder
	if strings.TrimSpace(actor) != "" {
		recorder = recorder.As(actor)
	}
	entry := recorder.Record(provenance.ActionLineage, strings.TrimSpace(description))
	if err := s.runner.Append(ctx, entry); err != nil {
		return provenance.Entry{}, err
	}
	return entry, nil
}

// Entries lists ledger entries in append order
func (s *AuditService) Entries(ctx context.Context, filter provenance.Filter) ([]provenance.Entry, error) {
	return s.ledger.List(ctx, filter)
}

// Runs lists recorded stage executions, newest first
func (s *AuditService) Runs(ctx context.Context, filter run.Filter) ([]run.AuditRun, error) {
	if s.runs == nil {
		return []run.AuditRun{}, nil
	}
	return s.runs.List(ctx, filter)
}

// Run fetches one recorded stage execution
func (s *AuditService) Run(ctx context.Context, id core.RunID) (*run.AuditRun, error) {
	if s.runs == nil {
		return nil, apperrors.WithCode(apperrors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrRunNotFound, id))
	}
	return s.runs.Get(ctx, id)
}
