package run

import (
	"encoding/json"
	"fmt"
	"time"

	"loanaudit/domain/core"
)

// Stage names an audit stage that can be recorded as a run
type Stage string

const (
	StageIngestion  Stage = "ingestion"
	StageQuality    Stage = "quality"
	StageCleaning   Stage = "cleaning"
	StageFairness   Stage = "fairness"
	StageSimulation Stage = "simulation"
	StageBatch      Stage = "simulation_batch"
	StagePipeline   Stage = "pipeline"
)

// AuditRun records one stage execution so it can be replayed
type AuditRun struct {
	ID          core.RunID      `json:"id" db:"id"`
	Stage       Stage           `json:"stage" db:"stage"`
	Actor       string          `json:"actor" db:"actor"`
	Seed        *int64          `json:"seed,omitempty" db:"seed"`
	Config      json.RawMessage `json:"config,omitempty" db:"config"`
	InputHash   core.Hash       `json:"input_hash" db:"input_hash"`
	OutputHash  core.Hash       `json:"output_hash,omitempty" db:"output_hash"`
	RowsIn      int             `json:"rows_in" db:"rows_in"`
	RowsOut     int             `json:"rows_out" db:"rows_out"`
	Fingerprint core.Hash       `json:"fingerprint" db:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// NewAuditRun stamps a run with an ID and its replay fingerprint
func NewAuditRun(stage Stage, actor string, seed *int64, config interface{}, inputHash core.Hash, createdAt time.Time) (*AuditRun, error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", stage, err)
	}
	r := &AuditRun{
		ID:        core.NewRunID(),
		Stage:     stage,
		Actor:     actor,
		Seed:      seed,
		Config:    raw,
		InputHash: inputHash,
		CreatedAt: createdAt,
	}
	r.Fingerprint = Fingerprint(stage, inputHash, raw, seed)
	return r, nil
}

// Fingerprint hashes everything that determines a stage output. Two runs
// with equal fingerprints must produce identical datasets.
func Fingerprint(stage Stage, inputHash core.Hash, config []byte, seed *int64) core.Hash {
	seedPart := "none"
	if seed != nil {
		seedPart = fmt.Sprintf("%d", *seed)
	}
	data := fmt.Sprintf("stage:%s|input:%s|config:%s|seed:%s", stage, inputHash, config, seedPart)
	return core.NewHash([]byte(data))
}

// Filter narrows run listings. Zero values match everything.
type Filter struct {
	Stage Stage
	Limit int
}
