package api

import (
	"encoding/json"
	"fmt"

	"loanaudit/app"
	"loanaudit/domain/dataset"
	"loanaudit/internal/cleaning"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/fairness"
	"loanaudit/internal/profiling"
	"loanaudit/internal/quality"
	"loanaudit/internal/simulation"
)

// QualityRequest audits a dataset. A missing multiplier uses 1.5.
type QualityRequest struct {
	Dataset    *dataset.Dataset `json:"dataset"`
	Multiplier *float64         `json:"multiplier"`
}

func (r QualityRequest) toService() (quality.Options, error) {
	k, err := multiplier(r.Multiplier, quality.Stage)
	return quality.Options{Multiplier: k}, err
}

// ImputationStep accepts canonical strategy names and display forms ("Median", "Remove Rows")
type ImputationStep struct {
	Column   string `json:"column"`
	Strategy string `json:"strategy"`
}

// CleanRequest cleans a dataset. A missing imputation list uses the
// default plan; an empty list imputes nothing.
type CleanRequest struct {
	Dataset       *dataset.Dataset  `json:"dataset"`
	Imputation    *[]ImputationStep `json:"imputation"`
	OutlierPolicy string            `json:"outlier_policy"`
	Multiplier    *float64          `json:"multiplier"`
}

func (r CleanRequest) toService() (app.CleanRequest, error) {
	var out app.CleanRequest
	if r.Imputation != nil {
		out.Plan = cleaning.Plan{}
		for _, step := range *r.Imputation {
			strategy, err := cleaning.ParseStrategy(step.Strategy)
			if err != nil {
				return out, err
			}
			out.Plan = append(out.Plan, cleaning.Step{Column: step.Column, Strategy: strategy})
		}
	}
	method, err := cleaning.ParseOutlierMethod(r.OutlierPolicy)
	if err != nil {
		return out, err
	}
	k, err := multiplier(r.Multiplier, cleaning.Stage)
	if err != nil {
		return out, err
	}
	out.Policy = cleaning.OutlierPolicy{Method: method, Multiplier: k}
	return out, nil
}

// FairnessRequest measures demographic parity. Blank fields use Gender,
// Loan_Status and "Y".
type FairnessRequest struct {
	Dataset         *dataset.Dataset `json:"dataset"`
	SensitiveColumn string           `json:"sensitive_column"`
	OutcomeColumn   string           `json:"outcome_column"`
	PositiveValue   *dataset.Value   `json:"positive_value"`
}

func (r FairnessRequest) toService() fairness.Request {
	req := fairness.DefaultRequest()
	if r.SensitiveColumn != "" {
		req.SensitiveColumn = r.SensitiveColumn
	}
	if r.OutcomeColumn != "" {
		req.OutcomeColumn = r.OutcomeColumn
	}
	if r.PositiveValue != nil {
		req.PositiveValue = *r.PositiveValue
	}
	return req
}

// SimulateRequest runs one seeded simulation. Config fields that are left
// out keep their defaults.
type SimulateRequest struct {
	Dataset *dataset.Dataset `json:"dataset"`
	Config  json.RawMessage  `json:"config"`
	Seed    *int64           `json:"seed"`
}

// BatchRequest runs one simulation per seed
type BatchRequest struct {
	Dataset *dataset.Dataset `json:"dataset"`
	Config  json.RawMessage  `json:"config"`
	Seeds   []int64          `json:"seeds"`
}

// PipelineRequest runs quality, cleaning, fairness and simulation in order
type PipelineRequest struct {
	Dataset    *dataset.Dataset `json:"dataset"`
	Multiplier *float64         `json:"multiplier"`
	Clean      *CleanRequest    `json:"clean"`
	Fairness   *FairnessRequest `json:"fairness"`
	Simulation json.RawMessage  `json:"simulation"`
	Seed       *int64           `json:"seed"`
}

// LineageRequest records a manual lineage note
type LineageRequest struct {
	Actor       string `json:"actor"`
	Description string `json:"description"`
}

func simulationConfig(raw json.RawMessage) (simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, apperrors.InvalidInput(fmt.Sprintf("invalid simulation config: %v", err))
	}
	return cfg, nil
}

// multiplier resolves an optional fence multiplier. Only an absent value
// falls back to the default; an explicit zero is out of range.
func multiplier(v *float64, stage string) (float64, error) {
	if v == nil {
		return profiling.DefaultMultiplier, nil
	}
	if !profiling.ValidMultiplier(*v) {
		err := apperrors.ConfigurationOutOfRange("multiplier", *v, profiling.MinMultiplier, profiling.MaxMultiplier)
		err.Stage = stage
		return 0, err
	}
	return *v, nil
}

func requireDataset(ds *dataset.Dataset) error {
	if ds == nil {
		return apperrors.InvalidInput("dataset is required")
	}
	return nil
}
