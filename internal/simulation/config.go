package simulation

import (
	"math"

	apperrors "loanaudit/internal/errors"
)

// Accepted ranges for the simulation knobs
const (
	MaxUncertaintyPct = 20.0
	MaxNoiseProb      = 0.1
)

// Config controls perturbation strength and the human-review cutoff
type Config struct {
	IncomeUncertaintyPct     float64 `json:"income_uncertainty_pct"`
	LoanAmountUncertaintyPct float64 `json:"loan_amount_uncertainty_pct"`
	CreditHistoryNoiseProb   float64 `json:"credit_history_noise_prob"`
	HumanReviewThreshold     float64 `json:"human_review_threshold"`
}

// DefaultConfig mirrors the settings risk managers start from
func DefaultConfig() Config {
	return Config{
		IncomeUncertaintyPct:     5,
		LoanAmountUncertaintyPct: 5,
		CreditHistoryNoiseProb:   0.01,
		HumanReviewThreshold:     0.6,
	}
}

// Validate rejects out-of-range settings. Values are never clamped.
func (c Config) Validate() error {
	checks := []struct {
		field    string
		value    float64
		min, max float64
	}{
		{"income_uncertainty_pct", c.IncomeUncertaintyPct, 0, MaxUncertaintyPct},
		{"loan_amount_uncertainty_pct", c.LoanAmountUncertaintyPct, 0, MaxUncertaintyPct},
		{"credit_history_noise_prob", c.CreditHistoryNoiseProb, 0, MaxNoiseProb},
		{"human_review_threshold", c.HumanReviewThreshold, 0, 1},
	}
	for _, chk := range checks {
		if math.IsNaN(chk.value) || chk.value < chk.min || chk.value > chk.max {
			err := apperrors.ConfigurationOutOfRange(chk.field, chk.value, chk.min, chk.max)
			err.Stage = Stage
			return err
		}
	}
	return nil
}
