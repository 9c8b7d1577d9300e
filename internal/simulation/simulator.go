package simulation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cast"

	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
)

// Stage identifies this component in errors and metrics
const Stage = "simulation"

// Source is the random stream a simulation draws from. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Summary aggregates the outcome of one simulation run
type Summary struct {
	Records     int     `json:"records"`
	Approved    int     `json:"approved"`
	Rejected    int     `json:"rejected"`
	Flagged     int     `json:"flagged"`
	CreditFlips int     `json:"credit_flips"`
	MeanScore   float64 `json:"mean_score"`
	MinScore    float64 `json:"min_score"`
	MaxScore    float64 `json:"max_score"`
}

// Result is a simulated view of a dataset. It never aliases the input.
type Result struct {
	Dataset *dataset.Dataset `json:"dataset"`
	Summary Summary          `json:"summary"`
	Entry   provenance.Entry `json:"entry"`
}

// Simulator perturbs inputs, scores records and applies the review rule
type Simulator struct {
	model    RiskModel
	recorder *provenance.Recorder
}

func NewSimulator(model RiskModel, recorder *provenance.Recorder) *Simulator {
	if recorder == nil {
		recorder = provenance.NewRecorder("", nil)
	}
	return &Simulator{model: model, recorder: recorder}
}

// Model returns the scoring coefficients in use
func (s *Simulator) Model() RiskModel { return s.model }

// Simulate runs one perturbation pass. Draws per record happen in a fixed
// order (income, loan amount, credit noise) whether or not cells are missing,
// so a given seed always produces the same stream alignment.
func (s *Simulator) Simulate(ds *dataset.Dataset, cfg Config, rng Source) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		err := apperrors.InvalidInput("a random source is required")
		err.Stage = Stage
		return nil, err
	}
	for _, c := range []string{dataset.ColApplicantIncome, dataset.ColLoanAmount} {
		col, ok := ds.Column(c)
		if !ok {
			return nil, apperrors.InvalidColumnState(Stage, c, "required column is not present in the dataset")
		}
		if col.Kind == dataset.KindIdentifier {
			return nil, apperrors.InvalidColumnState(Stage, c, "identifier columns are never perturbed")
		}
	}

	columns, outIdx := outputColumns(ds.Columns())
	colIdx := indexOf(ds.Columns())
	incomeSpread := cfg.IncomeUncertaintyPct / 100
	loanSpread := cfg.LoanAmountUncertaintyPct / 100

	summary := Summary{Records: ds.Len()}
	scores := make([]float64, 0, ds.Len())

	out, err := ds.MapRows(columns, func(row int, values []dataset.Value) ([]dataset.Value, error) {
		uIncome := (rng.Float64()*2 - 1) * incomeSpread
		uLoan := (rng.Float64()*2 - 1) * loanSpread
		noise := rng.Float64() < cfg.CreditHistoryNoiseProb

		var a Applicant
		if v, ok := numeric(values[colIdx[dataset.ColApplicantIncome]]); ok {
			v *= 1 + uIncome
			values[colIdx[dataset.ColApplicantIncome]] = dataset.Numeric(v)
			a.ApplicantIncome = v
		}
		if v, ok := numeric(values[colIdx[dataset.ColLoanAmount]]); ok {
			v *= 1 + uLoan
			values[colIdx[dataset.ColLoanAmount]] = dataset.Numeric(v)
			a.LoanAmount, a.HasLoanAmount = v, true
		}
		if i, ok := colIdx[dataset.ColCoapplicantIncome]; ok {
			if v, ok := numeric(values[i]); ok {
				a.CoapplicantIncome = v
			}
		}
		if i, ok := colIdx[dataset.ColCreditHistory]; ok {
			if v, ok := numeric(values[i]); ok {
				if noise && (v == 0 || v == 1) {
					v = 1 - v
					values[i] = dataset.Numeric(v)
					summary.CreditFlips++
				}
				a.CreditHistory, a.HasCreditHistory = v, true
			}
		}
		if i, ok := colIdx[dataset.ColEducation]; ok {
			a.NotGraduate = values[i].Text() == "Not Graduate"
		}
		if i, ok := colIdx[dataset.ColDependents]; ok {
			deps, err := dependents(values[i])
			if err != nil {
				return nil, apperrors.InvalidColumnState(Stage, dataset.ColDependents,
					fmt.Sprintf("row %d: %v", row, err))
			}
			a.Dependents = deps
		}

		score := s.model.Score(a)
		status := s.model.Decide(score)
		flag := FlagNo
		if NeedsReview(score, cfg.HumanReviewThreshold) {
			flag = FlagYes
			summary.Flagged++
		}
		if status == StatusApproved {
			summary.Approved++
		} else {
			summary.Rejected++
		}
		scores = append(scores, score)

		for len(values) < len(columns) {
			values = append(values, dataset.Missing())
		}
		values[outIdx[0]] = dataset.Numeric(score)
		values[outIdx[1]] = dataset.String(string(status))
		values[outIdx[2]] = dataset.String(flag)
		return values, nil
	})
	if err != nil {
		return nil, err
	}

	if len(scores) > 0 {
		summary.MeanScore, _ = stats.Mean(scores)
		summary.MinScore, _ = stats.Min(scores)
		summary.MaxScore, _ = stats.Max(scores)
	}

	return &Result{
		Dataset: out,
		Summary: summary,
		Entry:   s.recorder.Record(provenance.ActionRiskSim, describe(cfg, summary)),
	}, nil
}

func describe(cfg Config, s Summary) string {
	return fmt.Sprintf(
		"Simulated with Income Uncertainty: %s%%, Loan Amount Uncertainty: %s%%, Credit History Noise: %s%%, Human Review Threshold: %s. "+
			"%d of %d applications flagged for human review (%d approved, %d rejected).",
		num(cfg.IncomeUncertaintyPct), num(cfg.LoanAmountUncertaintyPct), num(cfg.CreditHistoryNoiseProb*100),
		num(cfg.HumanReviewThreshold), s.Flagged, s.Records, s.Approved, s.Rejected)
}

// num formats a setting without binary rounding noise (0.015*100 prints as 1.5)
func num(x float64) string {
	return strconv.FormatFloat(math.Round(x*1e9)/1e9, 'f', -1, 64)
}

// outputColumns appends the score, status and flag columns unless the input
// already carries them, and returns their positions.
func outputColumns(in []dataset.Column) ([]dataset.Column, [3]int) {
	added := []dataset.Column{
		{Name: dataset.ColSimulatedRiskScore, Kind: dataset.KindContinuous},
		{Name: dataset.ColPredictedStatus, Kind: dataset.KindCategorical},
		{Name: dataset.ColFlaggedForReview, Kind: dataset.KindCategorical},
	}
	columns := append([]dataset.Column(nil), in...)
	idx := indexOf(in)
	var pos [3]int
	for i, c := range added {
		if j, ok := idx[c.Name]; ok {
			columns[j] = c
			pos[i] = j
			continue
		}
		pos[i] = len(columns)
		columns = append(columns, c)
	}
	return columns, pos
}

func indexOf(cols []dataset.Column) map[string]int {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c.Name] = i
	}
	return idx
}

// numeric reads a cell as a number, accepting numeric strings
func numeric(v dataset.Value) (float64, bool) {
	if f, ok := v.Float64(); ok {
		return f, true
	}
	if s := strings.TrimSpace(v.StringVal); v.IsString() && s != "" {
		f, err := cast.ToFloat64E(s)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}

// dependents maps "0".."3+" to a count. Missing counts as zero.
func dependents(v dataset.Value) (float64, error) {
	if v.IsMissing() {
		return 0, nil
	}
	if f, ok := v.Float64(); ok {
		return f, nil
	}
	s := strings.TrimSuffix(strings.TrimSpace(v.StringVal), "+")
	f, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, fmt.Errorf("unrecognised dependents value %q", v.StringVal)
	}
	return f, nil
}
