package fairness

import (
	"fmt"
	"sort"

	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
)

// Stage identifies this component in errors and metrics
const Stage = "fairness"

// Request selects the sensitive attribute and the binary outcome to compare
type Request struct {
	SensitiveColumn string        `json:"sensitive_column"`
	OutcomeColumn   string        `json:"outcome_column"`
	PositiveValue   dataset.Value `json:"positive_value"`
}

// DefaultRequest compares loan approval ("Y") across genders
func DefaultRequest() Request {
	return Request{
		SensitiveColumn: dataset.ColGender,
		OutcomeColumn:   dataset.ColLoanStatus,
		PositiveValue:   dataset.String("Y"),
	}
}

func (r Request) validate(ds *dataset.Dataset) error {
	if r.SensitiveColumn == "" || r.OutcomeColumn == "" {
		err := apperrors.InvalidInput("sensitive and outcome columns are required")
		err.Stage = Stage
		return err
	}
	if r.SensitiveColumn == r.OutcomeColumn {
		err := apperrors.InvalidInput("sensitive and outcome columns must differ")
		err.Stage, err.Column = Stage, r.SensitiveColumn
		return err
	}
	if r.PositiveValue.IsMissing() {
		err := apperrors.InvalidInput("a positive outcome value is required")
		err.Stage, err.Column = Stage, r.OutcomeColumn
		return err
	}
	for _, c := range []string{r.SensitiveColumn, r.OutcomeColumn} {
		if !ds.HasColumn(c) {
			return apperrors.InvalidColumnState(Stage, c, "column is not present in the dataset")
		}
	}
	return nil
}

// GroupRate is the positive-outcome rate of one sensitive group
type GroupRate struct {
	Group     string  `json:"group"`
	Positives int     `json:"positives"`
	Total     int     `json:"total"`
	Rate      float64 `json:"rate"`
}

// Metrics is a demographic parity measurement
type Metrics struct {
	Groups        []GroupRate        `json:"groups"`
	ApprovalRates map[string]float64 `json:"approval_rates"`
	DPD           float64            `json:"demographic_parity_difference"`
	HighestGroup  string             `json:"highest_group"`
	LowestGroup   string             `json:"lowest_group"`
	RowsUsed      int                `json:"rows_used"`
}

// Result carries the metrics, or nil Metrics when fewer than two groups
// could be compared. Reason explains a nil result.
type Result struct {
	Metrics *Metrics         `json:"metrics"`
	Reason  string           `json:"reason,omitempty"`
	Entry   provenance.Entry `json:"entry"`
}

// Analyzer measures outcome disparity between groups. It only reports
// disparity and does not weight groups or estimate confidence.
type Analyzer struct {
	recorder *provenance.Recorder
}

func NewAnalyzer(recorder *provenance.Recorder) *Analyzer {
	if recorder == nil {
		recorder = provenance.NewRecorder("", nil)
	}
	return &Analyzer{recorder: recorder}
}

// DemographicParity computes per-group positive rates over rows where both
// columns are present and DPD = max(rate) - min(rate).
func (a *Analyzer) DemographicParity(ds *dataset.Dataset, req Request) (*Result, error) {
	if err := req.validate(ds); err != nil {
		return nil, err
	}

	positive := req.PositiveValue.Text()
	groups := map[string]*GroupRate{}
	used := 0
	for i := 0; i < ds.Len(); i++ {
		s := ds.Value(i, req.SensitiveColumn)
		o := ds.Value(i, req.OutcomeColumn)
		if s.IsMissing() || o.IsMissing() {
			continue
		}
		used++
		g, ok := groups[s.Text()]
		if !ok {
			g = &GroupRate{Group: s.Text()}
			groups[s.Text()] = g
		}
		g.Total++
		if o.Text() == positive {
			g.Positives++
		}
	}

	if len(groups) < 2 {
		reason := "no rows with both columns present"
		if len(groups) == 1 {
			reason = "only one group observed"
		}
		return &Result{
			Reason: reason,
			Entry: a.recorder.Recordf(provenance.ActionBias,
				"Demographic parity for '%s' could not be calculated: %s.", req.SensitiveColumn, reason),
		}, nil
	}

	m := &Metrics{
		Groups:        make([]GroupRate, 0, len(groups)),
		ApprovalRates: make(map[string]float64, len(groups)),
		RowsUsed:      used,
	}
	for _, g := range groups {
		g.Rate = float64(g.Positives) / float64(g.Total)
		m.Groups = append(m.Groups, *g)
		m.ApprovalRates[g.Group] = g.Rate
	}
	sort.Slice(m.Groups, func(i, j int) bool { return m.Groups[i].Group < m.Groups[j].Group })

	hi, lo := m.Groups[0], m.Groups[0]
	for _, g := range m.Groups[1:] {
		if g.Rate > hi.Rate {
			hi = g
		}
		if g.Rate < lo.Rate {
			lo = g
		}
	}
	m.HighestGroup, m.LowestGroup = hi.Group, lo.Group
	m.DPD = hi.Rate - lo.Rate

	return &Result{
		Metrics: m,
		Entry: a.recorder.Record(provenance.ActionBias,
			fmt.Sprintf("Calculated demographic parity for '%s'. DPD: %.4f", req.SensitiveColumn, m.DPD)),
	}, nil
}
