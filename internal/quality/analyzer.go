package quality

import (
	"fmt"
	"sort"
	"strings"

	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/profiling"
)

// Stage identifies this component in errors and metrics
const Stage = "quality"

// Options tunes a quality audit
type Options struct {
	Multiplier float64 `json:"multiplier"`
}

// DefaultOptions uses the conventional 1.5 fences
func DefaultOptions() Options {
	return Options{Multiplier: profiling.DefaultMultiplier}
}

// ColumnMissing is the missing-value profile of one column
type ColumnMissing struct {
	Column       string       `json:"column"`
	Kind         dataset.Kind `json:"kind"`
	MissingCount int          `json:"missing_count"`
	MissingPct   float64      `json:"missing_pct"`
}

// NumericProfile carries outlier fences and summary statistics for a continuous column
type NumericProfile struct {
	Column       string            `json:"column"`
	Bounds       profiling.Bounds  `json:"bounds"`
	OutlierCount int               `json:"outlier_count"`
	Summary      profiling.Summary `json:"summary"`
}

// Report is the outcome of a quality audit over one snapshot
type Report struct {
	Rows         int              `json:"rows"`
	TotalMissing int              `json:"total_missing"`
	Columns      []ColumnMissing  `json:"columns"`
	Numeric      []NumericProfile `json:"numeric"`
}

// Profile returns the numeric profile for a column, if one was computed
func (r *Report) Profile(column string) (NumericProfile, bool) {
	for _, p := range r.Numeric {
		if p.Column == column {
			return p, true
		}
	}
	return NumericProfile{}, false
}

// Result pairs the report with the ledger entry describing it
type Result struct {
	Report *Report          `json:"report"`
	Entry  provenance.Entry `json:"entry"`
}

// Analyzer computes missing-value statistics and IQR outlier fences. It holds
// no mutable state and may be shared across goroutines.
type Analyzer struct {
	recorder *provenance.Recorder
}

func NewAnalyzer(recorder *provenance.Recorder) *Analyzer {
	if recorder == nil {
		recorder = provenance.NewRecorder("", nil)
	}
	return &Analyzer{recorder: recorder}
}

// Analyze audits a dataset snapshot. The snapshot is only read.
func (a *Analyzer) Analyze(ds *dataset.Dataset, opts Options) (*Result, error) {
	k := opts.Multiplier
	if !profiling.ValidMultiplier(k) {
		err := apperrors.ConfigurationOutOfRange("multiplier", k, profiling.MinMultiplier, profiling.MaxMultiplier)
		err.Stage = Stage
		return nil, err
	}

	rows := ds.Len()
	report := &Report{
		Rows:    rows,
		Columns: make([]ColumnMissing, 0, ds.Width()),
		Numeric: []NumericProfile{},
	}

	for _, col := range ds.Columns() {
		missing := ds.MissingCount(col.Name)
		pct := 0.0
		if rows > 0 {
			pct = float64(missing) / float64(rows) * 100
		}
		report.TotalMissing += missing
		report.Columns = append(report.Columns, ColumnMissing{
			Column:       col.Name,
			Kind:         col.Kind,
			MissingCount: missing,
			MissingPct:   pct,
		})

		if col.Kind != dataset.KindContinuous {
			continue
		}
		values := ds.NumericValues(col.Name)
		if len(values) == 0 {
			continue
		}
		bounds, err := profiling.ComputeBounds(values, k)
		if err != nil {
			return nil, apperrors.InStage(Stage, err)
		}
		summary, err := profiling.Summarize(values)
		if err != nil {
			return nil, apperrors.InStage(Stage, err)
		}
		report.Numeric = append(report.Numeric, NumericProfile{
			Column:       col.Name,
			Bounds:       bounds,
			OutlierCount: profiling.CountOutliers(values, bounds),
			Summary:      summary,
		})
	}

	return &Result{
		Report: report,
		Entry:  a.recorder.Record(provenance.ActionQuality, describe(report, k)),
	}, nil
}

func describe(r *Report, k float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Performed data quality audit on %d rows and %d columns. Total missing values: %d.", r.Rows, len(r.Columns), r.TotalMissing)

	outliers := make([]string, 0, len(r.Numeric))
	for _, p := range r.Numeric {
		if p.OutlierCount > 0 {
			outliers = append(outliers, fmt.Sprintf("%s=%d", p.Column, p.OutlierCount))
		}
	}
	sort.Strings(outliers)
	if len(outliers) == 0 {
		fmt.Fprintf(&b, " No outliers detected (IQR multiplier %g).", k)
	} else {
		fmt.Fprintf(&b, " Outliers detected (IQR multiplier %g): %s.", k, strings.Join(outliers, ", "))
	}
	return b.String()
}
