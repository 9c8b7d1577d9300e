package cleaning

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/profiling"
)

// Stage identifies this component in errors and metrics
const Stage = "cleaning"

// Phase separates imputation actions from outlier actions
type Phase string

const (
	PhaseImputation Phase = "imputation"
	PhaseOutliers   Phase = "outliers"
)

// Action describes one applied transform
type Action struct {
	Phase     Phase             `json:"phase"`
	Column    string            `json:"column"`
	Operation string            `json:"operation"`
	FillValue *dataset.Value    `json:"fill_value,omitempty"`
	Affected  int               `json:"affected"`
	Lower     int               `json:"capped_lower,omitempty"`
	Upper     int               `json:"capped_upper,omitempty"`
	Bounds    *profiling.Bounds `json:"bounds,omitempty"`
	Message   string            `json:"message"`
}

// Result is a cleaned snapshot plus what was done to produce it
type Result struct {
	Dataset    *dataset.Dataset   `json:"dataset"`
	Actions    []Action           `json:"actions"`
	Entries    []provenance.Entry `json:"entries"`
	RowsBefore int                `json:"rows_before"`
	RowsAfter  int                `json:"rows_after"`
}

// Engine applies an imputation plan followed by an outlier policy
type Engine struct {
	recorder *provenance.Recorder
}

func NewEngine(recorder *provenance.Recorder) *Engine {
	if recorder == nil {
		recorder = provenance.NewRecorder("", nil)
	}
	return &Engine{recorder: recorder}
}

// Clean runs imputation strictly before outlier handling. The input snapshot
// is never modified; every statistic is computed from the current rows.
func (e *Engine) Clean(ds *dataset.Dataset, plan Plan, policy OutlierPolicy) (*Result, error) {
	if err := plan.Validate(ds); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	current := ds.Clone()
	actions := make([]Action, 0, len(plan))

	for _, step := range plan {
		next, action, err := impute(current, step)
		if err != nil {
			return nil, err
		}
		current = next
		actions = append(actions, action)
	}

	if policy.Method != OutlierNone {
		k := policy.Multiplier
		for _, col := range current.Columns() {
			if col.Kind != dataset.KindContinuous {
				continue
			}
			next, action, err := handleOutliers(current, col.Name, policy.Method, k)
			if err != nil {
				return nil, err
			}
			current = next
			if action != nil {
				actions = append(actions, *action)
			}
		}
	}

	entries := make([]provenance.Entry, len(actions))
	for i, a := range actions {
		entries[i] = e.recorder.Record(provenance.ActionCleaning, a.Message)
	}

	return &Result{
		Dataset:    current,
		Actions:    actions,
		Entries:    entries,
		RowsBefore: ds.Len(),
		RowsAfter:  current.Len(),
	}, nil
}

func impute(ds *dataset.Dataset, step Step) (*dataset.Dataset, Action, error) {
	action := Action{Phase: PhaseImputation, Column: step.Column, Operation: string(step.Strategy)}
	missing := ds.MissingCount(step.Column)

	if step.Strategy == StrategyRemoveRows {
		out := ds.Filter(func(row int) bool {
			return !ds.Value(row, step.Column).IsMissing()
		})
		action.Affected = ds.Len() - out.Len()
		action.Message = fmt.Sprintf("Removed %d rows with missing values in `%s`.", action.Affected, step.Column)
		return out, action, nil
	}

	if missing == 0 {
		action.Message = fmt.Sprintf("No missing values to impute in `%s`.", step.Column)
		return ds, action, nil
	}

	fill, ok, err := fillValue(ds, step)
	if err != nil {
		return nil, action, apperrors.InvalidColumnState(Stage, step.Column, err.Error())
	}
	if !ok {
		return nil, action, apperrors.InvalidColumnState(Stage, step.Column,
			fmt.Sprintf("cannot compute %s: column has no non-missing values", step.Strategy))
	}

	out, err := ds.Transform(step.Column, func(_ int, v dataset.Value) dataset.Value {
		if v.IsMissing() {
			return fill
		}
		return v
	})
	if err != nil {
		return nil, action, apperrors.InvalidColumnState(Stage, step.Column, err.Error())
	}

	action.FillValue = &fill
	action.Affected = missing
	action.Message = fmt.Sprintf("Imputed %d missing values in `%s` with %s (%s).", missing, step.Column, step.Strategy, fill.Text())
	return out, action, nil
}

// fillValue computes the statistic for a step. ok is false when the column
// has nothing to compute it from.
func fillValue(ds *dataset.Dataset, step Step) (dataset.Value, bool, error) {
	switch step.Strategy {
	case StrategyMedian, StrategyMean:
		values := ds.NumericValues(step.Column)
		if len(values) == 0 {
			return dataset.Value{}, false, nil
		}
		var (
			v   float64
			err error
		)
		if step.Strategy == StrategyMedian {
			v, err = stats.Median(values)
		} else {
			v, err = stats.Mean(values)
		}
		if err != nil {
			return dataset.Value{}, false, err
		}
		return dataset.Numeric(v), true, nil
	case StrategyMode:
		values, err := ds.ColumnValues(step.Column)
		if err != nil {
			return dataset.Value{}, false, err
		}
		v, ok := Mode(values)
		return v, ok, nil
	}
	return dataset.Value{}, false, fmt.Errorf("strategy %q has no fill value", step.Strategy)
}

// Mode returns the most frequent non-missing value. Ties go to the smallest
// value, numbers ordering before strings.
func Mode(values []dataset.Value) (dataset.Value, bool) {
	type bucket struct {
		value dataset.Value
		count int
	}
	counts := map[string]*bucket{}
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		key := string(v.Type) + ":" + v.Text()
		if b, ok := counts[key]; ok {
			b.count++
			continue
		}
		counts[key] = &bucket{value: v, count: 1}
	}
	if len(counts) == 0 {
		return dataset.Value{}, false
	}

	buckets := make([]*bucket, 0, len(counts))
	for _, b := range counts {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return less(buckets[i].value, buckets[j].value)
	})
	return buckets[0].value, true
}

func less(a, b dataset.Value) bool {
	if a.IsNumeric() != b.IsNumeric() {
		return a.IsNumeric()
	}
	if a.IsNumeric() {
		return a.NumericVal < b.NumericVal
	}
	return a.StringVal < b.StringVal
}

func handleOutliers(ds *dataset.Dataset, column string, method OutlierMethod, k float64) (*dataset.Dataset, *Action, error) {
	values := ds.NumericValues(column)
	if len(values) == 0 {
		return ds, nil, nil
	}
	bounds, err := profiling.ComputeBounds(values, k)
	if err != nil {
		return nil, nil, apperrors.InvalidColumnState(Stage, column, err.Error())
	}

	switch method {
	case OutlierCap:
		var lower, upper int
		for _, x := range values {
			if x < bounds.Lower {
				lower++
			} else if x > bounds.Upper {
				upper++
			}
		}
		if lower+upper == 0 {
			return ds, nil, nil
		}
		out, err := ds.Transform(column, func(_ int, v dataset.Value) dataset.Value {
			if x, ok := v.Float64(); ok && bounds.IsOutlier(x) {
				return dataset.Numeric(bounds.Clip(x))
			}
			return v
		})
		if err != nil {
			return nil, nil, apperrors.InvalidColumnState(Stage, column, err.Error())
		}
		return out, &Action{
			Phase:     PhaseOutliers,
			Column:    column,
			Operation: string(OutlierCap),
			Affected:  lower + upper,
			Lower:     lower,
			Upper:     upper,
			Bounds:    &bounds,
			Message:   fmt.Sprintf("Capped %d lower and %d upper outliers in `%s` using IQR multiplier %g.", lower, upper, column, k),
		}, nil

	case OutlierRemove:
		out := ds.Filter(func(row int) bool {
			x, ok := ds.Value(row, column).Float64()
			return !ok || !bounds.IsOutlier(x)
		})
		removed := ds.Len() - out.Len()
		if removed == 0 {
			return ds, nil, nil
		}
		return out, &Action{
			Phase:     PhaseOutliers,
			Column:    column,
			Operation: string(OutlierRemove),
			Affected:  removed,
			Bounds:    &bounds,
			Message:   fmt.Sprintf("Removed %d rows containing outliers in `%s` using IQR multiplier %g.", removed, column, k),
		}, nil
	}
	return ds, nil, nil
}
