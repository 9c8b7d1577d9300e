package cleaning

import (
	"fmt"
	"strings"

	"loanaudit/domain/dataset"
	apperrors "loanaudit/internal/errors"
	"loanaudit/internal/profiling"
)

// Strategy is how missing cells of one column are handled
type Strategy string

const (
	StrategyMedian     Strategy = "median"
	StrategyMean       Strategy = "mean"
	StrategyMode       Strategy = "mode"
	StrategyRemoveRows Strategy = "remove_rows"
)

var strategyAliases = map[string]Strategy{
	"median":      StrategyMedian,
	"mean":        StrategyMean,
	"mode":        StrategyMode,
	"remove_rows": StrategyRemoveRows,
	"remove rows": StrategyRemoveRows,
	"removerows":  StrategyRemoveRows,
}

// ParseStrategy accepts canonical names and their display forms ("Remove Rows")
func ParseStrategy(s string) (Strategy, error) {
	if st, ok := strategyAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown imputation strategy %q", s))
}

// Step assigns a strategy to a column
type Step struct {
	Column   string   `json:"column"`
	Strategy Strategy `json:"strategy"`
}

// Plan is an ordered list of imputation steps, applied in declared order
type Plan []Step

// DefaultPlan proposes median for numeric columns and mode for categorical
// columns that currently have missing cells. Identifier columns are left alone.
func DefaultPlan(ds *dataset.Dataset) Plan {
	plan := Plan{}
	for _, col := range ds.Columns() {
		if ds.MissingCount(col.Name) == 0 {
			continue
		}
		switch {
		case col.Kind.IsNumeric():
			plan = append(plan, Step{Column: col.Name, Strategy: StrategyMedian})
		case col.Kind == dataset.KindCategorical:
			plan = append(plan, Step{Column: col.Name, Strategy: StrategyMode})
		}
	}
	return plan
}

// Validate checks the plan against a dataset schema before anything runs
func (p Plan) Validate(ds *dataset.Dataset) error {
	seen := make(map[string]bool, len(p))
	for _, step := range p {
		if seen[step.Column] {
			err := apperrors.InvalidInput(fmt.Sprintf("column %q appears more than once in the imputation plan", step.Column))
			err.Stage, err.Column = Stage, step.Column
			return err
		}
		seen[step.Column] = true

		col, ok := ds.Column(step.Column)
		if !ok {
			return apperrors.InvalidColumnState(Stage, step.Column, "column is not present in the dataset")
		}

		switch step.Strategy {
		case StrategyMedian, StrategyMean:
			if !col.Kind.IsNumeric() {
				return apperrors.InvalidColumnState(Stage, step.Column, fmt.Sprintf("%s imputation requires a numeric column, got %s", step.Strategy, col.Kind))
			}
		case StrategyMode:
			if col.Kind == dataset.KindIdentifier {
				return apperrors.InvalidColumnState(Stage, step.Column, "identifier columns are never imputed")
			}
		case StrategyRemoveRows:
		default:
			err := apperrors.InvalidInput(fmt.Sprintf("unknown imputation strategy %q", step.Strategy))
			err.Stage, err.Column = Stage, step.Column
			return err
		}
	}
	return nil
}

// OutlierMethod is how out-of-fence values are handled
type OutlierMethod string

const (
	OutlierNone   OutlierMethod = "none"
	OutlierCap    OutlierMethod = "cap"
	OutlierRemove OutlierMethod = "remove"
)

var outlierAliases = map[string]OutlierMethod{
	"":                             OutlierNone,
	"none":                         OutlierNone,
	"cap":                          OutlierCap,
	"cap outliers (iqr method)":    OutlierCap,
	"remove":                       OutlierRemove,
	"remove outliers (iqr method)": OutlierRemove,
}

// ParseOutlierMethod accepts canonical names and their display forms
func ParseOutlierMethod(s string) (OutlierMethod, error) {
	if m, ok := outlierAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown outlier policy %q", s))
}

// OutlierPolicy applies one method with fence multiplier k to every continuous column.
// The multiplier is ignored for OutlierNone and must lie in [1, 3] otherwise.
type OutlierPolicy struct {
	Method     OutlierMethod `json:"method"`
	Multiplier float64       `json:"multiplier"`
}

// DefaultOutlierPolicy caps at the conventional 1.5 fences
func DefaultOutlierPolicy() OutlierPolicy {
	return OutlierPolicy{Method: OutlierCap, Multiplier: profiling.DefaultMultiplier}
}

func (p OutlierPolicy) Validate() error {
	switch p.Method {
	case OutlierNone, OutlierCap, OutlierRemove:
	default:
		err := apperrors.InvalidInput(fmt.Sprintf("unknown outlier policy %q", p.Method))
		err.Stage = Stage
		return err
	}
	if p.Method != OutlierNone && !profiling.ValidMultiplier(p.Multiplier) {
		err := apperrors.ConfigurationOutOfRange("iqr_multiplier", p.Multiplier, profiling.MinMultiplier, profiling.MaxMultiplier)
		err.Stage = Stage
		return err
	}
	return nil
}
