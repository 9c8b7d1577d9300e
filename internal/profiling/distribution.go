package profiling

import (
	"errors"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// DefaultMultiplier is the conventional Tukey fence multiplier
const DefaultMultiplier = 1.5

// Multiplier limits accepted by the cleaning and quality stages
const (
	MinMultiplier = 1.0
	MaxMultiplier = 3.0
)

// ErrNoValues is returned when a statistic is requested over an empty column
var ErrNoValues = errors.New("no non-missing values")

// Bounds are IQR outlier fences for one column snapshot
type Bounds struct {
	Q1         float64 `json:"q1"`
	Q3         float64 `json:"q3"`
	IQR        float64 `json:"iqr"`
	Lower      float64 `json:"lower_bound"`
	Upper      float64 `json:"upper_bound"`
	Multiplier float64 `json:"multiplier"`
}

// IsOutlier reports whether x falls strictly outside the fences
func (b Bounds) IsOutlier(x float64) bool {
	return x < b.Lower || x > b.Upper
}

// Clip moves x onto the nearest fence when it lies outside
func (b Bounds) Clip(x float64) float64 {
	if x < b.Lower {
		return b.Lower
	}
	if x > b.Upper {
		return b.Upper
	}
	return x
}

// Quartiles returns the 25th and 75th percentiles using linear interpolation
// of the empirical distribution function. The input is not modified.
func Quartiles(data []float64) (q1, q3 float64, err error) {
	if len(data) == 0 {
		return 0, 0, ErrNoValues
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	q1 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	q3 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	return q1, q3, nil
}

// ComputeBounds derives (Q1 - k*IQR, Q3 + k*IQR) from the given values
func ComputeBounds(data []float64, k float64) (Bounds, error) {
	q1, q3, err := Quartiles(data)
	if err != nil {
		return Bounds{}, err
	}
	iqr := q3 - q1
	return Bounds{
		Q1:         q1,
		Q3:         q3,
		IQR:        iqr,
		Lower:      q1 - k*iqr,
		Upper:      q3 + k*iqr,
		Multiplier: k,
	}, nil
}

// CountOutliers counts values outside the fences
func CountOutliers(data []float64, b Bounds) int {
	n := 0
	for _, x := range data {
		if b.IsOutlier(x) {
			n++
		}
	}
	return n
}

// ValidMultiplier reports whether k is within the accepted fence range
func ValidMultiplier(k float64) bool {
	return k >= MinMultiplier && k <= MaxMultiplier
}

// Summary holds basic location statistics for a numeric column
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Summarize computes summary statistics over non-missing values
func Summarize(data []float64) (Summary, error) {
	if len(data) == 0 {
		return Summary{}, ErrNoValues
	}
	s := Summary{Count: len(data)}

	var err error
	if s.Min, err = stats.Min(data); err != nil {
		return s, fmt.Errorf("min: %w", err)
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, fmt.Errorf("max: %w", err)
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, fmt.Errorf("mean: %w", err)
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, fmt.Errorf("median: %w", err)
	}
	return s, nil
}
