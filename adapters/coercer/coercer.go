package coercer

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"loanaudit/domain/dataset"
)

// TypeCoercer turns raw spreadsheet cells into typed dataset values
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion thresholds and rules
type CoercionConfig struct {
	NumericThreshold    float64  `json:"numeric_threshold"`    // share of values that must parse as numbers
	MaxDiscreteValues   int      `json:"max_discrete_values"`  // integer columns at or below this cardinality are discrete
	IdentifierThreshold float64  `json:"identifier_threshold"` // unique share above which a string column is an identifier
	MissingTokens       []string `json:"missing_tokens"`
}

// DefaultCoercionConfig returns sensible defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NumericThreshold:    0.9,
		MaxDiscreteValues:   12,
		IdentifierThreshold: 0.95,
		MissingTokens:       []string{"", "na", "n/a", "nan", "null", "none", "-"},
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// IsMissing reports whether a raw cell is a missing-value token
func (c *TypeCoercer) IsMissing(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, tok := range c.config.MissingTokens {
		if s == tok {
			return true
		}
	}
	return false
}

// CoerceValue converts a raw cell for a column of the given kind. Numeric
// kinds parse numbers and keep unparseable text as a string cell; other
// kinds keep the trimmed text.
func (c *TypeCoercer) CoerceValue(raw string, kind dataset.Kind) dataset.Value {
	if c.IsMissing(raw) {
		return dataset.Missing()
	}
	s := strings.TrimSpace(raw)
	if kind.IsNumeric() {
		if f, ok := c.ParseNumeric(s); ok {
			return dataset.Numeric(f)
		}
	}
	return dataset.String(s)
}

// ParseNumeric parses plain, currency, percentage, parenthesised-negative
// and thousands-separated numbers.
func (c *TypeCoercer) ParseNumeric(raw string) (float64, bool) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
		negative = true
	}
	for _, symbol := range []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "%"} {
		clean = strings.ReplaceAll(clean, symbol, "")
	}
	clean = normaliseSeparators(strings.TrimSpace(clean))
	if negative {
		clean = "-" + clean
	}

	f, err := cast.ToFloat64E(clean)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normaliseSeparators rewrites 1,234.56 / 1.234,56 / 1 234,56 / 1,234 to 1234.56 or 1234
func normaliseSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasPeriod := strings.Contains(s, ".")
	hasSpace := strings.Contains(s, " ")

	switch {
	case hasComma && hasPeriod:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		after := s[strings.LastIndex(s, ",")+1:]
		if len(after) == 3 && !hasSpace {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	return strings.ReplaceAll(s, " ", "")
}

// TypeAnalysis summarises the raw values of one column
type TypeAnalysis struct {
	TotalCount   int     `json:"total_count"`
	ValidCount   int     `json:"valid_count"`
	NumericCount int     `json:"numeric_count"`
	IntegerCount int     `json:"integer_count"`
	UniqueCount  int     `json:"unique_count"`
	NumericRatio float64 `json:"numeric_ratio"`
}

// AnalyzeTypeDistribution counts how the raw values of a column parse
func (c *TypeCoercer) AnalyzeTypeDistribution(values []string) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: len(values)}
	unique := make(map[string]struct{})
	for _, raw := range values {
		if c.IsMissing(raw) {
			continue
		}
		analysis.ValidCount++
		unique[strings.TrimSpace(raw)] = struct{}{}
		if f, ok := c.ParseNumeric(raw); ok {
			analysis.NumericCount++
			if f == math.Trunc(f) {
				analysis.IntegerCount++
			}
		}
	}
	analysis.UniqueCount = len(unique)
	if analysis.ValidCount > 0 {
		analysis.NumericRatio = float64(analysis.NumericCount) / float64(analysis.ValidCount)
	}
	return analysis
}

// InferKind picks a column kind for a column outside the loan schema
func (c *TypeCoercer) InferKind(values []string) dataset.Kind {
	a := c.AnalyzeTypeDistribution(values)
	if a.ValidCount == 0 {
		return dataset.KindCategorical
	}
	if a.NumericRatio >= c.config.NumericThreshold {
		if a.IntegerCount == a.NumericCount && a.UniqueCount <= c.config.MaxDiscreteValues {
			return dataset.KindDiscrete
		}
		return dataset.KindContinuous
	}
	if a.ValidCount > 1 && float64(a.UniqueCount)/float64(a.ValidCount) >= c.config.IdentifierThreshold {
		return dataset.KindIdentifier
	}
	return dataset.KindCategorical
}

// KindFor resolves the kind of a named column, preferring the loan schema
func (c *TypeCoercer) KindFor(name string, values []string) dataset.Kind {
	if k, ok := dataset.LoanSchemaKind(name); ok {
		return k
	}
	return c.InferKind(values)
}
