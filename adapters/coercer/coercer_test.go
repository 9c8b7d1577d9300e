package coercer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"loanaudit/domain/dataset"
)

func TestParseNumeric(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"5849", 5849, true},
		{" 128.5 ", 128.5, true},
		{"$1,234.50", 1234.5, true},
		{"1.234,50", 1234.5, true},
		{"1 234,5", 1234.5, true},
		{"12,000", 12000, true},
		{"(250)", -250, true},
		{"45%", 45, true},
		{"3+", 0, false},
		{"Graduate", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := c.ParseNumeric(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestCoerceValue(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())

	assert.True(t, c.CoerceValue("NaN", dataset.KindContinuous).IsMissing())
	assert.True(t, c.CoerceValue(" n/a ", dataset.KindCategorical).IsMissing())
	assert.Equal(t, dataset.Numeric(1), c.CoerceValue("1.0", dataset.KindDiscrete))
	assert.Equal(t, dataset.String("0"), c.CoerceValue("0", dataset.KindCategorical), "categorical codes stay text")
	assert.Equal(t, dataset.String("unknown"), c.CoerceValue("unknown", dataset.KindContinuous))
}

func TestInferKind(t *testing.T) {
	c := NewTypeCoercer(DefaultCoercionConfig())

	assert.Equal(t, dataset.KindContinuous, c.InferKind([]string{"1.5", "2.25", "3", "", "4.75"}))
	assert.Equal(t, dataset.KindDiscrete, c.InferKind([]string{"1", "2", "1", "2", "1"}))
	assert.Equal(t, dataset.KindCategorical, c.InferKind([]string{"a", "b", "a", "b"}))
	assert.Equal(t, dataset.KindIdentifier, c.InferKind([]string{"x1", "x2", "x3", "x4"}))
	assert.Equal(t, dataset.KindCategorical, c.InferKind([]string{"", "NA"}))

	assert.Equal(t, dataset.KindIdentifier, c.KindFor(dataset.ColLoanID, []string{"1", "2"}))
}
