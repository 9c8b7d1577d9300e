package testkit

import (
	"fmt"
	"math/rand"

	"loanaudit/domain/dataset"
)

// LoanGeneratorConfig configures the synthetic loan application generator
type LoanGeneratorConfig struct {
	Records        int      `json:"records"`
	Seed           int64    `json:"seed"`
	MissingRate    float64  `json:"missing_rate"`
	MissingColumns []string `json:"missing_columns"`
}

// DefaultLoanConfig returns the demonstration portfolio settings
func DefaultLoanConfig() LoanGeneratorConfig {
	return LoanGeneratorConfig{
		Records:     1000,
		Seed:        42,
		MissingRate: 0.05,
		MissingColumns: []string{
			dataset.ColGender,
			dataset.ColMarried,
			dataset.ColDependents,
			dataset.ColSelfEmployed,
			dataset.ColLoanAmount,
			dataset.ColCreditHistory,
		},
	}
}

// LoanGenerator produces loan applications with realistic category mixes
// and injected missingness
type LoanGenerator struct {
	config LoanGeneratorConfig
	rng    *rand.Rand
}

// NewLoanGenerator creates a generator seeded from its config
func NewLoanGenerator(config LoanGeneratorConfig) *LoanGenerator {
	return &LoanGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

type weighted[T any] struct {
	values  []T
	weights []float64
}

func (w weighted[T]) pick(rng *rand.Rand) T {
	r := rng.Float64()
	acc := 0.0
	for i, p := range w.weights {
		acc += p
		if r < acc {
			return w.values[i]
		}
	}
	return w.values[len(w.values)-1]
}

var (
	genders       = weighted[string]{[]string{"Male", "Female"}, []float64{0.6, 0.4}}
	married       = weighted[string]{[]string{"Yes", "No"}, []float64{0.7, 0.3}}
	dependents    = weighted[string]{[]string{"0", "1", "2", "3+"}, []float64{0.5, 0.2, 0.15, 0.15}}
	education     = weighted[string]{[]string{"Graduate", "Not Graduate"}, []float64{0.75, 0.25}}
	selfEmployed  = weighted[string]{[]string{"Yes", "No"}, []float64{0.15, 0.85}}
	loanTerms     = weighted[float64]{[]float64{12, 36, 60, 120, 180, 240, 360, 480}, []float64{0.01, 0.02, 0.02, 0.05, 0.1, 0.08, 0.6, 0.12}}
	creditHistory = weighted[int]{[]int{0, 1, -1}, []float64{0.1, 0.8, 0.1}}
	propertyAreas = weighted[string]{[]string{"Urban", "Semiurban", "Rural"}, []float64{0.35, 0.35, 0.3}}
	loanStatus    = weighted[string]{[]string{"Y", "N"}, []float64{0.7, 0.3}}
)

// Generate builds a dataset in the canonical loan schema
func (g *LoanGenerator) Generate() (*dataset.Dataset, error) {
	n := g.config.Records
	if n < 0 {
		return nil, fmt.Errorf("record count must be non-negative, got %d", n)
	}

	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = g.application(i)
	}

	blank := int(float64(n) * g.config.MissingRate)
	for _, col := range g.config.MissingColumns {
		for _, idx := range g.rng.Perm(n)[:blank] {
			records[idx][col] = dataset.Missing()
		}
	}

	return dataset.FromRecords(dataset.LoanSchema, records)
}

func (g *LoanGenerator) application(i int) dataset.Record {
	ch := dataset.Missing()
	if v := creditHistory.pick(g.rng); v >= 0 {
		ch = dataset.Numeric(float64(v))
	}
	return dataset.Record{
		dataset.ColLoanID:            dataset.String(fmt.Sprintf("L%04d", i)),
		dataset.ColGender:            dataset.String(genders.pick(g.rng)),
		dataset.ColMarried:           dataset.String(married.pick(g.rng)),
		dataset.ColDependents:        dataset.String(dependents.pick(g.rng)),
		dataset.ColEducation:         dataset.String(education.pick(g.rng)),
		dataset.ColSelfEmployed:      dataset.String(selfEmployed.pick(g.rng)),
		dataset.ColApplicantIncome:   dataset.Numeric(float64(1500 + g.rng.Intn(5500))),
		dataset.ColCoapplicantIncome: dataset.Numeric(float64(g.rng.Intn(3000))),
		dataset.ColLoanAmount:        dataset.Numeric(float64(90 + g.rng.Intn(610))),
		dataset.ColLoanAmountTerm:    dataset.Numeric(loanTerms.pick(g.rng)),
		dataset.ColCreditHistory:     ch,
		dataset.ColPropertyArea:      dataset.String(propertyAreas.pick(g.rng)),
		dataset.ColLoanStatus:        dataset.String(loanStatus.pick(g.rng)),
	}
}
