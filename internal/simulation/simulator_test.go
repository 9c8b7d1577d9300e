package simulation

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanaudit/domain/dataset"
	"loanaudit/domain/provenance"
	apperrors "loanaudit/internal/errors"
)

// constSource returns the same draw forever
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

var simColumns = []dataset.Column{
	{Name: dataset.ColLoanID, Kind: dataset.KindIdentifier},
	{Name: dataset.ColDependents, Kind: dataset.KindCategorical},
	{Name: dataset.ColEducation, Kind: dataset.KindCategorical},
	{Name: dataset.ColApplicantIncome, Kind: dataset.KindContinuous},
	{Name: dataset.ColCoapplicantIncome, Kind: dataset.KindContinuous},
	{Name: dataset.ColLoanAmount, Kind: dataset.KindContinuous},
	{Name: dataset.ColCreditHistory, Kind: dataset.KindDiscrete},
}

func loans(t *testing.T) *dataset.Dataset {
	t.Helper()
	s, n, m := dataset.String, dataset.Numeric, dataset.Missing
	ds, err := dataset.New(simColumns, [][]dataset.Value{
		{s("L1"), s("0"), s("Graduate"), n(5000), n(0), n(100), n(1)},
		{s("L2"), s("3+"), s("Not Graduate"), n(0), n(0), n(150), m()},
		{s("L3"), s("1"), s("Graduate"), n(1000), n(500), n(200), n(0)},
		{s("L4"), m(), s("Not Graduate"), m(), m(), m(), n(1)},
	})
	require.NoError(t, err)
	return ds
}

func simulator() *Simulator {
	return NewSimulator(DefaultRiskModel(), provenance.NewRecorder("sim-test", nil))
}

func quiet() Config {
	return Config{HumanReviewThreshold: 0.6}
}

func TestRiskModelScore(t *testing.T) {
	m := DefaultRiskModel()

	score := m.Score(Applicant{ApplicantIncome: 5000, LoanAmount: 100, HasLoanAmount: true, CreditHistory: 1, HasCreditHistory: true})
	assert.InDelta(t, 0.002, score, 1e-9)
	assert.Equal(t, StatusApproved, m.Decide(score))

	terms := m.Terms(Applicant{LoanAmount: 150, HasLoanAmount: true, NotGraduate: true, Dependents: 3})
	assert.InDelta(t, 0.2, terms.Credit, 1e-12)
	assert.InDelta(t, 0.3, terms.Leverage, 1e-12)
	assert.InDelta(t, 0.05, terms.Education, 1e-12)
	assert.InDelta(t, 0.06, terms.Dependents, 1e-12)
	assert.Equal(t, StatusRejected, m.Decide(0.5))
}

func TestDependentsTermIsNotCapped(t *testing.T) {
	m := DefaultRiskModel()
	safe := Applicant{ApplicantIncome: 5000, CreditHistory: 1, HasCreditHistory: true}

	five := safe
	five.Dependents = 5
	assert.InDelta(t, 0.1, m.Terms(five).Dependents, 1e-12)
	assert.InDelta(t, 0.1, m.Score(five), 1e-12)

	negative := safe
	negative.Dependents = -2
	assert.Zero(t, m.Terms(negative).Dependents)

	s, n := dataset.String, dataset.Numeric
	ds, err := dataset.New(simColumns, [][]dataset.Value{
		{s("L1"), n(5), s("Graduate"), n(5000), n(0), n(0), n(1)},
		{s("L2"), s("5"), s("Graduate"), n(5000), n(0), n(0), n(1)},
		{s("L3"), s("3+"), s("Graduate"), n(5000), n(0), n(0), n(1)},
	})
	require.NoError(t, err)
	res, err := simulator().Simulate(ds, quiet(), constSource(0.5))
	require.NoError(t, err)

	want := []float64{0.1, 0.1, 0.06}
	for row, w := range want {
		score, ok := res.Dataset.Value(row, dataset.ColSimulatedRiskScore).Float64()
		require.True(t, ok)
		assert.InDelta(t, w, score, 1e-9, "row %d", row)
	}
}

func TestRiskScoreBoundsOnAdversarialInputs(t *testing.T) {
	heavy := DefaultRiskModel()
	heavy.CreditWeight, heavy.LeverageCap, heavy.DependentWeight = 0.9, 0.9, 0.5

	applicants := []Applicant{
		{HasLoanAmount: true, LoanAmount: 1e12, NotGraduate: true, Dependents: 3},
		{HasLoanAmount: true, LoanAmount: -500, ApplicantIncome: -1e-6, CreditHistory: 0, HasCreditHistory: true},
		{HasLoanAmount: true, LoanAmount: 0, ApplicantIncome: 0},
		{CreditHistory: 7, HasCreditHistory: true, Dependents: -4},
		{CreditHistory: -3, HasCreditHistory: true, Dependents: 40, NotGraduate: true},
		{HasLoanAmount: true, LoanAmount: math.MaxFloat64, ApplicantIncome: math.SmallestNonzeroFloat64},
	}
	for _, m := range []RiskModel{DefaultRiskModel(), heavy} {
		for _, a := range applicants {
			s := m.Score(a)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
	assert.Equal(t, 1.0, heavy.Score(applicants[0]))
}

func TestSimulateWithoutNoiseScoresRecords(t *testing.T) {
	ds := loans(t)
	res, err := simulator().Simulate(ds, quiet(), rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	out := res.Dataset
	require.Equal(t, ds.Width()+3, out.Width())
	assert.Equal(t, ds.Len(), out.Len())

	score := func(i int) float64 {
		f, ok := out.Value(i, dataset.ColSimulatedRiskScore).Float64()
		require.True(t, ok)
		return f
	}
	assert.InDelta(t, 0.002, score(0), 1e-9)
	assert.InDelta(t, 0.61, score(1), 1e-9)
	assert.Equal(t, "Rejected", out.Value(1, dataset.ColPredictedStatus).Text())
	assert.Equal(t, "Yes", out.Value(1, dataset.ColFlaggedForReview).Text())
	assert.InDelta(t, 0.05, score(3), 1e-9, "missing amounts contribute no leverage")
	assert.True(t, out.Value(3, dataset.ColApplicantIncome).IsMissing())

	assert.Equal(t, 4, res.Summary.Records)
	assert.Equal(t, 1, res.Summary.Flagged)
	assert.Equal(t, 3, res.Summary.Approved)
	assert.Equal(t, provenance.ActionRiskSim, res.Entry.Action)
	assert.Contains(t, res.Entry.Description, "Simulated with Income Uncertainty: 0%, Loan Amount Uncertainty: 0%, Credit History Noise: 0%, Human Review Threshold: 0.6.")
}

func TestReviewThresholdIsStrict(t *testing.T) {
	ds := loans(t)
	cfg := quiet()
	cfg.HumanReviewThreshold = 0.61

	res, err := simulator().Simulate(ds, cfg, constSource(0.5))
	require.NoError(t, err)
	// row 1 scores 0.61 up to rounding; only a strictly greater score is flagged
	s, _ := res.Dataset.Value(1, dataset.ColSimulatedRiskScore).Float64()
	want := "No"
	if s > 0.61 {
		want = "Yes"
	}
	assert.Equal(t, want, res.Dataset.Value(1, dataset.ColFlaggedForReview).Text())

	cfg.HumanReviewThreshold = 0
	res, err = simulator().Simulate(ds, cfg, constSource(0.5))
	require.NoError(t, err)
	assert.Equal(t, 4, res.Summary.Flagged)
}

func TestPerturbationAndCreditNoise(t *testing.T) {
	ds := loans(t)
	cfg := Config{IncomeUncertaintyPct: 10, LoanAmountUncertaintyPct: 20, CreditHistoryNoiseProb: 0.1, HumanReviewThreshold: 1}

	// a zero draw gives U = -pct/100 and always triggers the noise flip
	res, err := simulator().Simulate(ds, cfg, constSource(0))
	require.NoError(t, err)
	out := res.Dataset

	assert.InDelta(t, 4500.0, out.Value(0, dataset.ColApplicantIncome).NumericVal, 1e-9)
	assert.InDelta(t, 80.0, out.Value(0, dataset.ColLoanAmount).NumericVal, 1e-9)
	assert.InDelta(t, 0.0, out.Value(0, dataset.ColCoapplicantIncome).NumericVal, 1e-9)
	assert.Equal(t, dataset.Numeric(0), out.Value(0, dataset.ColCreditHistory))
	assert.Equal(t, dataset.Numeric(1), out.Value(2, dataset.ColCreditHistory))
	assert.True(t, out.Value(1, dataset.ColCreditHistory).IsMissing(), "noise never manufactures a value")
	assert.Equal(t, 3, res.Summary.CreditFlips)
	assert.Equal(t, "L1", out.Value(0, dataset.ColLoanID).Text())

	// the input snapshot is untouched
	assert.Equal(t, dataset.Numeric(5000), ds.Value(0, dataset.ColApplicantIncome))
	assert.Equal(t, dataset.Numeric(1), ds.Value(0, dataset.ColCreditHistory))
}

func TestSimulateIsReproducible(t *testing.T) {
	ds := loans(t)
	before := ds.Fingerprint()
	cfg := DefaultConfig()
	cfg.CreditHistoryNoiseProb = 0.1

	a, err := simulator().Simulate(ds, cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := simulator().Simulate(ds, cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, a.Dataset.Fingerprint(), b.Dataset.Fingerprint())
	assert.Equal(t, a.Summary, b.Summary)
	assert.Equal(t, before, ds.Fingerprint())
}

func TestResimulatingReplacesOutputColumns(t *testing.T) {
	first, err := simulator().Simulate(loans(t), quiet(), constSource(0.5))
	require.NoError(t, err)
	second, err := simulator().Simulate(first.Dataset, quiet(), constSource(0.5))
	require.NoError(t, err)
	assert.Equal(t, first.Dataset.Width(), second.Dataset.Width())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"income above 20", func(c *Config) { c.IncomeUncertaintyPct = 20.5 }, "income_uncertainty_pct"},
		{"negative loan pct", func(c *Config) { c.LoanAmountUncertaintyPct = -1 }, "loan_amount_uncertainty_pct"},
		{"noise above 0.1", func(c *Config) { c.CreditHistoryNoiseProb = 0.2 }, "credit_history_noise_prob"},
		{"threshold above 1", func(c *Config) { c.HumanReviewThreshold = 1.01 }, "human_review_threshold"},
		{"threshold NaN", func(c *Config) { c.HumanReviewThreshold = math.NaN() }, "human_review_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(&cfg)
			_, err := simulator().Simulate(loans(t), cfg, constSource(0.5))
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.CodeConfigOutOfRange))
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	edges := Config{IncomeUncertaintyPct: 20, LoanAmountUncertaintyPct: 0, CreditHistoryNoiseProb: 0.1, HumanReviewThreshold: 1}
	assert.NoError(t, edges.Validate())
}

func TestSimulateColumnErrors(t *testing.T) {
	ds, err := dataset.New([]dataset.Column{{Name: dataset.ColApplicantIncome, Kind: dataset.KindContinuous}}, nil)
	require.NoError(t, err)
	_, err = simulator().Simulate(ds, quiet(), constSource(0.5))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidColumnState))
	_, column := apperrors.Attribution(err)
	assert.Equal(t, dataset.ColLoanAmount, column)

	bad, err := dataset.New(simColumns[1:], [][]dataset.Value{
		{dataset.String("many"), dataset.String("Graduate"), dataset.Numeric(1), dataset.Numeric(1), dataset.Numeric(1), dataset.Numeric(1)},
	})
	require.NoError(t, err)
	_, err = simulator().Simulate(bad, quiet(), constSource(0.5))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidColumnState))

	_, err = simulator().Simulate(loans(t), quiet(), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestSimulateEmptyDataset(t *testing.T) {
	ds, err := dataset.New(dataset.LoanSchema, nil)
	require.NoError(t, err)

	res, err := simulator().Simulate(ds, DefaultConfig(), constSource(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Dataset.Len())
	assert.True(t, res.Dataset.HasColumn(dataset.ColFlaggedForReview))
	assert.Equal(t, Summary{}, res.Summary)
}

func TestRunBatchMatchesSequentialRuns(t *testing.T) {
	ds := loans(t)
	cfg := DefaultConfig()
	cfg.CreditHistoryNoiseProb = 0.1
	seeds := []int64{7, 11, 13, 17, 19}

	batch, err := simulator().RunBatch(context.Background(), ds, cfg, seeds, nil)
	require.NoError(t, err)
	require.Len(t, batch.Runs, len(seeds))

	for i, seed := range seeds {
		rng, _ := SeededStreams(seed)
		single, err := simulator().Simulate(ds, cfg, rng)
		require.NoError(t, err)
		assert.Equal(t, seed, batch.Runs[i].Seed)
		assert.Equal(t, single.Summary, batch.Runs[i].Summary)
	}
	assert.Contains(t, batch.Entry.Description, "Ran 5 seeded simulations")
}

func TestRunBatchRequiresSeeds(t *testing.T) {
	_, err := simulator().RunBatch(context.Background(), loans(t), DefaultConfig(), nil, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}
