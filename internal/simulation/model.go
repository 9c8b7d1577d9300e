package simulation

import "math"

// Status is the illustrative decision derived from a risk score
type Status string

const (
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Review flag values written to the simulated dataset
const (
	FlagYes = "Yes"
	FlagNo  = "No"
)

// RiskModel is a fixed additive scoring formula expressed as named coefficients
type RiskModel struct {
	CreditWeight       float64 `json:"credit_weight"`
	MissingCreditPrior float64 `json:"missing_credit_prior"`
	LeverageWeight     float64 `json:"leverage_weight"`
	LeverageCap        float64 `json:"leverage_cap"`
	Epsilon            float64 `json:"epsilon"`
	NotGraduatePenalty float64 `json:"not_graduate_penalty"`
	DependentWeight    float64 `json:"dependent_weight"`
	ApprovalCutoff     float64 `json:"approval_cutoff"`
}

// DefaultRiskModel returns the standard underwriting coefficients
func DefaultRiskModel() RiskModel {
	return RiskModel{
		CreditWeight:       0.4,
		MissingCreditPrior: 0.5,
		LeverageWeight:     0.1,
		LeverageCap:        0.3,
		Epsilon:            1e-6,
		NotGraduatePenalty: 0.05,
		DependentWeight:    0.02,
		ApprovalCutoff:     0.5,
	}
}

// Applicant holds the scoring inputs of one record after perturbation.
// Missing incomes are zero; HasLoanAmount and HasCreditHistory mark presence.
type Applicant struct {
	ApplicantIncome   float64
	CoapplicantIncome float64
	LoanAmount        float64
	HasLoanAmount     bool
	CreditHistory     float64
	HasCreditHistory  bool
	NotGraduate       bool
	Dependents        float64
}

// Terms breaks a score into its components
type Terms struct {
	Credit     float64 `json:"credit"`
	Leverage   float64 `json:"leverage"`
	Education  float64 `json:"education"`
	Dependents float64 `json:"dependents"`
}

// Terms computes each clamped component of the score
func (m RiskModel) Terms(a Applicant) Terms {
	ch := m.MissingCreditPrior
	if a.HasCreditHistory {
		ch = a.CreditHistory
	}
	t := Terms{
		Credit: clip((1-ch)*m.CreditWeight, 0, m.CreditWeight),
	}

	if a.HasLoanAmount {
		ratio := a.LoanAmount / (a.ApplicantIncome + a.CoapplicantIncome + m.Epsilon)
		if math.IsNaN(ratio) {
			ratio = 0
		}
		t.Leverage = clip(ratio*m.LeverageWeight, 0, m.LeverageCap)
	}

	if a.NotGraduate {
		t.Education = m.NotGraduatePenalty
	}

	deps := a.Dependents
	if math.IsNaN(deps) || deps < 0 {
		deps = 0
	}
	t.Dependents = deps * m.DependentWeight
	return t
}

// Score returns the composite risk score in [0, 1]
func (m RiskModel) Score(a Applicant) float64 {
	t := m.Terms(a)
	return clip(t.Credit+t.Leverage+t.Education+t.Dependents, 0, 1)
}

// Decide maps a score to the mock decision
func (m RiskModel) Decide(score float64) Status {
	if score < m.ApprovalCutoff {
		return StatusApproved
	}
	return StatusRejected
}

// NeedsReview reports whether a score strictly exceeds the review threshold
func NeedsReview(score, threshold float64) bool {
	return score > threshold
}

func clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}
