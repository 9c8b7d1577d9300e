package dataset

import "fmt"

// Kind classifies a column for cleaning and profiling.
type Kind string

const (
	KindContinuous  Kind = "numeric_continuous"
	KindDiscrete    Kind = "numeric_discrete"
	KindCategorical Kind = "categorical"
	KindIdentifier  Kind = "identifier"
)

// IsNumeric reports whether cells of this kind are expected to be numbers.
func (k Kind) IsNumeric() bool {
	return k == KindContinuous || k == KindDiscrete
}

func (k Kind) Valid() bool {
	switch k {
	case KindContinuous, KindDiscrete, KindCategorical, KindIdentifier:
		return true
	}
	return false
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown column kind %q", s)
	}
	return k, nil
}

// Column is a named, kinded column of a dataset.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Loan application column names.
const (
	ColLoanID            = "Loan_ID"
	ColGender            = "Gender"
	ColMarried           = "Married"
	ColDependents        = "Dependents"
	ColEducation         = "Education"
	ColSelfEmployed      = "Self_Employed"
	ColApplicantIncome   = "ApplicantIncome"
	ColCoapplicantIncome = "CoapplicantIncome"
	ColLoanAmount        = "LoanAmount"
	ColLoanAmountTerm    = "Loan_Amount_Term"
	ColCreditHistory     = "Credit_History"
	ColPropertyArea      = "Property_Area"
	ColLoanStatus        = "Loan_Status"
)

// Columns appended by the risk simulator.
const (
	ColSimulatedRiskScore = "Simulated_Risk_Score"
	ColPredictedStatus    = "Mock_Loan_Status_Predicted"
	ColFlaggedForReview   = "Flagged_for_Human_Review"
)

// LoanSchema is the canonical loan application layout in file order.
var LoanSchema = []Column{
	{Name: ColLoanID, Kind: KindIdentifier},
	{Name: ColGender, Kind: KindCategorical},
	{Name: ColMarried, Kind: KindCategorical},
	{Name: ColDependents, Kind: KindCategorical},
	{Name: ColEducation, Kind: KindCategorical},
	{Name: ColSelfEmployed, Kind: KindCategorical},
	{Name: ColApplicantIncome, Kind: KindContinuous},
	{Name: ColCoapplicantIncome, Kind: KindContinuous},
	{Name: ColLoanAmount, Kind: KindContinuous},
	{Name: ColLoanAmountTerm, Kind: KindDiscrete},
	{Name: ColCreditHistory, Kind: KindDiscrete},
	{Name: ColPropertyArea, Kind: KindCategorical},
	{Name: ColLoanStatus, Kind: KindCategorical},
}

// LoanSchemaKind looks up the canonical kind of a loan column.
func LoanSchemaKind(name string) (Kind, bool) {
	for _, c := range LoanSchema {
		if c.Name == name {
			return c.Kind, true
		}
	}
	return "", false
}
