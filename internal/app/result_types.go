package app

import (
	"loan-manager/internal/ai"
	"loan-manager/internal/core"
	"loan-manager/internal/export"
)

// TrialBalanceResult is returned by GetTrialBalance.
type TrialBalanceResult struct {
	CompanyCode string                `json:"company_code"`
	CompanyName string                `json:"company_name"`
	Currency    string                `json:"currency"`
	Accounts    []core.AccountBalance `json:"accounts"`
}

// LoanResult is returned by loan lifecycle operations.
type LoanResult struct {
	Loan *core.Loan
}

// LoanListResult is returned by ListLoans.
type LoanListResult struct {
	Loans       []core.Loan
	CompanyCode string
}

// RepaymentResult is returned when an installment is paid.
type RepaymentResult struct {
	LoanReference string          `json:"loan_reference"`
	Repayment     *core.Repayment `json:"repayment"`
}

// RequirementListResult is returned by ListRequirements.
type RequirementListResult struct {
	Requirements []core.Requirement
}

// LoanTypeListResult is returned by ListLoanTypes.
type LoanTypeListResult struct {
	LoanTypes []core.LoanType
}

// BorrowerListResult is returned by ListBorrowers.
type BorrowerListResult struct {
	Borrowers []core.Borrower
}

// IntakeResult is returned by InterpretIntake.
type IntakeResult struct {
	Proposal             *ai.IntakeProposal `json:"proposal,omitempty"`
	Input                *core.LoanInput    `json:"input,omitempty"` // resolved ids; nil on clarification
	Loan                 *core.Loan         `json:"loan,omitempty"`  // set when the draft was created
	ClarificationMessage string             `json:"clarification_message,omitempty"`
	IsClarification      bool               `json:"is_clarification"`
}

// UserSession is returned by AuthenticateUser and embedded into the auth token.
type UserSession struct {
	UserID      int    `json:"user_id"`
	CompanyID   int    `json:"company_id"`
	CompanyCode string `json:"company_code"`
	Username    string `json:"username"`
	Role        string `json:"role"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	Username    string
	Email       string
	Role        string
	CompanyCode string
}

// ExportListResult is returned by ListExports.
type ExportListResult struct {
	LoanReference string          `json:"loan_reference"`
	Exports       []export.Status `json:"exports"`
}
