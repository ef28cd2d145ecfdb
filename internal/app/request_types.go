package app

import (
	"github.com/shopspring/decimal"
)

// CreateRequirementRequest is the input for a new document requirement.
type CreateRequirementRequest struct {
	CompanyCode string
	Name        string
	Description string
	Mandatory   bool
}

// CreateLoanTypeRequest is the input for a new loan product.
type CreateLoanTypeRequest struct {
	CompanyCode                         string
	Name                                string
	Description                         string
	Criteria                            string
	MaxAmount                           decimal.Decimal
	MaxTenure                           int
	TenurePlan                          string // "monthly", "biweekly", "weekly"
	AmortizationMethod                  string // "french", "german"
	InterestRatePercent                 decimal.Decimal
	DisburseCommissionPercent           decimal.Decimal
	AnticipatedPaymentCommissionPercent decimal.Decimal
	LegalExpenses                       decimal.Decimal
	LifeInsurance                       decimal.Decimal

	PaymentAccount                string
	DisbursementAccount           string
	DisbursementBankAccount       string
	DisbursementCommissionAccount string
	AnticipatedCommissionAccount  string
	LegalExpensesAccount          string
	LifeInsuranceAccount          string
	InterestAccount               string

	RequirementIDs []int
}

// CreateBorrowerRequest is the input for a new borrower.
type CreateBorrowerRequest struct {
	CompanyCode string
	Code        string
	Name        string
	LoanAccount string // optional receivable account code
}

// CreateLoanRequest is the input for a new draft loan.
type CreateLoanRequest struct {
	CompanyCode string
	BorrowerID  int
	LoanTypeID  int
	Amount      decimal.Decimal
	Tenure      int
}

// UpdateLoanRequest edits a loan before approval. Nil fields are untouched.
type UpdateLoanRequest struct {
	CompanyCode string
	Reference   string
	BorrowerID  *int
	LoanTypeID  *int
	Amount      *decimal.Decimal
	Tenure      *int
}

// UploadDocumentRequest carries the file presented for a requirement.
type UploadDocumentRequest struct {
	CompanyCode   string
	Reference     string
	RequirementID int
	Content       []byte
}
