package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TenurePlan is the declared payment cadence of a loan product.
type TenurePlan int

const (
	TenureMonthly TenurePlan = iota + 1
	TenureBiweekly
	TenureWeekly
)

func (p TenurePlan) String() string {
	switch p {
	case TenureMonthly:
		return "monthly"
	case TenureBiweekly:
		return "biweekly"
	case TenureWeekly:
		return "weekly"
	}
	return fmt.Sprintf("TenurePlan(%d)", int(p))
}

func ParseTenurePlan(s string) (TenurePlan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return TenureMonthly, nil
	case "biweekly":
		return TenureBiweekly, nil
	case "weekly":
		return TenureWeekly, nil
	}
	return 0, validationErr(ErrInvalidInput, "tenure_plan", "unknown tenure plan %q", s)
}

func (p TenurePlan) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *TenurePlan) UnmarshalText(b []byte) error {
	v, err := ParseTenurePlan(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// AmortizationMethod selects how installments split capital and interest.
type AmortizationMethod int

const (
	// French is the level-payment method: constant total, growing capital share.
	French AmortizationMethod = iota + 1
	// German is the declining-balance method: constant capital, shrinking total.
	German
)

func (m AmortizationMethod) String() string {
	switch m {
	case French:
		return "french"
	case German:
		return "german"
	}
	return fmt.Sprintf("AmortizationMethod(%d)", int(m))
}

func ParseAmortizationMethod(s string) (AmortizationMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "french":
		return French, nil
	case "german":
		return German, nil
	}
	return 0, validationErr(ErrInvalidInput, "amortization_method", "unknown amortization method %q", s)
}

func (m AmortizationMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *AmortizationMethod) UnmarshalText(b []byte) error {
	v, err := ParseAmortizationMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// AccountCodes are the ledger account codes a loan product posts against.
type AccountCodes struct {
	Payment                      string `json:"payment"`
	Disbursement                 string `json:"disbursement"`
	DisbursementBank             string `json:"disbursement_bank"`
	DisbursementCommission       string `json:"disbursement_commission"`
	AnticipatedPaymentCommission string `json:"anticipated_payment_commission"`
	LegalExpenses                string `json:"legal_expenses"`
	LifeInsurance                string `json:"life_insurance"`
	Interest                     string `json:"interest"`
}

// LoanType is a loan product offered by a company.
type LoanType struct {
	ID                                  int                `json:"id"`
	CompanyID                           int                `json:"company_id"`
	Name                                string             `json:"name"`
	Description                         string             `json:"description"`
	Criteria                            string             `json:"criteria"`
	MaxAmount                           decimal.Decimal    `json:"max_amount"`
	MaxTenure                           int                `json:"max_tenure"`
	TenurePlan                          TenurePlan         `json:"tenure_plan"`
	AmortizationMethod                  AmortizationMethod `json:"amortization_method"`
	InterestRatePercent                 decimal.Decimal    `json:"interest_rate_percent"`
	DisburseCommissionPercent           decimal.Decimal    `json:"disburse_commission_percent"`
	AnticipatedPaymentCommissionPercent decimal.Decimal    `json:"anticipated_payment_commission_percent"`
	LegalExpenses                       decimal.Decimal    `json:"legal_expenses"`
	LifeInsurance                       decimal.Decimal    `json:"life_insurance"`
	Accounts                            AccountCodes       `json:"accounts"`
	RequirementIDs                      []int              `json:"requirement_ids"`
	CreatedAt                           time.Time          `json:"created_at"`
}

// Requirement is a document a loan type may ask borrowers to present.
type Requirement struct {
	ID          int       `json:"id"`
	CompanyID   int       `json:"company_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Mandatory   bool      `json:"mandatory"`
	CreatedAt   time.Time `json:"created_at"`
}

var hundred = decimal.NewFromInt(100)

// Normalize applies the catalog's text conventions and rounds monetary fields.
func (t *LoanType) Normalize() {
	t.Name = titleCase(t.Name)
	t.Description = capitalize(t.Description)
	t.Criteria = capitalize(t.Criteria)
	t.MaxAmount = t.MaxAmount.Round(2)
	t.LegalExpenses = t.LegalExpenses.Round(2)
	t.LifeInsurance = t.LifeInsurance.Round(2)
	t.Accounts = AccountCodes{
		Payment:                      strings.TrimSpace(t.Accounts.Payment),
		Disbursement:                 strings.TrimSpace(t.Accounts.Disbursement),
		DisbursementBank:             strings.TrimSpace(t.Accounts.DisbursementBank),
		DisbursementCommission:       strings.TrimSpace(t.Accounts.DisbursementCommission),
		AnticipatedPaymentCommission: strings.TrimSpace(t.Accounts.AnticipatedPaymentCommission),
		LegalExpenses:                strings.TrimSpace(t.Accounts.LegalExpenses),
		LifeInsurance:                strings.TrimSpace(t.Accounts.LifeInsurance),
		Interest:                     strings.TrimSpace(t.Accounts.Interest),
	}
}

// Validate checks the product invariants. Name uniqueness is enforced by the store.
func (t *LoanType) Validate() error {
	if t.Name == "" {
		return validationErr(ErrInvalidInput, "name", "loan type name is required")
	}
	if !t.MaxAmount.IsPositive() {
		return validationErr(ErrOutOfBounds, "max_amount", "max amount must be greater than zero, got %s", t.MaxAmount)
	}
	if t.MaxTenure <= 0 {
		return validationErr(ErrOutOfBounds, "max_tenure", "max tenure must be greater than zero, got %d", t.MaxTenure)
	}
	switch t.TenurePlan {
	case TenureMonthly, TenureBiweekly, TenureWeekly:
	default:
		return validationErr(ErrInvalidInput, "tenure_plan", "tenure plan is required")
	}
	switch t.AmortizationMethod {
	case French, German:
	default:
		return validationErr(ErrInvalidInput, "amortization_method", "amortization method is required")
	}

	percents := []struct {
		field string
		value decimal.Decimal
	}{
		{"interest_rate_percent", t.InterestRatePercent},
		{"disburse_commission_percent", t.DisburseCommissionPercent},
		{"anticipated_payment_commission_percent", t.AnticipatedPaymentCommissionPercent},
	}
	for _, p := range percents {
		if p.value.IsNegative() || p.value.GreaterThan(hundred) {
			return validationErr(ErrOutOfBounds, p.field, "%s must be between 0 and 100, got %s", p.field, p.value)
		}
	}
	if t.LegalExpenses.IsNegative() {
		return validationErr(ErrOutOfBounds, "legal_expenses", "legal expenses cannot be negative")
	}
	if t.LifeInsurance.IsNegative() {
		return validationErr(ErrOutOfBounds, "life_insurance", "life insurance cannot be negative")
	}
	return nil
}

func (r *Requirement) Normalize() {
	r.Name = titleCase(r.Name)
	r.Description = capitalize(r.Description)
}

func (r *Requirement) Validate() error {
	if r.Name == "" {
		return validationErr(ErrInvalidInput, "name", "requirement name is required")
	}
	return nil
}

var titleCaser = cases.Title(language.Und)

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return titleCaser.String(s)
}

// capitalize upper-cases the first letter and lower-cases everything else.
func capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
