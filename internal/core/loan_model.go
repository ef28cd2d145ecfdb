package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
//
//	draft → confirmed → pending → approved → registered → disbursed
//	draft | confirmed | pending | approved → declined
type LoanStatus string

const (
	LoanDraft      LoanStatus = "draft"
	LoanConfirmed  LoanStatus = "confirmed"
	LoanPending    LoanStatus = "pending"
	LoanApproved   LoanStatus = "approved"
	LoanRegistered LoanStatus = "registered"
	LoanDisbursed  LoanStatus = "disbursed"
	LoanDeclined   LoanStatus = "declined"
)

// ParseLoanStatus accepts the lower-case status names.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch st := LoanStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case LoanDraft, LoanConfirmed, LoanPending, LoanApproved, LoanRegistered, LoanDisbursed, LoanDeclined:
		return st, nil
	}
	return "", validationErr(ErrInvalidInput, "status", "unknown loan status %q", s)
}

// Terminal reports whether no transition leaves s.
func (s LoanStatus) Terminal() bool {
	return s == LoanDisbursed || s == LoanDeclined
}

// Terms is the snapshot of a loan type's financial terms copied onto a loan.
type Terms struct {
	TenurePlan                          TenurePlan         `json:"tenure_plan"`
	AmortizationMethod                  AmortizationMethod `json:"amortization_method"`
	InterestRatePercent                 decimal.Decimal    `json:"interest_rate_percent"`
	DisburseCommissionPercent           decimal.Decimal    `json:"disburse_commission_percent"`
	AnticipatedPaymentCommissionPercent decimal.Decimal    `json:"anticipated_payment_commission_percent"`
	LegalExpenses                       decimal.Decimal    `json:"legal_expenses"`
	LifeInsurance                       decimal.Decimal    `json:"life_insurance"`
	Accounts                            AccountCodes       `json:"accounts"`
}

// DeriveTerms copies the financial terms a loan inherits from its type.
func DeriveTerms(t LoanType) Terms {
	return Terms{
		TenurePlan:                          t.TenurePlan,
		AmortizationMethod:                  t.AmortizationMethod,
		InterestRatePercent:                 t.InterestRatePercent,
		DisburseCommissionPercent:           t.DisburseCommissionPercent,
		AnticipatedPaymentCommissionPercent: t.AnticipatedPaymentCommissionPercent,
		LegalExpenses:                       t.LegalExpenses,
		LifeInsurance:                       t.LifeInsurance,
		Accounts:                            t.Accounts,
	}
}

// Loan is the central aggregate: header, terms snapshot, documents and schedule.
type Loan struct {
	ID           int    `json:"id"`
	CompanyID    int    `json:"company_id"`
	Reference    string `json:"reference"`
	BorrowerID   int    `json:"borrower_id"`
	BorrowerName string `json:"borrower_name"` // joined from borrowers
	LoanTypeID   int    `json:"loan_type_id"`
	LoanTypeName string `json:"loan_type_name"` // joined from loan_types

	Amount decimal.Decimal `json:"amount"`
	Tenure int             `json:"tenure"`
	Terms

	DisburseAmount      decimal.Decimal `json:"disburse_amount"`
	Status              LoanStatus      `json:"status"`
	RejectionReason     string          `json:"rejection_reason,omitempty"`
	RepaymentsDirty     bool            `json:"repayments_dirty"`
	CreatedOn           time.Time       `json:"created_on"`
	RegistrationEntryID *int            `json:"registration_entry_id,omitempty"`
	DisbursementEntryID *int            `json:"disbursement_entry_id,omitempty"`

	RequiredDocuments []Requirement  `json:"required_documents"`
	Documents         []LoanDocument `json:"documents"`
	Repayments        []Repayment    `json:"repayments"`
	CreatedAt         time.Time      `json:"created_at"`
}

// DisburseCommissionAmount is the commission withheld at disbursement, in cents.
func (l *Loan) DisburseCommissionAmount() decimal.Decimal {
	return l.Amount.Mul(l.DisburseCommissionPercent).Div(hundred).Round(2)
}

// ComputeDisburseAmount is what the borrower receives once commission,
// legal expenses and life insurance are withheld.
func (l *Loan) ComputeDisburseAmount() decimal.Decimal {
	return l.Amount.
		Sub(l.DisburseCommissionAmount()).
		Sub(l.LegalExpenses).
		Sub(l.LifeInsurance).
		Round(2)
}

// AmountPaid is the floored principal of paid installments of a disbursed loan.
func (l *Loan) AmountPaid() decimal.Decimal { return l.sumPrincipal(RepaymentPaid) }

// AmountPending is the floored principal of pending installments of a disbursed loan.
func (l *Loan) AmountPending() decimal.Decimal { return l.sumPrincipal(RepaymentPending) }

func (l *Loan) sumPrincipal(status RepaymentStatus) decimal.Decimal {
	if l.Status != LoanDisbursed {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, r := range l.Repayments {
		if r.Status == status {
			total = total.Add(r.Principal)
		}
	}
	return total.Floor()
}

func (l *Loan) HasSchedule() bool { return len(l.Repayments) > 0 }

// Repayment returns the installment with the given sequence.
func (l *Loan) Repayment(seq int) (*Repayment, bool) {
	for i := range l.Repayments {
		if l.Repayments[i].Sequence == seq {
			return &l.Repayments[i], true
		}
	}
	return nil, false
}

// Document returns the slot for a requirement.
func (l *Loan) Document(requirementID int) (*LoanDocument, bool) {
	for i := range l.Documents {
		if l.Documents[i].RequirementID == requirementID {
			return &l.Documents[i], true
		}
	}
	return nil, false
}

// ── Repayments ───────────────────────────────────────────────────────────────

type RepaymentStatus string

const (
	RepaymentPending RepaymentStatus = "pending"
	RepaymentPaid    RepaymentStatus = "paid"
)

// Repayment is one stored installment. Only Status and EntryID change after
// the schedule is generated.
type Repayment struct {
	ID               int             `json:"id"`
	LoanID           int             `json:"loan_id"`
	Sequence         int             `json:"sequence"`
	DueDate          time.Time       `json:"due_date"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           RepaymentStatus `json:"status"`
	EntryID          *int            `json:"entry_id,omitempty"`
}

func (r Repayment) TotalPayment() decimal.Decimal { return r.Principal.Add(r.Interest) }

// RepaymentsFromSchedule turns computed installments into pending repayments.
func RepaymentsFromSchedule(loanID int, schedule []Installment) []Repayment {
	out := make([]Repayment, len(schedule))
	for i, inst := range schedule {
		out[i] = Repayment{
			LoanID:           loanID,
			Sequence:         inst.Sequence,
			DueDate:          inst.DueDate,
			Principal:        inst.Principal,
			Interest:         inst.Interest,
			RemainingBalance: inst.RemainingBalance,
			Status:           RepaymentPending,
		}
	}
	return out
}

// RepaymentUpdate is a requested write to a stored installment. Nil fields are untouched.
type RepaymentUpdate struct {
	Sequence         *int             `json:"sequence,omitempty"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	Principal        *decimal.Decimal `json:"principal,omitempty"`
	Interest         *decimal.Decimal `json:"interest,omitempty"`
	RemainingBalance *decimal.Decimal `json:"remaining_balance,omitempty"`
	Status           *RepaymentStatus `json:"status,omitempty"`
	EntryID          *int             `json:"entry_id,omitempty"`
}

// CheckMutable rejects writes to schedule fields and paid → pending reverts.
func (u RepaymentUpdate) CheckMutable(r *Repayment) error {
	switch {
	case u.Sequence != nil:
		return &ImmutableFieldError{Entity: "repayment", Field: "sequence"}
	case u.DueDate != nil:
		return &ImmutableFieldError{Entity: "repayment", Field: "due_date"}
	case u.Principal != nil:
		return &ImmutableFieldError{Entity: "repayment", Field: "principal"}
	case u.Interest != nil:
		return &ImmutableFieldError{Entity: "repayment", Field: "interest"}
	case u.RemainingBalance != nil:
		return &ImmutableFieldError{Entity: "repayment", Field: "remaining_balance"}
	}
	if u.Status != nil && *u.Status == RepaymentPending && r.Status == RepaymentPaid {
		return stateErr(ErrInvalidState, "installment #%d is paid and cannot return to pending", r.Sequence)
	}
	if u.Status != nil && *u.Status != RepaymentPending && *u.Status != RepaymentPaid {
		return validationErr(ErrInvalidInput, "status", "unknown repayment status %q", *u.Status)
	}
	return nil
}

// ── Documents ────────────────────────────────────────────────────────────────

type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "pending"
	DocumentPresented DocumentStatus = "presented"
)

// LoanDocument is the slot for one requirement of a loan, filled by an upload.
type LoanDocument struct {
	ID              int            `json:"id"`
	LoanID          int            `json:"loan_id"`
	RequirementID   int            `json:"requirement_id"`
	RequirementName string         `json:"requirement_name"`
	Mandatory       bool           `json:"mandatory"`
	Reference       string         `json:"reference"`
	Filename        string         `json:"filename"`
	StorageKey      string         `json:"storage_key,omitempty"`
	Status          DocumentStatus `json:"status"`
	UploadedAt      *time.Time     `json:"uploaded_at,omitempty"`
}

// Uploaded reports whether a file is attached to the slot.
func (d LoanDocument) Uploaded() bool {
	return d.Filename != "" && d.StorageKey != ""
}

// ── Borrowers ────────────────────────────────────────────────────────────────

// Borrower is the party a loan is granted to. LoanAccount is the receivable
// account used for the borrower in this company.
type Borrower struct {
	ID             int             `json:"id"`
	CompanyID      int             `json:"company_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	LoanAccount    *Account        `json:"loan_account,omitempty"`
	RemainingTotal decimal.Decimal `json:"remaining_total"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ── Inputs ───────────────────────────────────────────────────────────────────

// LoanInput creates a draft loan.
type LoanInput struct {
	BorrowerID int             `json:"borrower_id"`
	LoanTypeID int             `json:"loan_type_id"`
	Amount     decimal.Decimal `json:"amount"`
	Tenure     int             `json:"tenure"`
}

// LoanUpdate edits a loan that has not been approved yet. Nil fields are untouched.
type LoanUpdate struct {
	BorrowerID *int             `json:"borrower_id,omitempty"`
	LoanTypeID *int             `json:"loan_type_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Tenure     *int             `json:"tenure,omitempty"`
}

// LoanFilter narrows a loan listing.
type LoanFilter struct {
	Status     *LoanStatus
	BorrowerID *int
}

// ── Events ───────────────────────────────────────────────────────────────────

type LoanEventType string

const (
	EventLoanCreated      LoanEventType = "loan.created"
	EventLoanTransitioned LoanEventType = "loan.transitioned"
	EventScheduleComputed LoanEventType = "loan.schedule_computed"
	EventRepaymentPaid    LoanEventType = "loan.repayment_paid"
	EventDocumentUploaded LoanEventType = "loan.document_uploaded"
)

// LoanEvent is published after the transaction that produced it commits.
type LoanEvent struct {
	Type          LoanEventType `json:"type"`
	CompanyCode   string        `json:"company_code"`
	LoanReference string        `json:"loan_reference"`
	Status        LoanStatus    `json:"status"`
	From          LoanStatus    `json:"from,omitempty"`
	Sequence      int           `json:"sequence,omitempty"`
	EntryID       *int          `json:"entry_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
