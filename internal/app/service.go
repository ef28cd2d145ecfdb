package app

import (
	"context"

	"loan-manager/internal/core"
	"loan-manager/internal/export"
)

// ApplicationService is the single interface all UI adapters (REPL, CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// LoadDefaultCompany loads the active company. Uses COMPANY_CODE env var if set;
	// otherwise expects exactly one company in the database.
	LoadDefaultCompany(ctx context.Context) (*core.Company, error)

	// ── Catalog ──────────────────────────────────────────────────────────────

	ListRequirements(ctx context.Context, companyCode string) (*RequirementListResult, error)
	CreateRequirement(ctx context.Context, req CreateRequirementRequest) (*core.Requirement, error)
	ListLoanTypes(ctx context.Context, companyCode string) (*LoanTypeListResult, error)
	CreateLoanType(ctx context.Context, req CreateLoanTypeRequest) (*core.LoanType, error)

	// ── Borrowers ────────────────────────────────────────────────────────────

	ListBorrowers(ctx context.Context, companyCode string) (*BorrowerListResult, error)
	CreateBorrower(ctx context.Context, req CreateBorrowerRequest) (*core.Borrower, error)
	// SetBorrowerLoanAccount assigns the receivable account loans of the borrower post to.
	SetBorrowerLoanAccount(ctx context.Context, companyCode string, borrowerID int, accountCode string) (*core.Borrower, error)

	// ── Loans ────────────────────────────────────────────────────────────────

	// ListLoans returns loans of a company, optionally filtered by status name.
	ListLoans(ctx context.Context, companyCode, status string) (*LoanListResult, error)
	GetLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error)
	// CreateLoan creates a draft loan whose terms are copied from its loan type.
	CreateLoan(ctx context.Context, req CreateLoanRequest) (*LoanResult, error)
	UpdateLoan(ctx context.Context, req UpdateLoanRequest) (*LoanResult, error)

	ComputeSchedule(ctx context.Context, companyCode, ref string) (*LoanResult, error)
	ConfirmLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error)
	RequestApproval(ctx context.Context, companyCode, ref string) (*LoanResult, error)
	ApproveLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error)
	// DeclineLoan declines a loan that has not been registered yet.
	DeclineLoan(ctx context.Context, companyCode, ref, reason string) (*LoanResult, error)
	// RejectLoan is the rejection wizard: pending loans only, reason required.
	RejectLoan(ctx context.Context, companyCode, ref, reason string) (*LoanResult, error)
	// RegisterLoan posts the registration entry.
	RegisterLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error)
	// DisburseLoan posts the disbursement entry.
	DisburseLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error)

	// MarkInstallmentPaid posts the payment entry of one installment.
	MarkInstallmentPaid(ctx context.Context, companyCode, ref string, seq int) (*RepaymentResult, error)
	// ConfirmRepayment is the payment wizard: the loan must be disbursed.
	ConfirmRepayment(ctx context.Context, companyCode, ref string, seq int) (*RepaymentResult, error)
	// UpdateRepayment edits an installment; schedule figures are immutable and
	// setting status paid posts the payment.
	UpdateRepayment(ctx context.Context, companyCode, ref string, seq int, in core.RepaymentUpdate) (*RepaymentResult, error)

	UploadDocument(ctx context.Context, req UploadDocumentRequest) (*core.LoanDocument, error)

	// ── Ledger & reports ─────────────────────────────────────────────────────

	GetTrialBalance(ctx context.Context, companyCode string) (*TrialBalanceResult, error)
	// GetEntry returns a ledger entry with the reference of the loan it belongs to.
	GetEntry(ctx context.Context, companyCode string, id int) (*core.LedgerEntry, error)
	// UpdateEntry edits an entry header; its loan link cannot change.
	UpdateEntry(ctx context.Context, companyCode string, id int, in core.EntryUpdate) (*core.LedgerEntry, error)
	// GetPortfolio summarises the loan book; asOf is YYYY-MM-DD, empty for today.
	GetPortfolio(ctx context.Context, companyCode, asOf string) (*core.PortfolioReport, error)
	// StartScheduleExport renders the amortization schedule workbook in the background.
	StartScheduleExport(ctx context.Context, companyCode, ref string, columns []string) (*export.Status, error)
	GetExport(ctx context.Context, companyCode, id string) (*export.Status, error)
	ListExports(ctx context.Context, companyCode, ref string) (*ExportListResult, error)

	// ── AI intake ────────────────────────────────────────────────────────────

	// InterpretIntake turns a free-text request into a draft loan proposal, or a
	// clarification request. With create set, the proposal is saved as a draft.
	InterpretIntake(ctx context.Context, companyCode, text string, create bool) (*IntakeResult, error)

	// ── Users ────────────────────────────────────────────────────────────────

	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)
}
