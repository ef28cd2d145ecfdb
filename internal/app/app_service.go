package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"loan-manager/internal/ai"
	"loan-manager/internal/core"
	"loan-manager/internal/export"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrIntakeUnavailable  = errors.New("loan intake not configured")
)

type appService struct {
	store     core.Store
	loans     core.LoanService
	catalog   core.CatalogService
	borrowers core.BorrowerService
	ledger    core.LedgerService
	reports   core.ReportingService
	users     core.UserService
	exports   *export.Service
	agent     ai.IntakeAgent
}

// NewAppService constructs an appService that satisfies ApplicationService.
// agent may be nil when no OpenAI key is configured.
func NewAppService(
	store core.Store,
	loans core.LoanService,
	users core.UserService,
	exports *export.Service,
	agent ai.IntakeAgent,
) ApplicationService {
	return &appService{
		store:     store,
		loans:     loans,
		catalog:   core.NewCatalogService(store),
		borrowers: core.NewBorrowerService(store),
		ledger:    core.NewLedgerService(store),
		reports:   core.NewReportingService(store),
		users:     users,
		exports:   exports,
		agent:     agent,
	}
}

// LoadDefaultCompany loads the active company, using COMPANY_CODE env var if set.
func (s *appService) LoadDefaultCompany(ctx context.Context) (*core.Company, error) {
	if code := os.Getenv("COMPANY_CODE"); code != "" {
		return s.store.Company(ctx, code)
	}

	companies, err := s.store.Companies(ctx)
	if err != nil {
		return nil, err
	}
	switch len(companies) {
	case 0:
		return nil, fmt.Errorf("no default company found, have migrations run?")
	case 1:
		return &companies[0], nil
	default:
		return nil, fmt.Errorf("multiple companies found; set COMPANY_CODE env var (e.g. COMPANY_CODE=%s)", companies[0].CompanyCode)
	}
}

// ── Catalog ───────────────────────────────────────────────────────────────────

func (s *appService) ListRequirements(ctx context.Context, companyCode string) (*RequirementListResult, error) {
	reqs, err := s.catalog.ListRequirements(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return &RequirementListResult{Requirements: reqs}, nil
}

func (s *appService) CreateRequirement(ctx context.Context, req CreateRequirementRequest) (*core.Requirement, error) {
	return s.catalog.CreateRequirement(ctx, req.CompanyCode, core.Requirement{
		Name:        req.Name,
		Description: req.Description,
		Mandatory:   req.Mandatory,
	})
}

func (s *appService) ListLoanTypes(ctx context.Context, companyCode string) (*LoanTypeListResult, error) {
	types, err := s.catalog.ListLoanTypes(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return &LoanTypeListResult{LoanTypes: types}, nil
}

func (s *appService) CreateLoanType(ctx context.Context, req CreateLoanTypeRequest) (*core.LoanType, error) {
	plan := core.TenureMonthly
	if req.TenurePlan != "" {
		p, err := core.ParseTenurePlan(req.TenurePlan)
		if err != nil {
			return nil, err
		}
		plan = p
	}
	method, err := core.ParseAmortizationMethod(req.AmortizationMethod)
	if err != nil {
		return nil, err
	}

	return s.catalog.CreateLoanType(ctx, req.CompanyCode, core.LoanType{
		Name:                                req.Name,
		Description:                         req.Description,
		Criteria:                            req.Criteria,
		MaxAmount:                           req.MaxAmount,
		MaxTenure:                           req.MaxTenure,
		TenurePlan:                          plan,
		AmortizationMethod:                  method,
		InterestRatePercent:                 req.InterestRatePercent,
		DisburseCommissionPercent:           req.DisburseCommissionPercent,
		AnticipatedPaymentCommissionPercent: req.AnticipatedPaymentCommissionPercent,
		LegalExpenses:                       req.LegalExpenses,
		LifeInsurance:                       req.LifeInsurance,
		Accounts: core.AccountCodes{
			Payment:                      req.PaymentAccount,
			Disbursement:                 req.DisbursementAccount,
			DisbursementBank:             req.DisbursementBankAccount,
			DisbursementCommission:       req.DisbursementCommissionAccount,
			AnticipatedPaymentCommission: req.AnticipatedCommissionAccount,
			LegalExpenses:                req.LegalExpensesAccount,
			LifeInsurance:                req.LifeInsuranceAccount,
			Interest:                     req.InterestAccount,
		},
		RequirementIDs: req.RequirementIDs,
	})
}

// ── Borrowers ─────────────────────────────────────────────────────────────────

func (s *appService) ListBorrowers(ctx context.Context, companyCode string) (*BorrowerListResult, error) {
	borrowers, err := s.borrowers.ListBorrowers(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return &BorrowerListResult{Borrowers: borrowers}, nil
}

// CreateBorrower creates the borrower and, when given, assigns its loan account.
func (s *appService) CreateBorrower(ctx context.Context, req CreateBorrowerRequest) (*core.Borrower, error) {
	b, err := s.borrowers.CreateBorrower(ctx, req.CompanyCode, req.Code, req.Name)
	if err != nil {
		return nil, err
	}
	if req.LoanAccount == "" {
		return b, nil
	}
	return s.borrowers.SetLoanAccount(ctx, req.CompanyCode, b.ID, req.LoanAccount)
}

func (s *appService) SetBorrowerLoanAccount(ctx context.Context, companyCode string, borrowerID int, accountCode string) (*core.Borrower, error) {
	return s.borrowers.SetLoanAccount(ctx, companyCode, borrowerID, accountCode)
}

// ── Loans ─────────────────────────────────────────────────────────────────────

func (s *appService) ListLoans(ctx context.Context, companyCode, status string) (*LoanListResult, error) {
	var filter core.LoanFilter
	if status != "" {
		st, err := core.ParseLoanStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = &st
	}
	loans, err := s.loans.ListLoans(ctx, companyCode, filter)
	if err != nil {
		return nil, err
	}
	return &LoanListResult{Loans: loans, CompanyCode: companyCode}, nil
}

func (s *appService) GetLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.GetLoan(ctx, companyCode, ref))
}

func (s *appService) CreateLoan(ctx context.Context, req CreateLoanRequest) (*LoanResult, error) {
	return loanResult(s.loans.CreateLoan(ctx, req.CompanyCode, core.LoanInput{
		BorrowerID: req.BorrowerID,
		LoanTypeID: req.LoanTypeID,
		Amount:     req.Amount,
		Tenure:     req.Tenure,
	}))
}

func (s *appService) UpdateLoan(ctx context.Context, req UpdateLoanRequest) (*LoanResult, error) {
	return loanResult(s.loans.UpdateLoan(ctx, req.CompanyCode, req.Reference, core.LoanUpdate{
		BorrowerID: req.BorrowerID,
		LoanTypeID: req.LoanTypeID,
		Amount:     req.Amount,
		Tenure:     req.Tenure,
	}))
}

func (s *appService) ComputeSchedule(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.RecomputeSchedule(ctx, companyCode, ref))
}

func (s *appService) ConfirmLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.Confirm(ctx, companyCode, ref))
}

func (s *appService) RequestApproval(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.RequestPending(ctx, companyCode, ref))
}

func (s *appService) ApproveLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.Approve(ctx, companyCode, ref))
}

func (s *appService) DeclineLoan(ctx context.Context, companyCode, ref, reason string) (*LoanResult, error) {
	return loanResult(s.loans.Decline(ctx, companyCode, ref, reason))
}

func (s *appService) RejectLoan(ctx context.Context, companyCode, ref, reason string) (*LoanResult, error) {
	return loanResult(s.loans.Reject(ctx, companyCode, ref, reason))
}

func (s *appService) RegisterLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.Register(ctx, companyCode, ref))
}

func (s *appService) DisburseLoan(ctx context.Context, companyCode, ref string) (*LoanResult, error) {
	return loanResult(s.loans.Disburse(ctx, companyCode, ref))
}

func (s *appService) MarkInstallmentPaid(ctx context.Context, companyCode, ref string, seq int) (*RepaymentResult, error) {
	rep, err := s.loans.MarkPaid(ctx, companyCode, ref, seq)
	if err != nil {
		return nil, err
	}
	return &RepaymentResult{LoanReference: ref, Repayment: rep}, nil
}

func (s *appService) ConfirmRepayment(ctx context.Context, companyCode, ref string, seq int) (*RepaymentResult, error) {
	rep, err := s.loans.ConfirmRepayment(ctx, companyCode, ref, seq)
	if err != nil {
		return nil, err
	}
	return &RepaymentResult{LoanReference: ref, Repayment: rep}, nil
}

func (s *appService) UpdateRepayment(ctx context.Context, companyCode, ref string, seq int, in core.RepaymentUpdate) (*RepaymentResult, error) {
	rep, err := s.loans.UpdateRepayment(ctx, companyCode, ref, seq, in)
	if err != nil {
		return nil, err
	}
	return &RepaymentResult{LoanReference: ref, Repayment: rep}, nil
}

func (s *appService) UploadDocument(ctx context.Context, req UploadDocumentRequest) (*core.LoanDocument, error) {
	return s.loans.UploadDocument(ctx, req.CompanyCode, req.Reference, req.RequirementID, req.Content)
}

// ── Ledger & reports ──────────────────────────────────────────────────────────

// GetTrialBalance returns the trial balance for the given company.
func (s *appService) GetTrialBalance(ctx context.Context, companyCode string) (*TrialBalanceResult, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	balances, err := s.ledger.TrialBalance(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return &TrialBalanceResult{
		CompanyCode: companyCode,
		CompanyName: company.Name,
		Currency:    company.BaseCurrency,
		Accounts:    balances,
	}, nil
}

func (s *appService) GetEntry(ctx context.Context, companyCode string, id int) (*core.LedgerEntry, error) {
	return s.ledger.GetEntry(ctx, companyCode, id)
}

func (s *appService) UpdateEntry(ctx context.Context, companyCode string, id int, in core.EntryUpdate) (*core.LedgerEntry, error) {
	return s.ledger.UpdateEntry(ctx, companyCode, id, in)
}

func (s *appService) GetPortfolio(ctx context.Context, companyCode, asOf string) (*core.PortfolioReport, error) {
	return s.reports.Portfolio(ctx, companyCode, asOf)
}

func (s *appService) StartScheduleExport(ctx context.Context, companyCode, ref string, columns []string) (*export.Status, error) {
	if s.exports == nil {
		return nil, core.NewConfigurationError(core.ErrStorageNotConfigured, "report exports are not configured")
	}
	return s.exports.StartScheduleExport(ctx, companyCode, ref, columns)
}

func (s *appService) GetExport(ctx context.Context, companyCode, id string) (*export.Status, error) {
	if s.exports == nil {
		return nil, core.NewConfigurationError(core.ErrStorageNotConfigured, "report exports are not configured")
	}
	return s.exports.Get(ctx, companyCode, id)
}

func (s *appService) ListExports(ctx context.Context, companyCode, ref string) (*ExportListResult, error) {
	if s.exports == nil {
		return nil, core.NewConfigurationError(core.ErrStorageNotConfigured, "report exports are not configured")
	}
	exports, err := s.exports.List(ctx, companyCode, ref)
	if err != nil {
		return nil, err
	}
	return &ExportListResult{LoanReference: ref, Exports: exports}, nil
}

// ── AI intake ─────────────────────────────────────────────────────────────────

func (s *appService) InterpretIntake(ctx context.Context, companyCode, text string, create bool) (*IntakeResult, error) {
	if s.agent == nil {
		return nil, core.NewConfigurationError(ErrIntakeUnavailable, "loan intake needs OPENAI_API_KEY")
	}
	borrowers, err := s.borrowers.ListBorrowers(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	types, err := s.catalog.ListLoanTypes(ctx, companyCode)
	if err != nil {
		return nil, err
	}

	resp, err := s.agent.InterpretIntake(ctx, text, ai.BuildCatalog(borrowers, types))
	if err != nil {
		return nil, fmt.Errorf("failed to interpret loan request: %w", err)
	}
	if resp.IsClarificationRequest {
		return &IntakeResult{IsClarification: true, ClarificationMessage: resp.ClarificationMessage}, nil
	}

	in, err := ai.Resolve(*resp.Proposal, borrowers, types)
	if err != nil {
		return nil, err
	}
	out := &IntakeResult{Proposal: resp.Proposal, Input: &in}
	if !create {
		return out, nil
	}
	loan, err := s.loans.CreateLoan(ctx, companyCode, in)
	if err != nil {
		return nil, err
	}
	out.Loan = loan
	return out, nil
}

// ── Users ─────────────────────────────────────────────────────────────────────

// AuthenticateUser checks the password against the stored bcrypt hash.
func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &UserSession{
		UserID:      u.ID,
		CompanyID:   u.CompanyID,
		CompanyCode: u.CompanyCode,
		Username:    u.Username,
		Role:        u.Role,
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{Username: u.Username, Email: u.Email, Role: u.Role, CompanyCode: u.CompanyCode}, nil
}

// ── private helpers ───────────────────────────────────────────────────────────

func loanResult(loan *core.Loan, err error) (*LoanResult, error) {
	if err != nil {
		return nil, err
	}
	return &LoanResult{Loan: loan}, nil
}
