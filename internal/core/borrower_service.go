package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BorrowerService manages borrowers and the receivable account each one is
// booked against in a company.
type BorrowerService interface {
	CreateBorrower(ctx context.Context, companyCode, code, name string) (*Borrower, error)
	GetBorrower(ctx context.Context, companyCode string, id int) (*Borrower, error)
	ListBorrowers(ctx context.Context, companyCode string) ([]Borrower, error)
	// SetLoanAccount assigns the borrower's receivable account by code. Only
	// asset-range codes (starting with "1") are accepted.
	SetLoanAccount(ctx context.Context, companyCode string, borrowerID int, accountCode string) (*Borrower, error)
}

type borrowerService struct {
	store Store
}

func NewBorrowerService(store Store) BorrowerService {
	return &borrowerService{store: store}
}

func (s *borrowerService) CreateBorrower(ctx context.Context, companyCode, code, name string) (*Borrower, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	b := Borrower{
		CompanyID: company.ID,
		Code:      strings.ToUpper(strings.TrimSpace(code)),
		Name:      strings.TrimSpace(name),
	}
	if b.Code == "" || b.Name == "" {
		return nil, validationErr(ErrInvalidInput, "name", "borrower code and name are required")
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertBorrower(ctx, &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *borrowerService) GetBorrower(ctx context.Context, companyCode string, id int) (*Borrower, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	b, err := s.store.Borrower(ctx, company.ID, id)
	if err != nil {
		return nil, err
	}
	if err := s.withRemaining(ctx, company.ID, []*Borrower{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *borrowerService) ListBorrowers(ctx context.Context, companyCode string) ([]Borrower, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	borrowers, err := s.store.Borrowers(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*Borrower, len(borrowers))
	for i := range borrowers {
		ptrs[i] = &borrowers[i]
	}
	if err := s.withRemaining(ctx, company.ID, ptrs); err != nil {
		return nil, err
	}
	return borrowers, nil
}

func (s *borrowerService) SetLoanAccount(ctx context.Context, companyCode string, borrowerID int, accountCode string) (*Borrower, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	accountCode = strings.TrimSpace(accountCode)
	if !strings.HasPrefix(accountCode, "1") {
		return nil, validationErr(ErrOutOfBounds, "loan_account", "loan account %q must be an asset account (code starting with 1)", accountCode)
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Borrower(ctx, company.ID, borrowerID); err != nil {
			return err
		}
		acc, err := tx.Ledger().FindAccountByCode(ctx, company.ID, accountCode)
		if err != nil {
			return fmt.Errorf("failed to resolve loan account %s: %w", accountCode, err)
		}
		if acc == nil {
			return configErr(ErrMissingAccountConfiguration, "account %s not found for company %s", accountCode, companyCode)
		}
		return tx.SetBorrowerLoanAccount(ctx, company.ID, borrowerID, acc.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.GetBorrower(ctx, companyCode, borrowerID)
}

// withRemaining fills RemainingTotal from the borrowers' disbursed loans.
func (s *borrowerService) withRemaining(ctx context.Context, companyID int, borrowers []*Borrower) error {
	disbursed := LoanDisbursed
	loans, err := s.store.Loans(ctx, companyID, LoanFilter{Status: &disbursed})
	if err != nil {
		return err
	}
	for _, b := range borrowers {
		b.RemainingTotal = RemainingTotal(b.ID, loans)
	}
	return nil
}

// RemainingTotal is the floored principal still pending on a borrower's
// disbursed loans.
func RemainingTotal(borrowerID int, loans []Loan) decimal.Decimal {
	total := decimal.Zero
	for _, l := range loans {
		if l.BorrowerID != borrowerID || l.Status != LoanDisbursed {
			continue
		}
		for _, r := range l.Repayments {
			if r.Status == RepaymentPending {
				total = total.Add(r.Principal)
			}
		}
	}
	return total.Floor()
}
