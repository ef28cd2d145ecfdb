package core

import (
	"context"
	"strings"
)

// CatalogService maintains loan products, document requirements and the
// chart of accounts they refer to.
type CatalogService interface {
	CreateRequirement(ctx context.Context, companyCode string, r Requirement) (*Requirement, error)
	ListRequirements(ctx context.Context, companyCode string) ([]Requirement, error)

	CreateLoanType(ctx context.Context, companyCode string, t LoanType) (*LoanType, error)
	GetLoanType(ctx context.Context, companyCode string, id int) (*LoanType, error)
	ListLoanTypes(ctx context.Context, companyCode string) ([]LoanType, error)

	CreateAccount(ctx context.Context, companyCode string, a Account) (*Account, error)
	CreateJournal(ctx context.Context, companyCode string, j Journal) (*Journal, error)
}

type catalogService struct {
	store Store
}

func NewCatalogService(store Store) CatalogService {
	return &catalogService{store: store}
}

// ── Requirements ─────────────────────────────────────────────────────────────

func (s *catalogService) CreateRequirement(ctx context.Context, companyCode string, r Requirement) (*Requirement, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	r.CompanyID = company.ID
	r.Normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertRequirement(ctx, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *catalogService) ListRequirements(ctx context.Context, companyCode string) ([]Requirement, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.Requirements(ctx, company.ID)
}

// ── Loan types ───────────────────────────────────────────────────────────────

// CreateLoanType validates the product and checks that every referenced
// requirement belongs to the company.
func (s *catalogService) CreateLoanType(ctx context.Context, companyCode string, t LoanType) (*LoanType, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	t.CompanyID = company.ID
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		reqs, err := tx.Requirements(ctx, company.ID)
		if err != nil {
			return err
		}
		known := make(map[int]bool, len(reqs))
		for _, r := range reqs {
			known[r.ID] = true
		}
		for _, id := range t.RequirementIDs {
			if !known[id] {
				return validationErr(ErrInvalidInput, "requirement_ids", "requirement %d does not exist in company %s", id, companyCode)
			}
		}
		return tx.InsertLoanType(ctx, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *catalogService) GetLoanType(ctx context.Context, companyCode string, id int) (*LoanType, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.LoanType(ctx, company.ID, id)
}

func (s *catalogService) ListLoanTypes(ctx context.Context, companyCode string) ([]LoanType, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.LoanTypes(ctx, company.ID)
}

// ── Chart of accounts ────────────────────────────────────────────────────────

func (s *catalogService) CreateAccount(ctx context.Context, companyCode string, a Account) (*Account, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	a.CompanyID = company.ID
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	if a.Code == "" || a.Name == "" {
		return nil, validationErr(ErrInvalidInput, "code", "account code and name are required")
	}
	if !a.Type.Valid() {
		return nil, validationErr(ErrInvalidInput, "type", "unknown account type %q", a.Type)
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertAccount(ctx, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *catalogService) CreateJournal(ctx context.Context, companyCode string, j Journal) (*Journal, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	j.CompanyID = company.ID
	j.Code = strings.ToUpper(strings.TrimSpace(j.Code))
	switch j.Type {
	case JournalGeneral, JournalBank, JournalCash:
	default:
		return nil, validationErr(ErrInvalidInput, "type", "unknown journal type %q", j.Type)
	}
	if j.Code == "" {
		return nil, validationErr(ErrInvalidInput, "code", "journal code is required")
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertJournal(ctx, &j)
	})
	if err != nil {
		return nil, err
	}
	return &j, nil
}
