package core

import (
	"context"
	"strings"
)

// LedgerService exposes the ledger to operators: balances and entry lookups.
type LedgerService interface {
	TrialBalance(ctx context.Context, companyCode string) ([]AccountBalance, error)
	// GetEntry returns the entry with LoanReference set when it belongs to a loan.
	GetEntry(ctx context.Context, companyCode string, id int) (*LedgerEntry, error)
	// UpdateEntry edits the entry header. The loan link is fixed at creation.
	UpdateEntry(ctx context.Context, companyCode string, id int, in EntryUpdate) (*LedgerEntry, error)
}

type ledgerService struct {
	store Store
}

func NewLedgerService(store Store) LedgerService {
	return &ledgerService{store: store}
}

func (s *ledgerService) TrialBalance(ctx context.Context, companyCode string) ([]AccountBalance, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.TrialBalance(ctx, company.ID)
}

func (s *ledgerService) GetEntry(ctx context.Context, companyCode string, id int) (*LedgerEntry, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	return s.store.Entry(ctx, company.ID, id)
}

func (s *ledgerService) UpdateEntry(ctx context.Context, companyCode string, id int, in EntryUpdate) (*LedgerEntry, error) {
	if in.LoanID != nil {
		return nil, &ImmutableFieldError{Entity: "entry", Field: "loan_id"}
	}
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}

	var out *LedgerEntry
	err = s.store.WithTx(ctx, func(tx Tx) error {
		entry, err := tx.Entry(ctx, company.ID, id)
		if err != nil {
			return err
		}
		if in.Reference != nil {
			ref := strings.TrimSpace(*in.Reference)
			if ref == "" {
				return validationErr(ErrInvalidInput, "reference", "entry reference cannot be empty")
			}
			if err := tx.UpdateEntry(ctx, company.ID, entry.ID, ref); err != nil {
				return err
			}
		}
		out, err = tx.Entry(ctx, company.ID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
