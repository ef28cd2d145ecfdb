package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PostingEngine builds the balanced entries of a loan's life and hands them
// to the ledger. It is bound to the ledger of one transaction.
type PostingEngine struct {
	ledger LedgerSystem
}

func NewPostingEngine(ledger LedgerSystem) *PostingEngine {
	return &PostingEngine{ledger: ledger}
}

// ── Registration ─────────────────────────────────────────────────────────────

// BuildRegistration debits the borrower's receivable for the full amount and
// credits every strictly positive deduction plus the amount to disburse.
func (p *PostingEngine) BuildRegistration(ctx context.Context, company *Company, loan *Loan, borrower *Borrower) (EntrySpec, error) {
	receivable, err := p.receivable(company, loan, borrower)
	if err != nil {
		return EntrySpec{}, err
	}

	lines := []EntryLine{{
		AccountID:   receivable.ID,
		AccountCode: receivable.Code,
		Label:       loan.Reference,
		Debit:       loan.Amount,
		BorrowerID:  &borrower.ID,
	}}

	credits := []struct {
		field  string
		code   string
		amount decimal.Decimal
	}{
		{"disbursement commission", loan.Accounts.DisbursementCommission, loan.DisburseCommissionAmount()},
		{"legal expenses", loan.Accounts.LegalExpenses, loan.LegalExpenses},
		{"life insurance", loan.Accounts.LifeInsurance, loan.LifeInsurance},
		{"disbursement", loan.Accounts.Disbursement, loan.DisburseAmount},
	}
	for _, c := range credits {
		if !c.amount.IsPositive() {
			continue
		}
		acc, err := p.resolve(ctx, company, c.field, c.code)
		if err != nil {
			return EntrySpec{}, err
		}
		lines = append(lines, EntryLine{AccountID: acc.ID, AccountCode: acc.Code, Label: loan.Reference, Credit: c.amount})
	}

	journal, err := p.journal(ctx, company, "registration", JournalGeneral)
	if err != nil {
		return EntrySpec{}, err
	}

	return p.spec(company, journal, loan, "Loan "+loan.Reference, entryDate(loan.CreatedOn), lines), nil
}

// ── Disbursement ─────────────────────────────────────────────────────────────

// BuildDisbursement moves the disburse amount from the disbursement account to the bank.
func (p *PostingEngine) BuildDisbursement(ctx context.Context, company *Company, loan *Loan) (EntrySpec, error) {
	if !loan.DisburseAmount.IsPositive() {
		return EntrySpec{}, validationErr(ErrInvalidAmount, "disburse_amount",
			"amount to disburse on %s must be greater than zero, got %s", loan.Reference, loan.DisburseAmount.StringFixed(2))
	}

	bank, err := p.resolve(ctx, company, "disbursement bank", loan.Accounts.DisbursementBank)
	if err != nil {
		return EntrySpec{}, err
	}
	if bank.Type != AssetCash {
		return EntrySpec{}, configErr(ErrMissingAccountConfiguration,
			"disbursement bank account %s must be a bank and cash account, got %s", bank.Code, bank.Type)
	}

	disb, err := p.resolve(ctx, company, "disbursement", loan.Accounts.Disbursement)
	if err != nil {
		return EntrySpec{}, err
	}

	label := "Disbursement " + loan.Reference
	lines := []EntryLine{
		{AccountID: disb.ID, AccountCode: disb.Code, Label: label, Debit: loan.DisburseAmount},
		{AccountID: bank.ID, AccountCode: bank.Code, Label: label, Credit: loan.DisburseAmount},
	}

	journal, err := p.journal(ctx, company, "disbursement", JournalBank, JournalCash, JournalGeneral)
	if err != nil {
		return EntrySpec{}, err
	}

	return p.spec(company, journal, loan, label, entryDate(loan.CreatedOn), lines), nil
}

// ── Payment ──────────────────────────────────────────────────────────────────

// BuildPayment debits the bank for the installment total and credits the
// receivable with the capital and the interest account with the interest.
func (p *PostingEngine) BuildPayment(ctx context.Context, company *Company, loan *Loan, borrower *Borrower, rep *Repayment) (EntrySpec, error) {
	receivable, err := p.receivable(company, loan, borrower)
	if err != nil {
		return EntrySpec{}, err
	}
	if loan.Accounts.Payment == "" {
		return EntrySpec{}, configErr(ErrMissingAccountConfiguration, "loan %s has no payment account configured", loan.Reference)
	}
	if loan.Accounts.Interest == "" {
		return EntrySpec{}, configErr(ErrMissingAccountConfiguration, "loan %s has no interest account configured", loan.Reference)
	}
	total := rep.TotalPayment()
	if !total.IsPositive() {
		return EntrySpec{}, validationErr(ErrInvalidAmount, "total_payment",
			"total payment of installment #%d must be greater than zero", rep.Sequence)
	}

	bank, err := p.resolve(ctx, company, "disbursement bank", loan.Accounts.DisbursementBank)
	if err != nil {
		return EntrySpec{}, err
	}
	interest, err := p.resolve(ctx, company, "interest", loan.Accounts.Interest)
	if err != nil {
		return EntrySpec{}, err
	}

	label := fmt.Sprintf("Installment %d %s", rep.Sequence, loan.Reference)
	lines := []EntryLine{{AccountID: bank.ID, AccountCode: bank.Code, Label: label, Debit: total}}
	if rep.Principal.IsPositive() {
		lines = append(lines, EntryLine{
			AccountID:   receivable.ID,
			AccountCode: receivable.Code,
			Label:       "Capital " + label,
			Credit:      rep.Principal,
			BorrowerID:  &borrower.ID,
		})
	}
	if rep.Interest.IsPositive() {
		lines = append(lines, EntryLine{AccountID: interest.ID, AccountCode: interest.Code, Label: "Interest " + label, Credit: rep.Interest})
	}

	journal, err := p.journal(ctx, company, "payment", JournalBank, JournalCash, JournalGeneral)
	if err != nil {
		return EntrySpec{}, err
	}

	return p.spec(company, journal, loan, "Payment "+label, entryDate(rep.DueDate), lines), nil
}

// ── Posting ──────────────────────────────────────────────────────────────────

// Post checks the entry balances, creates it and posts it. Nothing is written
// when validation fails.
func (p *PostingEngine) Post(ctx context.Context, spec EntrySpec) (int, error) {
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	id, err := p.ledger.CreateEntry(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to create entry %q: %w", spec.Reference, err)
	}
	if err := p.ledger.Post(ctx, id); err != nil {
		return 0, fmt.Errorf("failed to post entry %d: %w", id, err)
	}
	return id, nil
}

// ── Resolution helpers ───────────────────────────────────────────────────────

func (p *PostingEngine) receivable(company *Company, loan *Loan, borrower *Borrower) (*Account, error) {
	if borrower == nil || borrower.LoanAccount == nil {
		return nil, configErr(ErrMissingAccountConfiguration, "borrower of loan %s has no loan account configured", loan.Reference)
	}
	if borrower.LoanAccount.CompanyID != company.ID {
		return nil, configErr(ErrMissingAccountConfiguration,
			"loan account %s of borrower %s does not belong to company %s",
			borrower.LoanAccount.Code, borrower.Name, company.CompanyCode)
	}
	return borrower.LoanAccount, nil
}

func (p *PostingEngine) resolve(ctx context.Context, company *Company, field, code string) (*Account, error) {
	if code == "" {
		return nil, configErr(ErrMissingAccountConfiguration, "no %s account code configured", field)
	}
	acc, err := p.ledger.FindAccountByCode(ctx, company.ID, code)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s account %s: %w", field, code, err)
	}
	if acc == nil {
		return nil, configErr(ErrMissingAccountConfiguration,
			"%s account %s not found for company %s", field, code, company.CompanyCode)
	}
	return acc, nil
}

func (p *PostingEngine) journal(ctx context.Context, company *Company, purpose string, types ...JournalType) (*Journal, error) {
	j, err := p.ledger.FindJournal(ctx, company.ID, types...)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s journal: %w", purpose, err)
	}
	if j == nil {
		return nil, configErr(ErrNoJournal, "no journal for %s entries in company %s", purpose, company.CompanyCode)
	}
	return j, nil
}

func (p *PostingEngine) spec(company *Company, journal *Journal, loan *Loan, ref string, date time.Time, lines []EntryLine) EntrySpec {
	loanID := loan.ID
	return EntrySpec{
		CompanyID: company.ID,
		JournalID: journal.ID,
		LoanID:    &loanID,
		Reference: ref,
		Date:      date,
		Currency:  company.BaseCurrency,
		Lines:     lines,
	}
}

func entryDate(d time.Time) time.Time {
	if d.IsZero() {
		return DateOnly(time.Now())
	}
	return DateOnly(d)
}
