package core

import (
	"context"
	"time"
)

// LedgerSystem is the double-entry ledger the posting engine writes to.
type LedgerSystem interface {
	// FindAccountByCode returns nil, nil when no account has code in the company.
	FindAccountByCode(ctx context.Context, companyID int, code string) (*Account, error)
	// FindJournal returns the first journal of the company matching the first
	// type that has one, or nil, nil when none match.
	FindJournal(ctx context.Context, companyID int, types ...JournalType) (*Journal, error)
	CreateEntry(ctx context.Context, spec EntrySpec) (int, error)
	Post(ctx context.Context, entryID int) error
}

// Reader is the read side of the store, usable inside and outside a transaction.
type Reader interface {
	Company(ctx context.Context, companyCode string) (*Company, error)
	Companies(ctx context.Context) ([]Company, error)

	Requirements(ctx context.Context, companyID int) ([]Requirement, error)
	LoanType(ctx context.Context, companyID, id int) (*LoanType, error)
	LoanTypes(ctx context.Context, companyID int) ([]LoanType, error)
	Borrower(ctx context.Context, companyID, id int) (*Borrower, error)
	Borrowers(ctx context.Context, companyID int) ([]Borrower, error)

	// Loan returns the loan with its required documents, document slots and repayments.
	Loan(ctx context.Context, companyID int, reference string) (*Loan, error)
	Loans(ctx context.Context, companyID int, filter LoanFilter) ([]Loan, error)

	Entry(ctx context.Context, companyID, id int) (*LedgerEntry, error)
	TrialBalance(ctx context.Context, companyID int) ([]AccountBalance, error)
}

// Tx is a unit of work. Everything written through it commits or rolls back together.
type Tx interface {
	Reader

	// LockLoan loads the loan like Reader.Loan and holds its row lock until the
	// transaction ends.
	LockLoan(ctx context.Context, companyID int, reference string) (*Loan, error)
	// NextSequence returns the next gapless number of a per-company sequence.
	NextSequence(ctx context.Context, companyID int, name string) (int64, error)

	InsertRequirement(ctx context.Context, r *Requirement) error
	InsertLoanType(ctx context.Context, t *LoanType) error
	InsertBorrower(ctx context.Context, b *Borrower) error
	SetBorrowerLoanAccount(ctx context.Context, companyID, borrowerID, accountID int) error
	InsertAccount(ctx context.Context, a *Account) error
	InsertJournal(ctx context.Context, j *Journal) error

	InsertLoan(ctx context.Context, l *Loan) error
	// UpdateLoan writes the loan header and terms; repayments and documents are untouched.
	UpdateLoan(ctx context.Context, l *Loan) error
	// ReplaceRepayments deletes every installment of the loan and inserts rs.
	ReplaceRepayments(ctx context.Context, loanID int, rs []Repayment) error
	UpdateRepayment(ctx context.Context, r *Repayment) error
	InsertDocuments(ctx context.Context, docs []LoanDocument) error
	UpdateDocument(ctx context.Context, d *LoanDocument) error

	// UpdateEntry writes editable entry header fields.
	UpdateEntry(ctx context.Context, companyID, id int, reference string) error

	Ledger() LedgerSystem
}

// Store runs units of work against persistent storage.
type Store interface {
	Reader
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// FileStore keeps uploaded documents and generated reports.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// EventPublisher receives lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, events ...LoanEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...LoanEvent) error { return nil }

// DocumentGate answers whether a loan's document requirements are met.
type DocumentGate interface {
	IsRequirementSatisfied(loan *Loan, req Requirement) bool
	ListUploadedDocuments(loan *Loan) []LoanDocument
}

// SlotDocumentGate reads the document slots stored on the loan.
type SlotDocumentGate struct{}

func (SlotDocumentGate) IsRequirementSatisfied(loan *Loan, req Requirement) bool {
	doc, ok := loan.Document(req.ID)
	return ok && doc.Uploaded()
}

func (SlotDocumentGate) ListUploadedDocuments(loan *Loan) []LoanDocument {
	var out []LoanDocument
	for _, d := range loan.Documents {
		if d.Uploaded() {
			out = append(out, d)
		}
	}
	return out
}
