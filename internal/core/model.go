package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Asset     AccountType = "asset"
	AssetCash AccountType = "asset_cash" // bank & cash accounts
	Liability AccountType = "liability"
	Equity    AccountType = "equity"
	Revenue   AccountType = "revenue"
	Expense   AccountType = "expense"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case Asset, AssetCash, Liability, Equity, Revenue, Expense:
		return true
	}
	return false
}

type Account struct {
	ID        int         `json:"id"`
	CompanyID int         `json:"company_id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
}

type Company struct {
	ID           int    `json:"id"`
	CompanyCode  string `json:"company_code"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}

type JournalType string

const (
	JournalGeneral JournalType = "general"
	JournalBank    JournalType = "bank"
	JournalCash    JournalType = "cash"
)

type Journal struct {
	ID        int         `json:"id"`
	CompanyID int         `json:"company_id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      JournalType `json:"type"`
}

type EntryState string

const (
	EntryDraft  EntryState = "draft"
	EntryPosted EntryState = "posted"
)

// LedgerEntry is a journal entry as stored by the ledger.
// LoanID is fixed at creation; posted entries are never modified.
type LedgerEntry struct {
	ID            int         `json:"id"`
	CompanyID     int         `json:"company_id"`
	JournalID     int         `json:"journal_id"`
	LoanID        *int        `json:"loan_id,omitempty"`
	LoanReference string      `json:"loan_reference,omitempty"`
	Reference     string      `json:"reference"`
	Date          time.Time   `json:"date"`
	Currency      string      `json:"currency"`
	State         EntryState  `json:"state"`
	Lines         []EntryLine `json:"lines"`
	CreatedAt     time.Time   `json:"created_at"`
	PostedAt      *time.Time  `json:"posted_at,omitempty"`
}

type EntryLine struct {
	AccountID   int             `json:"account_id"`
	AccountCode string          `json:"account_code"`
	Label       string          `json:"label"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	BorrowerID  *int            `json:"borrower_id,omitempty"`
}

// EntrySpec is what the posting engine hands to the ledger.
type EntrySpec struct {
	CompanyID int
	JournalID int
	LoanID    *int
	Reference string
	Date      time.Time
	Currency  string
	Lines     []EntryLine
}

// EntryUpdate carries the editable header fields of a ledger entry.
// A non-nil LoanID is always rejected.
type EntryUpdate struct {
	Reference *string `json:"reference,omitempty"`
	LoanID    *int    `json:"loan_id,omitempty"`
}

type AccountBalance struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Type    AccountType     `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}
