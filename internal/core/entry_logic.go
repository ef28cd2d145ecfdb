package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize trims header text and rounds every line to the currency's minor unit.
func (s *EntrySpec) Normalize() {
	s.Reference = strings.TrimSpace(s.Reference)
	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	s.Date = DateOnly(s.Date)

	for i := range s.Lines {
		s.Lines[i].Debit = s.Lines[i].Debit.Round(2)
		s.Lines[i].Credit = s.Lines[i].Credit.Round(2)
	}
}

// Validate enforces double-entry rules on the entry before it reaches the ledger.
// Every line carries exactly one strictly positive side and the debit total must
// equal the credit total exactly.
func (s *EntrySpec) Validate() error {
	if s.CompanyID == 0 {
		return errors.New("entry must specify a company")
	}
	if s.JournalID == 0 {
		return errors.New("entry must specify a journal")
	}
	if s.Currency == "" {
		return errors.New("entry must specify a currency")
	}
	if s.Date.IsZero() {
		return errors.New("entry must specify a date")
	}
	if len(s.Lines) < 2 {
		return errors.New("entry must have at least 2 lines")
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero

	for i, line := range s.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("line %d has no account", i+1)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return validationErr(ErrInvalidAmount, "lines", "line %d on account %s has a negative amount", i+1, line.AccountCode)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return validationErr(ErrInvalidAmount, "lines", "line %d on account %s must be either a debit or a credit", i+1, line.AccountCode)
		}
		totalDebit = totalDebit.Add(line.Debit)
		totalCredit = totalCredit.Add(line.Credit)
	}

	if !totalDebit.Equal(totalCredit) {
		return validationErr(ErrUnbalancedEntry, "lines", "entry %q is unbalanced: debits %s != credits %s",
			s.Reference, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}
	return nil
}

// Totals returns the debit and credit sums of the entry.
func (s *EntrySpec) Totals() (debit, credit decimal.Decimal) {
	for _, l := range s.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}
