package core_test

import (
	"errors"
	"testing"
	"time"

	"loan-manager/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestEntrySpec_NormalizationAndValidation(t *testing.T) {
	date := time.Date(2026, 2, 1, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lines    []core.EntryLine
		sentinel error
		wantErr  bool
	}{
		{
			name: "Happy path",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200", Debit: dec("200.00")},
				{AccountID: 2, AccountCode: "2100", Credit: dec("200.00")},
			},
		},
		{
			name: "Rounds to cents before balancing",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200", Debit: dec("100.004")},
				{AccountID: 2, AccountCode: "2100", Credit: dec("100.001")},
			},
		},
		{
			name: "Unbalanced",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200", Debit: dec("200.00")},
				{AccountID: 2, AccountCode: "2100", Credit: dec("199.99")},
			},
			wantErr:  true,
			sentinel: core.ErrUnbalancedEntry,
		},
		{
			name: "Zero line",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200"},
				{AccountID: 2, AccountCode: "2100"},
			},
			wantErr:  true,
			sentinel: core.ErrInvalidAmount,
		},
		{
			name: "Both sides on one line",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200", Debit: dec("10"), Credit: dec("10")},
				{AccountID: 2, AccountCode: "2100", Credit: dec("0")},
			},
			wantErr:  true,
			sentinel: core.ErrInvalidAmount,
		},
		{
			name: "Negative amount",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200", Debit: dec("-10")},
				{AccountID: 2, AccountCode: "2100", Credit: dec("-10")},
			},
			wantErr:  true,
			sentinel: core.ErrInvalidAmount,
		},
		{
			name: "Single line",
			lines: []core.EntryLine{
				{AccountID: 1, AccountCode: "1200", Debit: dec("10")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := core.EntrySpec{
				CompanyID: 1,
				JournalID: 1,
				Reference: "  Loan LOAN0001 ",
				Date:      date,
				Currency:  "usd",
				Lines:     tt.lines,
			}
			spec.Normalize()
			err := spec.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				assert.Equal(t, "USD", spec.Currency)
				assert.Equal(t, "Loan LOAN0001", spec.Reference)
				assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), spec.Date)
				debit, credit := spec.Totals()
				assert.True(t, debit.Equal(credit))
				return
			}
			assert.Error(t, err)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			}
		})
	}
}
