package core_test

import (
	"context"
	"errors"
	"testing"

	"loan-manager/internal/core"
	"loan-manager/internal/core/coretest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_EntryKeepsItsLoan(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toDisbursed(t, loan.Reference)

	disbursed, err := h.svc.GetLoan(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	require.NotNil(t, disbursed.RegistrationEntryID)

	ledger := core.NewLedgerService(h.Store)
	entry, err := ledger.GetEntry(ctx, h.code(), *disbursed.RegistrationEntryID)
	require.NoError(t, err)
	assert.Equal(t, loan.Reference, entry.LoanReference)

	otherLoan := 42
	_, err = ledger.UpdateEntry(ctx, h.code(), entry.ID, core.EntryUpdate{LoanID: &otherLoan})
	var immutable *core.ImmutableFieldError
	require.True(t, errors.As(err, &immutable))
	assert.Equal(t, "loan_id", immutable.Field)

	ref := "Loan LOAN0001 (signed)"
	updated, err := ledger.UpdateEntry(ctx, h.code(), entry.ID, core.EntryUpdate{Reference: &ref})
	require.NoError(t, err)
	assert.Equal(t, ref, updated.Reference)
	assert.Equal(t, loan.Reference, updated.LoanReference)

	blank := "  "
	_, err = ledger.UpdateEntry(ctx, h.code(), entry.ID, core.EntryUpdate{Reference: &blank})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = ledger.GetEntry(ctx, h.code(), 99999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerService_TrialBalanceNetsToZero(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toDisbursed(t, loan.Reference)
	_, err := h.svc.MarkPaid(ctx, h.code(), loan.Reference, 1)
	require.NoError(t, err)

	balances, err := core.NewLedgerService(h.Store).TrialBalance(ctx, h.code())
	require.NoError(t, err)

	total := dec("0")
	byCode := map[string]core.AccountBalance{}
	for _, b := range balances {
		total = total.Add(b.Balance)
		byCode[b.Code] = b
	}
	assert.True(t, total.IsZero(), "trial balance must net to zero, got %s", total)
	assert.True(t, dec("-10733.81").Equal(byCode[coretest.AccBank].Balance), "bank: %s", byCode[coretest.AccBank].Balance)
	assert.True(t, dec("11053.81").Equal(byCode[coretest.AccReceivable].Balance))
	assert.True(t, byCode[coretest.AccDisbursement].Balance.IsZero())
	assert.True(t, dec("-120").Equal(byCode[coretest.AccInterest].Balance))
}

func TestBorrowerService_LoanAccountAndRemainingTotal(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	borrowers := core.NewBorrowerService(h.Store)

	_, err := borrowers.SetLoanAccount(ctx, h.code(), h.Borrower.ID, coretest.AccDisbursement)
	assert.ErrorIs(t, err, core.ErrOutOfBounds, "receivables live in the asset range")

	_, err = borrowers.SetLoanAccount(ctx, h.code(), h.Borrower.ID, "1999")
	assert.ErrorIs(t, err, core.ErrMissingAccountConfiguration)

	_, err = borrowers.CreateBorrower(ctx, h.code(), "b001", "Duplicate")
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	loan := h.create(t, "12000", 12)
	h.toDisbursed(t, loan.Reference)
	_, err = h.svc.MarkPaid(ctx, h.code(), loan.Reference, 1)
	require.NoError(t, err)

	// A draft loan of the same borrower does not count.
	h.create(t, "3000", 6)

	b, err := borrowers.GetBorrower(ctx, h.code(), h.Borrower.ID)
	require.NoError(t, err)
	assert.True(t, dec("11053").Equal(b.RemainingTotal), "remaining: %s", b.RemainingTotal)
	require.NotNil(t, b.LoanAccount)
	assert.Equal(t, coretest.AccReceivable, b.LoanAccount.Code)
}

func TestCatalogService_RejectsForeignRequirements(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	catalog := core.NewCatalogService(h.Store)

	lt := validLoanType()
	lt.RequirementIDs = []int{h.MandatoryReq.ID, 424242}
	_, err := catalog.CreateLoanType(ctx, h.code(), lt)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	lt.RequirementIDs = []int{h.MandatoryReq.ID}
	created, err := catalog.CreateLoanType(ctx, h.code(), lt)
	require.NoError(t, err)
	assert.Equal(t, "Car Loan", created.Name)

	_, err = catalog.CreateLoanType(ctx, h.code(), validLoanType())
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	_, err = catalog.CreateRequirement(ctx, h.code(), core.Requirement{Name: "IDENTITY card"})
	assert.ErrorIs(t, err, core.ErrDuplicateName, "names are compared after normalization")
}

func TestReportingService_Portfolio(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()

	disbursed := h.create(t, "12000", 12)
	h.toDisbursed(t, disbursed.Reference)
	_, err := h.svc.MarkPaid(ctx, h.code(), disbursed.Reference, 1)
	require.NoError(t, err)

	h.create(t, "2000", 6)
	declined := h.create(t, "3000", 6)
	_, err = h.svc.Decline(ctx, h.code(), declined.Reference, "withdrawn")
	require.NoError(t, err)

	report, err := core.NewReportingService(h.Store).Portfolio(ctx, h.code(), "2026-05-01")
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalLoans)
	counts := map[core.LoanStatus]int{}
	for _, s := range report.ByStatus {
		counts[s.Status] = s.Count
	}
	assert.Equal(t, 1, counts[core.LoanDraft])
	assert.Equal(t, 1, counts[core.LoanDisbursed])
	assert.Equal(t, 1, counts[core.LoanDeclined])
	assert.True(t, dec("11800").Equal(report.Disbursed))
	assert.True(t, dec("946").Equal(report.AmountPaid))
	assert.True(t, dec("11053").Equal(report.AmountPending))
	// Installments 2 (Mar 15) and 3 (Apr 15) are overdue on May 1.
	assert.Equal(t, 2, report.OverdueCount)

	_, err = core.NewReportingService(h.Store).Portfolio(ctx, h.code(), "01/05/2026")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
