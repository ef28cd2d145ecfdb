package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"loan-manager/internal/core"
	"loan-manager/internal/core/coretest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	*coretest.Fixture
	svc    core.LoanService
	events *coretest.Publisher
	files  *coretest.FileStore
}

func newHarness(t *testing.T, method core.AmortizationMethod) *harness {
	t.Helper()
	f := coretest.Seed(t, method)
	h := &harness{Fixture: f, events: &coretest.Publisher{}, files: coretest.NewFileStore()}
	h.svc = core.NewLoanService(f.Store,
		core.WithEventPublisher(h.events),
		core.WithFileStore(h.files),
		core.WithClock(f.Now),
	)
	return h
}

func (h *harness) code() string { return h.Company.CompanyCode }

func (h *harness) create(t *testing.T, amount string, tenure int) *core.Loan {
	t.Helper()
	loan, err := h.svc.CreateLoan(context.Background(), h.code(), core.LoanInput{
		BorrowerID: h.Borrower.ID,
		LoanTypeID: h.LoanType.ID,
		Amount:     dec(amount),
		Tenure:     tenure,
	})
	require.NoError(t, err)
	return loan
}

// toPending takes a fresh draft to pending: schedule, confirm, mandatory upload, request.
func (h *harness) toPending(t *testing.T, ref string) *core.Loan {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.RecomputeSchedule(ctx, h.code(), ref)
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, h.code(), ref)
	require.NoError(t, err)
	_, err = h.svc.UploadDocument(ctx, h.code(), ref, h.MandatoryReq.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)
	loan, err := h.svc.RequestPending(ctx, h.code(), ref)
	require.NoError(t, err)
	return loan
}

func (h *harness) toDisbursed(t *testing.T, ref string) *core.Loan {
	t.Helper()
	ctx := context.Background()
	h.toPending(t, ref)
	_, err := h.svc.Approve(ctx, h.code(), ref)
	require.NoError(t, err)
	_, err = h.svc.Register(ctx, h.code(), ref)
	require.NoError(t, err)
	loan, err := h.svc.Disburse(ctx, h.code(), ref)
	require.NoError(t, err)
	return loan
}

func assertBalanced(t *testing.T, entries []core.LedgerEntry) {
	t.Helper()
	for _, e := range entries {
		debit, credit := decimal.Zero, decimal.Zero
		for _, l := range e.Lines {
			debit = debit.Add(l.Debit)
			credit = credit.Add(l.Credit)
		}
		assert.True(t, debit.Equal(credit), "entry %d (%s) unbalanced: %s != %s", e.ID, e.Reference, debit, credit)
		assert.Equal(t, core.EntryPosted, e.State)
	}
}

func lineFor(e core.LedgerEntry, code string) (core.EntryLine, bool) {
	for _, l := range e.Lines {
		if l.AccountCode == code {
			return l, true
		}
	}
	return core.EntryLine{}, false
}

// ── Creation ─────────────────────────────────────────────────────────────────

func TestCreateLoan_CopiesTermsAndNumbers(t *testing.T) {
	h := newHarness(t, core.French)

	first := h.create(t, "12000", 12)
	second := h.create(t, "5000", 6)

	assert.Equal(t, "LOAN0001", first.Reference)
	assert.Equal(t, "LOAN0002", second.Reference)
	assert.Equal(t, core.LoanDraft, first.Status)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), first.CreatedOn)
	assert.Equal(t, core.DeriveTerms(h.LoanType), first.Terms)
	assert.Equal(t, "Jane Doe", first.BorrowerName)
	assert.Equal(t, "Personal Loan", first.LoanTypeName)
	assert.Empty(t, first.Repayments)
	assert.Len(t, first.RequiredDocuments, 2)
}

func TestCreateLoan_Bounds(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()

	tests := []struct {
		name   string
		amount string
		tenure int
	}{
		{"amount above max", "50000.01", 12},
		{"zero amount", "0", 12},
		{"tenure above max", "1000", 37},
		{"zero tenure", "1000", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateLoan(ctx, h.code(), core.LoanInput{
				BorrowerID: h.Borrower.ID, LoanTypeID: h.LoanType.ID, Amount: dec(tt.amount), Tenure: tt.tenure,
			})
			assert.ErrorIs(t, err, core.ErrOutOfBounds)
		})
	}

	// The boundaries themselves are accepted.
	_, err := h.svc.CreateLoan(ctx, h.code(), core.LoanInput{
		BorrowerID: h.Borrower.ID, LoanTypeID: h.LoanType.ID, Amount: dec("50000"), Tenure: 36,
	})
	assert.NoError(t, err)
}

func TestCreateLoan_UnknownCompany(t *testing.T) {
	h := newHarness(t, core.French)
	_, err := h.svc.CreateLoan(context.Background(), "9999", core.LoanInput{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

// ── Happy path ───────────────────────────────────────────────────────────────

func TestLoanLifecycle_FullyPostedAndBalanced(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)

	scheduled, err := h.svc.RecomputeSchedule(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	require.Len(t, scheduled.Repayments, 12)
	assert.True(t, dec("946.19").Equal(scheduled.Repayments[0].Principal))
	assert.True(t, dec("120.00").Equal(scheduled.Repayments[0].Interest))

	confirmed, err := h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanConfirmed, confirmed.Status)
	require.Len(t, confirmed.Documents, 2)
	assert.Equal(t, "DOC00001", confirmed.Documents[0].Reference)
	assert.Equal(t, "DOC00002", confirmed.Documents[1].Reference)

	doc, err := h.svc.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe - Identity Card.pdf", doc.Filename)
	assert.Equal(t, core.DocumentPresented, doc.Status)
	assert.Contains(t, h.files.Objects, "1000/loans/LOAN0001/Jane Doe - Identity Card.pdf")

	pending, err := h.svc.RequestPending(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanPending, pending.Status)

	approved, err := h.svc.Approve(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.True(t, dec("11800").Equal(approved.DisburseAmount), "disburse amount: %s", approved.DisburseAmount)

	registered, err := h.svc.Register(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	require.NotNil(t, registered.RegistrationEntryID)

	disbursed, err := h.svc.Disburse(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanDisbursed, disbursed.Status)
	require.NotNil(t, disbursed.DisbursementEntryID)

	rep, err := h.svc.MarkPaid(ctx, h.code(), loan.Reference, 1)
	require.NoError(t, err)
	assert.Equal(t, core.RepaymentPaid, rep.Status)
	require.NotNil(t, rep.EntryID)

	entries := h.Store.Entries()
	require.Len(t, entries, 3)
	assertBalanced(t, entries)

	reg := entries[0]
	assert.Equal(t, "Loan LOAN0001", reg.Reference)
	receivable, ok := lineFor(reg, coretest.AccReceivable)
	require.True(t, ok)
	assert.True(t, dec("12000").Equal(receivable.Debit))
	require.NotNil(t, receivable.BorrowerID)
	assert.Equal(t, h.Borrower.ID, *receivable.BorrowerID)
	commission, _ := lineFor(reg, coretest.AccCommission)
	assert.True(t, dec("120").Equal(commission.Credit))
	toDisburse, _ := lineFor(reg, coretest.AccDisbursement)
	assert.True(t, dec("11800").Equal(toDisburse.Credit))

	disb := entries[1]
	bank, _ := lineFor(disb, coretest.AccBank)
	assert.True(t, dec("11800").Equal(bank.Credit))

	pay := entries[2]
	bank, _ = lineFor(pay, coretest.AccBank)
	assert.True(t, dec("1066.19").Equal(bank.Debit))
	capital, _ := lineFor(pay, coretest.AccReceivable)
	assert.True(t, dec("946.19").Equal(capital.Credit))
	interest, _ := lineFor(pay, coretest.AccInterest)
	assert.True(t, dec("120").Equal(interest.Credit))
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), pay.Date)

	final, err := h.svc.GetLoan(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.True(t, dec("946").Equal(final.AmountPaid()), "paid: %s", final.AmountPaid())
	assert.True(t, dec("11053").Equal(final.AmountPending()), "pending: %s", final.AmountPending())

	var transitions []core.LoanStatus
	for _, ev := range h.events.Events() {
		if ev.Type == core.EventLoanTransitioned {
			transitions = append(transitions, ev.Status)
		}
	}
	assert.Equal(t, []core.LoanStatus{
		core.LoanConfirmed, core.LoanPending, core.LoanApproved, core.LoanRegistered, core.LoanDisbursed,
	}, transitions)
}

func TestLoanLifecycle_GermanLastInstallmentClosesBalance(t *testing.T) {
	h := newHarness(t, core.German)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toDisbursed(t, loan.Reference)

	for seq := 1; seq <= 12; seq++ {
		_, err := h.svc.ConfirmRepayment(ctx, h.code(), loan.Reference, seq)
		require.NoError(t, err, "installment %d", seq)
	}

	final, err := h.svc.GetLoan(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.True(t, dec("12000").Equal(final.AmountPaid()))
	assert.True(t, final.AmountPending().IsZero())

	ledger := core.NewLedgerService(h.Store)
	balances, err := ledger.TrialBalance(ctx, h.code())
	require.NoError(t, err)
	for _, b := range balances {
		if b.Code == coretest.AccReceivable {
			assert.True(t, b.Balance.IsZero(), "receivable should be settled, got %s", b.Balance)
		}
	}
	assertBalanced(t, h.Store.Entries())
}

// ── Guards ───────────────────────────────────────────────────────────────────

func TestTransitions_RequireExactSourceState(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "1000", 6)

	_, err := h.svc.Approve(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = h.svc.Register(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = h.svc.Disburse(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	_, err = h.svc.Reject(ctx, h.code(), loan.Reference, "not eligible")
	assert.ErrorIs(t, err, core.ErrInvalidState, "reject is only offered on pending loans")

	var guard *core.StateGuardError
	assert.True(t, errors.As(err, &guard))

	_, err = h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	again, err := h.svc.GetLoan(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Len(t, again.Documents, 2, "one slot per requirement")
}

func TestRequestPending_NeedsScheduleAndMandatoryDocuments(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "1000", 6)

	_, err := h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	_, err = h.svc.RequestPending(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrInvalidState, "no schedule yet")

	_, err = h.svc.RecomputeSchedule(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	_, err = h.svc.RequestPending(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrMissingDocument)
	var cfg *core.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
	assert.Contains(t, err.Error(), "Identity Card")

	// The optional requirement is not needed.
	_, err = h.svc.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, []byte("scan"))
	require.NoError(t, err)
	pending, err := h.svc.RequestPending(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanPending, pending.Status)
}

func TestUploadDocument_Guards(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "1000", 6)

	_, err := h.svc.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, []byte("scan"))
	assert.ErrorIs(t, err, core.ErrInvalidState, "draft loans have no slots yet")

	_, err = h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	_, err = h.svc.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, nil)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = h.svc.UploadDocument(ctx, h.code(), loan.Reference, 9999, []byte("scan"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	noFiles := core.NewLoanService(h.Store)
	_, err = noFiles.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, []byte("scan"))
	assert.ErrorIs(t, err, core.ErrStorageNotConfigured)
}

func TestDocumentFilename_StaysOneSegment(t *testing.T) {
	tests := []struct {
		borrower, requirement, want string
	}{
		{"Jane Doe", "Identity Card", "Jane Doe - Identity Card.pdf"},
		{"../../etc/passwd", "Identity Card", "_.._etc_passwd - Identity Card.pdf"},
		{`Acme\Holdings`, "Payslip", "Acme_Holdings - Payslip.pdf"},
		{"..", "Payslip", "unnamed - Payslip.pdf"},
	}
	for _, tt := range tests {
		got := core.DocumentFilename(tt.borrower, tt.requirement)
		assert.Equal(t, tt.want, got)
		assert.NotContains(t, got, "/")
	}
}

func TestUploadDocument_KeyStaysUnderLoanPrefix(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()

	b, err := core.NewBorrowerService(h.Store).CreateBorrower(ctx, h.code(), "B777", "../other/Doe")
	require.NoError(t, err)
	loan, err := h.svc.CreateLoan(ctx, h.code(), core.LoanInput{
		BorrowerID: b.ID, LoanTypeID: h.LoanType.ID, Amount: dec("1000"), Tenure: 6,
	})
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	doc, err := h.svc.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)
	prefix := h.code() + "/loans/" + loan.Reference + "/"
	require.True(t, strings.HasPrefix(doc.StorageKey, prefix), doc.StorageKey)
	assert.NotContains(t, strings.TrimPrefix(doc.StorageKey, prefix), "/")
	assert.Contains(t, h.files.Objects, doc.StorageKey)
}

func TestStaleSchedule_BlocksUntilRecomputed(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toPending(t, loan.Reference)

	amount := dec("10000")
	updated, err := h.svc.UpdateLoan(ctx, h.code(), loan.Reference, core.LoanUpdate{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.RepaymentsDirty)

	_, err = h.svc.Approve(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrStaleSchedule)

	recomputed, err := h.svc.RecomputeSchedule(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.False(t, recomputed.RepaymentsDirty)
	require.Len(t, recomputed.Repayments, 12)
	seqs := make([]int, 0, 12)
	for _, r := range recomputed.Repayments {
		seqs = append(seqs, r.Sequence)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, seqs, "no stale installments remain")
	assert.True(t, dec("100.00").Equal(recomputed.Repayments[0].Interest))

	_, err = h.svc.Approve(ctx, h.code(), loan.Reference)
	assert.NoError(t, err)
}

func TestUpdateLoan_ResyncsTermsAndRefusesAfterApproval(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)

	tenure := 40
	_, err := h.svc.UpdateLoan(ctx, h.code(), loan.Reference, core.LoanUpdate{Tenure: &tenure})
	assert.ErrorIs(t, err, core.ErrOutOfBounds)

	tenure = 24
	updated, err := h.svc.UpdateLoan(ctx, h.code(), loan.Reference, core.LoanUpdate{Tenure: &tenure})
	require.NoError(t, err)
	assert.Equal(t, 24, updated.Tenure)
	assert.False(t, updated.RepaymentsDirty, "no schedule, nothing to mark stale")

	h.toPending(t, loan.Reference)
	_, err = h.svc.Approve(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	_, err = h.svc.UpdateLoan(ctx, h.code(), loan.Reference, core.LoanUpdate{Tenure: &tenure})
	assert.ErrorIs(t, err, core.ErrIllegalEdit)

	_, err = h.svc.RecomputeSchedule(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

func TestUpdateLoan_TypeSwitchAddsDocumentSlots(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	catalog := core.NewCatalogService(h.Store)

	letter, err := catalog.CreateRequirement(ctx, h.code(), core.Requirement{Name: "guarantor letter", Mandatory: true})
	require.NoError(t, err)
	lt := validLoanType()
	lt.RequirementIDs = []int{h.MandatoryReq.ID, letter.ID}
	carLoan, err := catalog.CreateLoanType(ctx, h.code(), lt)
	require.NoError(t, err)

	loan := h.create(t, "12000", 12)
	_, err = h.svc.RecomputeSchedule(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	_, err = h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	_, err = h.svc.UploadDocument(ctx, h.code(), loan.Reference, h.MandatoryReq.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)

	switched, err := h.svc.UpdateLoan(ctx, h.code(), loan.Reference, core.LoanUpdate{LoanTypeID: &carLoan.ID})
	require.NoError(t, err)
	slot, ok := switched.Document(letter.ID)
	require.True(t, ok, "the new mandatory requirement gets a slot")
	assert.Equal(t, core.DocumentPending, slot.Status)
	kept, ok := switched.Document(h.MandatoryReq.ID)
	require.True(t, ok)
	assert.Equal(t, core.DocumentPresented, kept.Status, "existing uploads survive the switch")

	_, err = h.svc.RecomputeSchedule(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	_, err = h.svc.RequestPending(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrMissingDocument)

	_, err = h.svc.UploadDocument(ctx, h.code(), loan.Reference, letter.ID, []byte("%PDF-1.4"))
	require.NoError(t, err)
	pending, err := h.svc.RequestPending(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanPending, pending.Status)

	_, err = h.svc.UpdateLoan(ctx, h.code(), loan.Reference, core.LoanUpdate{LoanTypeID: &h.LoanType.ID})
	assert.ErrorIs(t, err, core.ErrIllegalEdit, "a pending loan keeps its type")
}

func TestDeclineAndReject(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()

	draft := h.create(t, "1000", 6)
	_, err := h.svc.Decline(ctx, h.code(), draft.Reference, "   ")
	assert.ErrorIs(t, err, core.ErrInvalidInput, "a reason is required")

	declined, err := h.svc.Decline(ctx, h.code(), draft.Reference, "incomplete file")
	require.NoError(t, err)
	assert.Equal(t, core.LoanDeclined, declined.Status)
	assert.Equal(t, "incomplete file", declined.RejectionReason)

	_, err = h.svc.Decline(ctx, h.code(), draft.Reference, "again")
	assert.ErrorIs(t, err, core.ErrInvalidState, "declined is terminal")

	pending := h.create(t, "1000", 6)
	h.toPending(t, pending.Reference)
	rejected, err := h.svc.Reject(ctx, h.code(), pending.Reference, "insufficient income")
	require.NoError(t, err)
	assert.Equal(t, core.LoanDeclined, rejected.Status)
	assert.Equal(t, "insufficient income", rejected.RejectionReason)

	registered := h.create(t, "1000", 6)
	h.toPending(t, registered.Reference)
	_, err = h.svc.Approve(ctx, h.code(), registered.Reference)
	require.NoError(t, err)
	_, err = h.svc.Register(ctx, h.code(), registered.Reference)
	require.NoError(t, err)
	_, err = h.svc.Decline(ctx, h.code(), registered.Reference, "too late")
	assert.ErrorIs(t, err, core.ErrInvalidState, "registered loans are booked")
}

// ── Payments ─────────────────────────────────────────────────────────────────

func TestPayments_InOrderOnly(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toDisbursed(t, loan.Reference)

	_, err := h.svc.MarkPaid(ctx, h.code(), loan.Reference, 2)
	assert.ErrorIs(t, err, core.ErrOutOfOrderPayment)

	_, err = h.svc.MarkPaid(ctx, h.code(), loan.Reference, 1)
	require.NoError(t, err)
	_, err = h.svc.MarkPaid(ctx, h.code(), loan.Reference, 1)
	assert.ErrorIs(t, err, core.ErrInvalidState, "already paid")

	_, err = h.svc.MarkPaid(ctx, h.code(), loan.Reference, 2)
	assert.NoError(t, err)

	_, err = h.svc.MarkPaid(ctx, h.code(), loan.Reference, 13)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Len(t, h.Store.Entries(), 4)
}

func TestConfirmRepayment_RequiresDisbursedLoan(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toPending(t, loan.Reference)
	_, err := h.svc.Approve(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	_, err = h.svc.ConfirmRepayment(ctx, h.code(), loan.Reference, 1)
	assert.ErrorIs(t, err, core.ErrInvalidState)
	assert.Empty(t, h.Store.Entries())
}

func TestUpdateRepayment_ScheduleFieldsAreImmutable(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "12000", 12)
	h.toDisbursed(t, loan.Reference)

	principal := dec("1")
	_, err := h.svc.UpdateRepayment(ctx, h.code(), loan.Reference, 1, core.RepaymentUpdate{Principal: &principal})
	var immutable *core.ImmutableFieldError
	require.True(t, errors.As(err, &immutable))
	assert.Equal(t, "principal", immutable.Field)

	paid := core.RepaymentPaid
	rep, err := h.svc.UpdateRepayment(ctx, h.code(), loan.Reference, 1, core.RepaymentUpdate{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, core.RepaymentPaid, rep.Status)
	assert.NotNil(t, rep.EntryID, "setting paid posts the payment")

	pendingStatus := core.RepaymentPending
	_, err = h.svc.UpdateRepayment(ctx, h.code(), loan.Reference, 1, core.RepaymentUpdate{Status: &pendingStatus})
	assert.ErrorIs(t, err, core.ErrInvalidState)
}

// ── Failures roll back ───────────────────────────────────────────────────────

func TestRegister_MissingLoanAccountLeavesLoanApproved(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()

	borrowers := core.NewBorrowerService(h.Store)
	noAccount, err := borrowers.CreateBorrower(ctx, h.code(), "B002", "John Roe")
	require.NoError(t, err)

	loan, err := h.svc.CreateLoan(ctx, h.code(), core.LoanInput{
		BorrowerID: noAccount.ID, LoanTypeID: h.LoanType.ID, Amount: dec("1000"), Tenure: 6,
	})
	require.NoError(t, err)
	h.toPending(t, loan.Reference)
	_, err = h.svc.Approve(ctx, h.code(), loan.Reference)
	require.NoError(t, err)

	_, err = h.svc.Register(ctx, h.code(), loan.Reference)
	assert.ErrorIs(t, err, core.ErrMissingAccountConfiguration)

	after, err := h.svc.GetLoan(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanApproved, after.Status)
	assert.Nil(t, after.RegistrationEntryID)
	assert.Empty(t, h.Store.Entries())
}

func TestPublishFailureDoesNotUndoTransition(t *testing.T) {
	h := newHarness(t, core.French)
	ctx := context.Background()
	loan := h.create(t, "1000", 6)

	h.events.Err = errors.New("broker down")
	confirmed, err := h.svc.Confirm(ctx, h.code(), loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, core.LoanConfirmed, confirmed.Status)
}
