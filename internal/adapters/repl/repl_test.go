package repl

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"loan-manager/internal/ai"
	"loan-manager/internal/app"
	"loan-manager/internal/core"
	"loan-manager/internal/core/coretest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAgent struct {
	responses []*ai.IntakeResponse
	calls     int
}

func (a *scriptedAgent) InterpretIntake(_ context.Context, _ string, _ ai.IntakeCatalog) (*ai.IntakeResponse, error) {
	resp := a.responses[a.calls]
	a.calls++
	return resp, nil
}

func newTestService(t *testing.T, agent ai.IntakeAgent) (app.ApplicationService, *coretest.Fixture) {
	t.Helper()
	f := coretest.Seed(t, core.French)
	loans := core.NewLoanService(f.Store, core.WithClock(f.Now), core.WithFileStore(coretest.NewFileStore()))
	return app.NewAppService(f.Store, loans, nil, nil, agent), f
}

func createLoan(t *testing.T, svc app.ApplicationService, f *coretest.Fixture) string {
	t.Helper()
	created, err := svc.CreateLoan(context.Background(), app.CreateLoanRequest{
		CompanyCode: f.Company.CompanyCode, BorrowerID: f.Borrower.ID, LoanTypeID: f.LoanType.ID,
		Amount: decimal.NewFromInt(12000), Tenure: 12,
	})
	require.NoError(t, err)
	return created.Loan.Reference
}

func toPending(t *testing.T, svc app.ApplicationService, f *coretest.Fixture, ref string) {
	t.Helper()
	ctx := context.Background()
	code := f.Company.CompanyCode
	_, err := svc.ComputeSchedule(ctx, code, ref)
	require.NoError(t, err)
	_, err = svc.ConfirmLoan(ctx, code, ref)
	require.NoError(t, err)
	_, err = svc.UploadDocument(ctx, app.UploadDocumentRequest{CompanyCode: code, Reference: ref, RequirementID: f.MandatoryReq.ID, Content: []byte("%PDF")})
	require.NoError(t, err)
	_, err = svc.RequestApproval(ctx, code, ref)
	require.NoError(t, err)
}

func toDisbursed(t *testing.T, svc app.ApplicationService, f *coretest.Fixture, ref string) {
	t.Helper()
	ctx := context.Background()
	code := f.Company.CompanyCode
	toPending(t, svc, f, ref)
	_, err := svc.ApproveLoan(ctx, code, ref)
	require.NoError(t, err)
	_, err = svc.RegisterLoan(ctx, code, ref)
	require.NoError(t, err)
	_, err = svc.DisburseLoan(ctx, code, ref)
	require.NoError(t, err)
}

func newSession(svc app.ApplicationService, input string) (*session, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &session{svc: svc, in: bufio.NewReader(strings.NewReader(input)), out: out, companyCode: "1000"}, out
}

func TestPayWizard_RejectsLoansThatAreNotDisbursed(t *testing.T) {
	svc, f := newTestService(t, nil)
	ref := createLoan(t, svc, f)

	s, out := newSession(svc, "y\n")
	require.NoError(t, s.payWizard(context.Background(), []string{ref}))
	assert.Contains(t, out.String(), "only disbursed loans accept payments")

	loan, err := svc.GetLoan(context.Background(), "1000", ref)
	require.NoError(t, err)
	assert.Equal(t, core.LoanDraft, loan.Loan.Status)
}

func TestPayWizard_PaysNextInstallmentByDefault(t *testing.T) {
	svc, f := newTestService(t, nil)
	ref := createLoan(t, svc, f)
	toDisbursed(t, svc, f, ref)

	s, out := newSession(svc, ref+"\n\ny\n")
	require.NoError(t, s.payWizard(context.Background(), nil))
	assert.Contains(t, out.String(), "Installment [1]")
	assert.Contains(t, out.String(), "Installment 1 of "+ref+" PAID")

	loan, err := svc.GetLoan(context.Background(), "1000", ref)
	require.NoError(t, err)
	assert.Equal(t, core.RepaymentPaid, loan.Loan.Repayments[0].Status)
	assert.Equal(t, core.RepaymentPending, loan.Loan.Repayments[1].Status)
}

func TestPayWizard_OutOfOrderIsRefused(t *testing.T) {
	svc, f := newTestService(t, nil)
	ref := createLoan(t, svc, f)
	toDisbursed(t, svc, f, ref)

	s, _ := newSession(svc, "3\ny\n")
	err := s.payWizard(context.Background(), []string{ref})
	assert.ErrorIs(t, err, core.ErrOutOfOrderPayment)
}

func TestRejectWizard_RequiresReason(t *testing.T) {
	svc, f := newTestService(t, nil)
	ref := createLoan(t, svc, f)
	toPending(t, svc, f, ref)

	s, out := newSession(svc, ref+"\n\ninsufficient income\ny\n")
	require.NoError(t, s.rejectWizard(context.Background(), nil))
	assert.Contains(t, out.String(), "A reason is required")
	assert.Contains(t, out.String(), "DECLINED: insufficient income")

	loan, err := svc.GetLoan(context.Background(), "1000", ref)
	require.NoError(t, err)
	assert.Equal(t, core.LoanDeclined, loan.Loan.Status)
}

func TestRejectWizard_CancelLeavesLoanPending(t *testing.T) {
	svc, f := newTestService(t, nil)
	ref := createLoan(t, svc, f)
	toPending(t, svc, f, ref)

	s, out := newSession(svc, "cancel\n")
	require.NoError(t, s.rejectWizard(context.Background(), []string{ref}))
	assert.Contains(t, out.String(), "Cancelled.")

	loan, err := svc.GetLoan(context.Background(), "1000", ref)
	require.NoError(t, err)
	assert.Equal(t, core.LoanPending, loan.Loan.Status)
}

func TestRun_IntakeCreatesDraftAfterClarification(t *testing.T) {
	agent := &scriptedAgent{responses: []*ai.IntakeResponse{
		{IsClarificationRequest: true, ClarificationMessage: "For how many months?"},
		{Proposal: &ai.IntakeProposal{BorrowerCode: "B001", LoanTypeName: "Personal Loan", Amount: "12000", Tenure: 12, Confidence: 0.9}},
	}}
	svc, _ := newTestService(t, agent)

	out := &bytes.Buffer{}
	in := bufio.NewReader(strings.NewReader("Jane needs 12000 personal loan\n12 months\ny\n/loans\n/exit\n"))
	require.NoError(t, Run(context.Background(), svc, in, out))

	assert.Equal(t, 2, agent.calls)
	assert.Contains(t, out.String(), "For how many months?")
	assert.Contains(t, out.String(), "Draft loan LOAN0001 created")
	assert.Contains(t, out.String(), "LOAN0001")
	assert.Contains(t, out.String(), "Goodbye!")
}

func TestRun_TransitionsAndUnknownCommands(t *testing.T) {
	svc, f := newTestService(t, nil)
	ref := createLoan(t, svc, f)

	out := &bytes.Buffer{}
	in := bufio.NewReader(strings.NewReader("/schedule " + ref + "\n/confirm " + ref + "\n/frobnicate\n/decline " + ref + " changed plans\n"))
	require.NoError(t, Run(context.Background(), svc, in, out))

	text := out.String()
	assert.Contains(t, text, "SCHEDULE - "+ref)
	assert.Contains(t, text, "Status: CONFIRMED")
	assert.Contains(t, text, "Unknown command: /frobnicate")
	assert.Contains(t, text, "DECLINED: changed plans")
}
