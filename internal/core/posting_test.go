package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"loan-manager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) FindAccountByCode(ctx context.Context, companyID int, code string) (*core.Account, error) {
	args := m.Called(ctx, companyID, code)
	acc, _ := args.Get(0).(*core.Account)
	return acc, args.Error(1)
}

func (m *mockLedger) FindJournal(ctx context.Context, companyID int, types ...core.JournalType) (*core.Journal, error) {
	args := m.Called(ctx, companyID, types)
	j, _ := args.Get(0).(*core.Journal)
	return j, args.Error(1)
}

func (m *mockLedger) CreateEntry(ctx context.Context, spec core.EntrySpec) (int, error) {
	args := m.Called(ctx, spec)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) Post(ctx context.Context, entryID int) error {
	return m.Called(ctx, entryID).Error(0)
}

var (
	postingCompany = &core.Company{ID: 1, CompanyCode: "1000", BaseCurrency: "USD"}
	receivableAcc  = &core.Account{ID: 10, CompanyID: 1, Code: "1200", Type: core.Asset}
	postingBorrow  = &core.Borrower{ID: 5, CompanyID: 1, Name: "Jane Doe", LoanAccount: receivableAcc}
)

func postingLoan() *core.Loan {
	return &core.Loan{
		ID:        7,
		CompanyID: 1,
		Reference: "LOAN0007",
		Amount:    dec("1000"),
		Tenure:    6,
		Terms: core.Terms{
			AmortizationMethod:  core.French,
			InterestRatePercent: dec("12"),
			Accounts: core.AccountCodes{
				Payment:          "1110",
				Disbursement:     "2100",
				DisbursementBank: "1100",
				Interest:         "4400",
			},
		},
		DisburseAmount: dec("1000"),
		CreatedOn:      time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostingEngine_RegistrationSkipsZeroDeductions(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("FindAccountByCode", mock.Anything, 1, "2100").
		Return(&core.Account{ID: 21, CompanyID: 1, Code: "2100", Type: core.Liability}, nil)
	ledger.On("FindJournal", mock.Anything, 1, []core.JournalType{core.JournalGeneral}).
		Return(&core.Journal{ID: 3, Type: core.JournalGeneral}, nil)

	spec, err := core.NewPostingEngine(ledger).BuildRegistration(context.Background(), postingCompany, postingLoan(), postingBorrow)
	require.NoError(t, err)

	require.Len(t, spec.Lines, 2, "commission, legal and insurance are zero")
	assert.Equal(t, "1200", spec.Lines[0].AccountCode)
	assert.Equal(t, "2100", spec.Lines[1].AccountCode)
	assert.Equal(t, 3, spec.JournalID)
	assert.Equal(t, "USD", spec.Currency)
	require.NotNil(t, spec.LoanID)
	assert.Equal(t, 7, *spec.LoanID)
	ledger.AssertExpectations(t)
}

func TestPostingEngine_DisbursementNeedsBankAccount(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("FindAccountByCode", mock.Anything, 1, "1100").
		Return(&core.Account{ID: 11, CompanyID: 1, Code: "1100", Type: core.Asset}, nil)

	_, err := core.NewPostingEngine(ledger).BuildDisbursement(context.Background(), postingCompany, postingLoan())
	assert.ErrorIs(t, err, core.ErrMissingAccountConfiguration)
}

func TestPostingEngine_DisbursementPrefersBankJournal(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("FindAccountByCode", mock.Anything, 1, "1100").
		Return(&core.Account{ID: 11, CompanyID: 1, Code: "1100", Type: core.AssetCash}, nil)
	ledger.On("FindAccountByCode", mock.Anything, 1, "2100").
		Return(&core.Account{ID: 21, CompanyID: 1, Code: "2100", Type: core.Liability}, nil)
	ledger.On("FindJournal", mock.Anything, 1, []core.JournalType{core.JournalBank, core.JournalCash, core.JournalGeneral}).
		Return(&core.Journal{ID: 4, Type: core.JournalBank}, nil)

	spec, err := core.NewPostingEngine(ledger).BuildDisbursement(context.Background(), postingCompany, postingLoan())
	require.NoError(t, err)
	assert.Equal(t, 4, spec.JournalID)
	debit, credit := spec.Totals()
	assert.True(t, dec("1000").Equal(debit))
	assert.True(t, debit.Equal(credit))
}

func TestPostingEngine_DisbursementRejectsNonPositiveAmount(t *testing.T) {
	loan := postingLoan()
	loan.DisburseAmount = dec("0")
	_, err := core.NewPostingEngine(&mockLedger{}).BuildDisbursement(context.Background(), postingCompany, loan)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestPostingEngine_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no journal", func(t *testing.T) {
		ledger := &mockLedger{}
		ledger.On("FindAccountByCode", mock.Anything, 1, "2100").
			Return(&core.Account{ID: 21, CompanyID: 1, Code: "2100"}, nil)
		ledger.On("FindJournal", mock.Anything, 1, mock.Anything).Return(nil, nil)

		_, err := core.NewPostingEngine(ledger).BuildRegistration(ctx, postingCompany, postingLoan(), postingBorrow)
		assert.ErrorIs(t, err, core.ErrNoJournal)
	})

	t.Run("receivable of another company", func(t *testing.T) {
		foreign := &core.Borrower{ID: 5, Name: "Jane Doe", LoanAccount: &core.Account{ID: 99, CompanyID: 2, Code: "1200"}}
		_, err := core.NewPostingEngine(&mockLedger{}).BuildRegistration(ctx, postingCompany, postingLoan(), foreign)
		assert.ErrorIs(t, err, core.ErrMissingAccountConfiguration)
	})

	t.Run("payment without interest account", func(t *testing.T) {
		loan := postingLoan()
		loan.Accounts.Interest = ""
		rep := &core.Repayment{Sequence: 1, Principal: dec("10"), Interest: dec("1")}
		_, err := core.NewPostingEngine(&mockLedger{}).BuildPayment(ctx, postingCompany, loan, postingBorrow, rep)
		assert.ErrorIs(t, err, core.ErrMissingAccountConfiguration)
	})

	t.Run("unknown account code", func(t *testing.T) {
		ledger := &mockLedger{}
		ledger.On("FindAccountByCode", mock.Anything, 1, "2100").Return(nil, nil)
		_, err := core.NewPostingEngine(ledger).BuildRegistration(ctx, postingCompany, postingLoan(), postingBorrow)
		assert.ErrorIs(t, err, core.ErrMissingAccountConfiguration)
		assert.Contains(t, err.Error(), "2100")
	})
}

func TestPostingEngine_PostValidatesBeforeWriting(t *testing.T) {
	ledger := &mockLedger{}
	spec := core.EntrySpec{
		CompanyID: 1, JournalID: 1, Reference: "bad", Date: time.Now(), Currency: "USD",
		Lines: []core.EntryLine{
			{AccountID: 1, AccountCode: "1200", Debit: dec("10")},
			{AccountID: 2, AccountCode: "2100", Credit: dec("9")},
		},
	}
	_, err := core.NewPostingEngine(ledger).Post(context.Background(), spec)
	assert.ErrorIs(t, err, core.ErrUnbalancedEntry)
	ledger.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)

	ledger = &mockLedger{}
	spec.Lines[1].Credit = dec("10")
	ledger.On("CreateEntry", mock.Anything, mock.Anything).Return(77, nil)
	ledger.On("Post", mock.Anything, 77).Return(errors.New("disk full"))
	_, err = core.NewPostingEngine(ledger).Post(context.Background(), spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to post entry 77")
}
