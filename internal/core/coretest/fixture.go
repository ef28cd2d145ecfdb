package coretest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loan-manager/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Fixture is a company with a chart of accounts, journals, two requirements,
// one loan type and one borrower with a receivable account.
type Fixture struct {
	Store    *Store
	Company  core.Company
	LoanType core.LoanType
	Borrower core.Borrower

	MandatoryReq core.Requirement
	OptionalReq  core.Requirement
}

// Chart of accounts used by the fixture.
const (
	AccReceivable   = "1200"
	AccBank         = "1100"
	AccDisbursement = "2100"
	AccCommission   = "4100"
	AccLegal        = "4200"
	AccInsurance    = "4300"
	AccInterest     = "4400"
	AccPayment      = "1110"
)

// Seed builds a Fixture through the catalog and borrower services. method
// selects the loan type's amortization; the rate is 12% a year.
func Seed(t *testing.T, method core.AmortizationMethod) *Fixture {
	t.Helper()
	ctx := context.Background()

	store := NewStore()
	store.now = func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) }
	company := store.AddCompany("1000", "Acme Lending", "USD")

	catalog := core.NewCatalogService(store)
	borrowers := core.NewBorrowerService(store)

	accounts := []core.Account{
		{Code: AccBank, Name: "Bank", Type: core.AssetCash},
		{Code: AccPayment, Name: "Collections", Type: core.AssetCash},
		{Code: AccReceivable, Name: "Loans Receivable", Type: core.Asset},
		{Code: AccDisbursement, Name: "Loans To Disburse", Type: core.Liability},
		{Code: AccCommission, Name: "Commission Income", Type: core.Revenue},
		{Code: AccLegal, Name: "Legal Fees Income", Type: core.Revenue},
		{Code: AccInsurance, Name: "Insurance Income", Type: core.Revenue},
		{Code: AccInterest, Name: "Interest Income", Type: core.Revenue},
	}
	for _, a := range accounts {
		_, err := catalog.CreateAccount(ctx, company.CompanyCode, a)
		require.NoError(t, err)
	}
	for _, j := range []core.Journal{
		{Code: "GEN", Name: "General", Type: core.JournalGeneral},
		{Code: "BNK", Name: "Bank", Type: core.JournalBank},
	} {
		_, err := catalog.CreateJournal(ctx, company.CompanyCode, j)
		require.NoError(t, err)
	}

	mandatory, err := catalog.CreateRequirement(ctx, company.CompanyCode, core.Requirement{Name: "identity card", Mandatory: true})
	require.NoError(t, err)
	optional, err := catalog.CreateRequirement(ctx, company.CompanyCode, core.Requirement{Name: "payslip"})
	require.NoError(t, err)

	lt, err := catalog.CreateLoanType(ctx, company.CompanyCode, core.LoanType{
		Name:                      "personal loan",
		MaxAmount:                 decimal.NewFromInt(50000),
		MaxTenure:                 36,
		TenurePlan:                core.TenureMonthly,
		AmortizationMethod:        method,
		InterestRatePercent:       decimal.NewFromInt(12),
		DisburseCommissionPercent: decimal.NewFromInt(1),
		LegalExpenses:             decimal.NewFromInt(50),
		LifeInsurance:             decimal.NewFromInt(30),
		Accounts: core.AccountCodes{
			Payment:                AccPayment,
			Disbursement:           AccDisbursement,
			DisbursementBank:       AccBank,
			DisbursementCommission: AccCommission,
			LegalExpenses:          AccLegal,
			LifeInsurance:          AccInsurance,
			Interest:               AccInterest,
		},
		RequirementIDs: []int{mandatory.ID, optional.ID},
	})
	require.NoError(t, err)

	b, err := borrowers.CreateBorrower(ctx, company.CompanyCode, "b001", "Jane Doe")
	require.NoError(t, err)
	b, err = borrowers.SetLoanAccount(ctx, company.CompanyCode, b.ID, AccReceivable)
	require.NoError(t, err)

	return &Fixture{
		Store:        store,
		Company:      company,
		LoanType:     *lt,
		Borrower:     *b,
		MandatoryReq: *mandatory,
		OptionalReq:  *optional,
	}
}

// Now is the fixed clock the fixture store uses.
func (f *Fixture) Now() time.Time { return f.Store.now() }

// ── Collaborators ────────────────────────────────────────────────────────────

// Publisher records published events. Err, when set, is returned from Publish.
type Publisher struct {
	mu     sync.Mutex
	Err    error
	events []core.LoanEvent
}

func (p *Publisher) Publish(_ context.Context, events ...core.LoanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *Publisher) Events() []core.LoanEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.LoanEvent(nil), p.events...)
}

// FileStore keeps uploaded objects in memory.
type FileStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

func NewFileStore() *FileStore {
	return &FileStore{Objects: map[string][]byte{}}
}

func (f *FileStore) Put(_ context.Context, key, _ string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *FileStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Objects[key]; !ok {
		return "", errors.New("object not found: " + key)
	}
	return "mem://" + key, nil
}
