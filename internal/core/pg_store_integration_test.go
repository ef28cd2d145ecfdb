package core_test

import (
	"context"
	"os"
	"testing"

	"loan-manager/internal/core"
	"loan-manager/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}
	require.NoError(t, db.RunMigrations(dbURL))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE entry_lines, entries, loan_documents, repayments, loans, borrowers,
			loan_type_requirements, loan_types, requirements, sequences, journals, accounts, users, companies
			RESTART IDENTITY CASCADE;

		INSERT INTO companies (id, company_code, name, base_currency) VALUES (1, '1000', 'Test Lending', 'USD');

		INSERT INTO accounts (company_id, code, name, type) VALUES
		(1, '1100', 'Bank', 'asset_cash'),
		(1, '1110', 'Collections', 'asset_cash'),
		(1, '1200', 'Loans Receivable', 'asset'),
		(1, '2100', 'Loans To Disburse', 'liability'),
		(1, '4100', 'Commission Income', 'revenue'),
		(1, '4400', 'Interest Income', 'revenue');

		INSERT INTO journals (company_id, code, name, type) VALUES
		(1, 'GEN', 'General', 'general'),
		(1, 'BNK', 'Bank', 'bank');
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

func TestPgStore_LoanLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	store := core.NewPgStore(pool)
	catalog := core.NewCatalogService(store)
	borrowers := core.NewBorrowerService(store)
	loans := core.NewLoanService(store)

	lt, err := catalog.CreateLoanType(ctx, "1000", core.LoanType{
		Name:                      "personal loan",
		MaxAmount:                 decimal.NewFromInt(50000),
		MaxTenure:                 24,
		TenurePlan:                core.TenureMonthly,
		AmortizationMethod:        core.French,
		InterestRatePercent:       decimal.NewFromInt(12),
		DisburseCommissionPercent: decimal.NewFromInt(1),
		Accounts: core.AccountCodes{
			Payment:                "1110",
			Disbursement:           "2100",
			DisbursementBank:       "1100",
			DisbursementCommission: "4100",
			Interest:               "4400",
		},
	})
	require.NoError(t, err)

	_, err = catalog.CreateLoanType(ctx, "1000", core.LoanType{
		Name: "Personal Loan", MaxAmount: decimal.NewFromInt(1), MaxTenure: 1,
		TenurePlan: core.TenureMonthly, AmortizationMethod: core.German,
	})
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	b, err := borrowers.CreateBorrower(ctx, "1000", "B001", "Jane Doe")
	require.NoError(t, err)
	_, err = borrowers.SetLoanAccount(ctx, "1000", b.ID, "1200")
	require.NoError(t, err)

	loan, err := loans.CreateLoan(ctx, "1000", core.LoanInput{
		BorrowerID: b.ID, LoanTypeID: lt.ID, Amount: decimal.NewFromInt(12000), Tenure: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "LOAN0001", loan.Reference)

	ref := loan.Reference
	_, err = loans.RecomputeSchedule(ctx, "1000", ref)
	require.NoError(t, err)
	_, err = loans.Confirm(ctx, "1000", ref)
	require.NoError(t, err)
	_, err = loans.RequestPending(ctx, "1000", ref)
	require.NoError(t, err)
	_, err = loans.Approve(ctx, "1000", ref)
	require.NoError(t, err)
	_, err = loans.Register(ctx, "1000", ref)
	require.NoError(t, err)
	disbursed, err := loans.Disburse(ctx, "1000", ref)
	require.NoError(t, err)
	assert.Equal(t, core.LoanDisbursed, disbursed.Status)
	assert.True(t, decimal.RequireFromString("11880").Equal(disbursed.DisburseAmount))

	_, err = loans.MarkPaid(ctx, "1000", ref, 2)
	assert.ErrorIs(t, err, core.ErrOutOfOrderPayment)
	rep, err := loans.MarkPaid(ctx, "1000", ref, 1)
	require.NoError(t, err)
	require.NotNil(t, rep.EntryID)

	ledger := core.NewLedgerService(store)
	entry, err := ledger.GetEntry(ctx, "1000", *rep.EntryID)
	require.NoError(t, err)
	assert.Equal(t, ref, entry.LoanReference)
	assert.Equal(t, core.EntryPosted, entry.State)

	balances, err := ledger.TrialBalance(ctx, "1000")
	require.NoError(t, err)
	total := decimal.Zero
	for _, bal := range balances {
		total = total.Add(bal.Balance)
	}
	assert.True(t, total.IsZero(), "trial balance must net to zero, got %s", total)

	// The loan link is protected in the database as well.
	_, err = pool.Exec(ctx, "UPDATE entries SET loan_id = NULL WHERE id = $1", *rep.EntryID)
	assert.Error(t, err)
}
