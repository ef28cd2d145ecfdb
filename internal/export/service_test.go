package export_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"loan-manager/internal/core"
	"loan-manager/internal/core/coretest"
	"loan-manager/internal/export"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func scheduledLoan(t *testing.T) (*coretest.Fixture, core.LoanService, *core.Loan) {
	t.Helper()
	ctx := context.Background()
	f := coretest.Seed(t, core.French)
	loans := core.NewLoanService(f.Store, core.WithClock(f.Now))

	loan, err := loans.CreateLoan(ctx, f.Company.CompanyCode, core.LoanInput{
		BorrowerID: f.Borrower.ID,
		LoanTypeID: f.LoanType.ID,
		Amount:     decimal.NewFromInt(12000),
		Tenure:     12,
	})
	require.NoError(t, err)
	loan, err = loans.RecomputeSchedule(ctx, f.Company.CompanyCode, loan.Reference)
	require.NoError(t, err)
	return f, loans, loan
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *export.RedisClient) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	return s, export.WrapRedis(goredis.NewClient(&goredis.Options{Addr: s.Addr()}), "test_")
}

func TestBuildScheduleWorkbook_OneRowPerInstallment(t *testing.T) {
	_, _, loan := scheduledLoan(t)

	data, err := export.BuildScheduleWorkbook(loan, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Schedule")
	require.NoError(t, err)
	require.Len(t, rows, 1+12, "header plus one row per installment")
	assert.Equal(t, []string{"No.", "Due Date", "Principal", "Interest", "Total Payment", "Remaining Balance", "Status"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "2026-02-15", rows[1][1])
	assert.Equal(t, "pending", rows[12][6])

	ref, err := f.GetCellValue("Loan", "B1")
	require.NoError(t, err)
	assert.Equal(t, loan.Reference, ref)
}

func TestBuildScheduleWorkbook_UnknownColumn(t *testing.T) {
	_, _, loan := scheduledLoan(t)
	_, err := export.BuildScheduleWorkbook(loan, []string{"sequence", "penalty"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestService_ScheduleExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, loans, loan := scheduledLoan(t)
	mr, rc := newRedis(t)
	files := coretest.NewFileStore()
	svc := export.NewService(loans, files, rc, nil)

	st, err := svc.StartScheduleExport(ctx, f.Company.CompanyCode, loan.Reference, []string{"sequence", "principal"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(st.ID, "exports:"))
	svc.Wait()

	got, err := svc.Get(ctx, f.Company.CompanyCode, st.ID)
	require.NoError(t, err)
	assert.True(t, got.Done())
	assert.Nil(t, got.Error)
	require.NotNil(t, got.FileURL)
	assert.Equal(t, "mem://"+got.FileKey, *got.FileURL)
	assert.Contains(t, files.Objects, got.FileKey)

	assert.True(t, mr.Exists("test_"+st.ID), "keys carry the prefix")
	assert.Positive(t, mr.TTL("test_"+st.ID))
	index := "test_loan_exports:" + f.Company.CompanyCode + ":" + loan.Reference
	assert.Positive(t, mr.TTL(index), "the loan index expires with its exports")

	_, err = svc.Get(ctx, "9999", st.ID)
	assert.ErrorIs(t, err, core.ErrNotFound, "exports are scoped to their company")
	_, err = svc.Get(ctx, f.Company.CompanyCode, "exports:missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_ExportGuards(t *testing.T) {
	ctx := context.Background()
	f, loans, _ := scheduledLoan(t)
	_, rc := newRedis(t)

	_, err := export.NewService(loans, nil, nil, nil).StartScheduleExport(ctx, f.Company.CompanyCode, "LOAN0001", nil)
	assert.ErrorIs(t, err, core.ErrStorageNotConfigured)

	svc := export.NewService(loans, coretest.NewFileStore(), rc, nil)
	draft, err := loans.CreateLoan(ctx, f.Company.CompanyCode, core.LoanInput{
		BorrowerID: f.Borrower.ID, LoanTypeID: f.LoanType.ID, Amount: decimal.NewFromInt(1000), Tenure: 6,
	})
	require.NoError(t, err)
	_, err = svc.StartScheduleExport(ctx, f.Company.CompanyCode, draft.Reference, nil)
	assert.ErrorIs(t, err, core.ErrInvalidState, "nothing to export before the schedule is computed")

	_, err = svc.StartScheduleExport(ctx, f.Company.CompanyCode, "LOAN0001", []string{"bogus"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestService_ListDropsExpiredExports(t *testing.T) {
	ctx := context.Background()
	f, loans, loan := scheduledLoan(t)
	mr, rc := newRedis(t)
	svc := export.NewService(loans, coretest.NewFileStore(), rc, nil)

	first, err := svc.StartScheduleExport(ctx, f.Company.CompanyCode, loan.Reference, nil)
	require.NoError(t, err)
	second, err := svc.StartScheduleExport(ctx, f.Company.CompanyCode, loan.Reference, nil)
	require.NoError(t, err)
	svc.Wait()

	listed, err := svc.List(ctx, f.Company.CompanyCode, loan.Reference)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	ids := []string{listed[0].ID, listed[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.True(t, listed[0].Done())

	mr.Del("test_" + first.ID)
	listed, err = svc.List(ctx, f.Company.CompanyCode, loan.Reference)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, second.ID, listed[0].ID)

	members, err := rc.SMembers(ctx, "loan_exports:"+f.Company.CompanyCode+":"+loan.Reference)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, members, "expired ids leave the index")

	listed, err = svc.List(ctx, f.Company.CompanyCode, "LOAN0999")
	require.NoError(t, err)
	assert.Empty(t, listed)
}

type gatedLoans struct {
	export.LoanReader
	release chan struct{}
	calls   int
}

func (g *gatedLoans) GetLoan(ctx context.Context, companyCode, reference string) (*core.Loan, error) {
	g.calls++
	if g.calls > 1 {
		<-g.release
	}
	return g.LoanReader.GetLoan(ctx, companyCode, reference)
}

func TestService_ProgressSaveFailuresAreLogged(t *testing.T) {
	ctx := context.Background()
	f, loans, loan := scheduledLoan(t)
	mr, rc := newRedis(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	gate := &gatedLoans{LoanReader: loans, release: make(chan struct{})}
	svc := export.NewService(gate, coretest.NewFileStore(), rc, logger)

	_, err := svc.StartScheduleExport(ctx, f.Company.CompanyCode, loan.Reference, nil)
	require.NoError(t, err)
	mr.SetError("READONLY redis is read-only")
	close(gate.release)
	svc.Wait()

	assert.Equal(t, 2, strings.Count(logs.String(), `msg="failed to save export status"`),
		"the halfway and final saves both warn:\n%s", logs.String())
}
