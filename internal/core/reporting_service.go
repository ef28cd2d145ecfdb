package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// StatusSummary aggregates the loans of one status.
type StatusSummary struct {
	Status LoanStatus      `json:"status"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PortfolioReport summarises a company's loan book.
// AmountPaid and AmountPending only count disbursed loans, floored per loan.
type PortfolioReport struct {
	CompanyCode   string          `json:"company_code"`
	ByStatus      []StatusSummary `json:"by_status"`
	TotalLoans    int             `json:"total_loans"`
	Disbursed     decimal.Decimal `json:"disbursed"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountPending decimal.Decimal `json:"amount_pending"`
	OverdueCount  int             `json:"overdue_count"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// ReportingService provides read-only views over the loan book.
type ReportingService interface {
	// Portfolio returns per-status counts and repayment progress. Installments
	// due before asOf that are still pending count as overdue.
	Portfolio(ctx context.Context, companyCode string, asOf string) (*PortfolioReport, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type reportingService struct {
	store Store
}

// NewReportingService constructs a ReportingService over the given store.
func NewReportingService(store Store) ReportingService {
	return &reportingService{store: store}
}

var statusOrder = []LoanStatus{
	LoanDraft, LoanConfirmed, LoanPending, LoanApproved, LoanRegistered, LoanDisbursed, LoanDeclined,
}

func (s *reportingService) Portfolio(ctx context.Context, companyCode string, asOf string) (*PortfolioReport, error) {
	company, err := s.store.Company(ctx, companyCode)
	if err != nil {
		return nil, err
	}
	cutoff, err := parseDateOrToday(asOf)
	if err != nil {
		return nil, err
	}

	loans, err := s.store.Loans(ctx, company.ID, LoanFilter{})
	if err != nil {
		return nil, err
	}

	byStatus := make(map[LoanStatus]*StatusSummary, len(statusOrder))
	for _, st := range statusOrder {
		byStatus[st] = &StatusSummary{Status: st}
	}

	report := &PortfolioReport{CompanyCode: companyCode, TotalLoans: len(loans)}
	for i := range loans {
		l := &loans[i]
		if sum, ok := byStatus[l.Status]; ok {
			sum.Count++
			sum.Amount = sum.Amount.Add(l.Amount)
		}
		if l.Status != LoanDisbursed {
			continue
		}
		report.Disbursed = report.Disbursed.Add(l.DisburseAmount)
		report.AmountPaid = report.AmountPaid.Add(l.AmountPaid())
		report.AmountPending = report.AmountPending.Add(l.AmountPending())
		for _, r := range l.Repayments {
			if r.Status == RepaymentPending && r.DueDate.Before(cutoff) {
				report.OverdueCount++
			}
		}
	}

	for _, st := range statusOrder {
		report.ByStatus = append(report.ByStatus, *byStatus[st])
	}
	return report, nil
}

// parseDateOrToday parses a YYYY-MM-DD date; empty means today.
func parseDateOrToday(s string) (time.Time, error) {
	if s == "" {
		return DateOnly(time.Now()), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, validationErr(ErrInvalidInput, "as_of", "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
