package repl

import (
	"fmt"
	"io"
	"strings"

	"loan-manager/internal/app"
	"loan-manager/internal/core"
)

// PrintBalances renders a trial balance table.
func PrintBalances(w io.Writer, result *app.TrialBalanceResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-58s\n", "TRIAL BALANCE")
	fmt.Fprintf(w, "  Company  : %s - %s\n", result.CompanyCode, result.CompanyName)
	fmt.Fprintf(w, "  Currency : %s\n", result.Currency)
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-10s %-30s %15s\n", "CODE", "NAME", "BALANCE")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, b := range result.Accounts {
		fmt.Fprintf(w, "  %-10s %-30s %15s\n", b.Code, b.Name, b.Balance.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
}

// PrintLoans renders a loan listing.
func PrintLoans(w io.Writer, result *app.LoanListResult) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 84))
	fmt.Fprintf(w, "  LOANS - Company %s\n", result.CompanyCode)
	fmt.Fprintln(w, strings.Repeat("=", 84))
	if len(result.Loans) == 0 {
		fmt.Fprintln(w, "  No loans found.")
		fmt.Fprintln(w, strings.Repeat("=", 84))
		return
	}
	fmt.Fprintf(w, "  %-10s %-22s %-18s %-11s %12s %6s\n", "REF", "BORROWER", "TYPE", "STATUS", "AMOUNT", "TENURE")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, l := range result.Loans {
		fmt.Fprintf(w, "  %-10s %-22s %-18s %-11s %12s %6d\n",
			l.Reference, truncate(l.BorrowerName, 22), truncate(l.LoanTypeName, 18), l.Status, l.Amount.StringFixed(2), l.Tenure)
	}
	fmt.Fprintln(w, strings.Repeat("=", 84))
}

// PrintLoan renders a loan header with its documents.
func PrintLoan(w io.Writer, l *core.Loan) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "  Loan:       %s\n", l.Reference)
	fmt.Fprintf(w, "  Borrower:   %s\n", l.BorrowerName)
	fmt.Fprintf(w, "  Type:       %s (%s, %s%%)\n", l.LoanTypeName, l.AmortizationMethod, l.InterestRatePercent.String())
	fmt.Fprintf(w, "  Status:     %s\n", l.Status)
	if l.RejectionReason != "" {
		fmt.Fprintf(w, "  Reason:     %s\n", l.RejectionReason)
	}
	fmt.Fprintf(w, "  Amount:     %s over %d installments\n", l.Amount.StringFixed(2), l.Tenure)
	fmt.Fprintf(w, "  Disburse:   %s\n", l.DisburseAmount.StringFixed(2))
	if l.HasSchedule() {
		fmt.Fprintf(w, "  Paid:       %s\n", l.AmountPaid().StringFixed(2))
		fmt.Fprintf(w, "  Pending:    %s\n", l.AmountPending().StringFixed(2))
	}
	if l.RepaymentsDirty {
		fmt.Fprintln(w, "  Schedule is stale. Run /schedule to recompute.")
	}
	if len(l.Documents) > 0 {
		fmt.Fprintln(w, "  Documents:")
		for _, d := range l.Documents {
			mark := " "
			if d.Mandatory {
				mark = "*"
			}
			fmt.Fprintf(w, "   %s %-28s %-10s %s\n", mark, d.RequirementName, d.Status, d.Filename)
		}
	}
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

// PrintSchedule renders the repayment schedule of a loan.
func PrintSchedule(w io.Writer, l *core.Loan) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  SCHEDULE - %s (%s)\n", l.Reference, l.AmortizationMethod)
	fmt.Fprintln(w, strings.Repeat("-", 78))
	if !l.HasSchedule() {
		fmt.Fprintln(w, "  No schedule computed.")
		return
	}
	fmt.Fprintf(w, "  %-4s %-10s %12s %12s %12s %12s  %s\n", "#", "DUE", "PRINCIPAL", "INTEREST", "TOTAL", "REMAINING", "STATUS")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, r := range l.Repayments {
		fmt.Fprintf(w, "  %-4d %-10s %12s %12s %12s %12s  %s\n",
			r.Sequence, r.DueDate.Format("2006-01-02"),
			r.Principal.StringFixed(2), r.Interest.StringFixed(2), r.TotalPayment().StringFixed(2),
			r.RemainingBalance.StringFixed(2), r.Status)
	}
	fmt.Fprintln(w, strings.Repeat("-", 78))
}

// PrintPortfolio renders the portfolio summary.
func PrintPortfolio(w io.Writer, p *core.PortfolioReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "  PORTFOLIO - Company %s\n", p.CompanyCode)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	for _, s := range p.ByStatus {
		fmt.Fprintf(w, "  %-12s %5d %20s\n", s.Status, s.Count, s.Amount.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "  %-18s %s\n", "Disbursed", p.Disbursed.StringFixed(2))
	fmt.Fprintf(w, "  %-18s %s\n", "Amount paid", p.AmountPaid.StringFixed(2))
	fmt.Fprintf(w, "  %-18s %s\n", "Amount pending", p.AmountPending.StringFixed(2))
	fmt.Fprintf(w, "  %-18s %d\n", "Overdue", p.OverdueCount)
	fmt.Fprintln(w, strings.Repeat("=", 50))
}

// PrintIntake renders an interpreted loan request.
func PrintIntake(w io.Writer, r *app.IntakeResult) {
	p := r.Proposal
	fmt.Fprintf(w, "\nBORROWER:   %s\n", p.BorrowerCode)
	fmt.Fprintf(w, "LOAN TYPE:  %s\n", p.LoanTypeName)
	fmt.Fprintf(w, "AMOUNT:     %s\n", p.Amount)
	fmt.Fprintf(w, "TENURE:     %d\n", p.Tenure)
	fmt.Fprintf(w, "REASONING:  %s\n", p.Reasoning)
	fmt.Fprintf(w, "CONFIDENCE: %.2f\n", p.Confidence)
}

func printBorrowers(w io.Writer, result *app.BorrowerListResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-8s %-28s %-8s %14s\n", "CODE", "NAME", "ACCOUNT", "REMAINING")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, b := range result.Borrowers {
		acc := "-"
		if b.LoanAccount != nil {
			acc = b.LoanAccount.Code
		}
		fmt.Fprintf(w, "  %-8s %-28s %-8s %14s\n", b.Code, truncate(b.Name, 28), acc, b.RemainingTotal.StringFixed(2))
	}
}

func printLoanTypes(w io.Writer, result *app.LoanTypeListResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-4s %-24s %12s %6s %-9s %-7s %6s\n", "ID", "NAME", "MAX AMOUNT", "TENURE", "PLAN", "METHOD", "RATE")
	fmt.Fprintln(w, strings.Repeat("-", 76))
	for _, t := range result.LoanTypes {
		fmt.Fprintf(w, "  %-4d %-24s %12s %6d %-9s %-7s %5s%%\n",
			t.ID, truncate(t.Name, 24), t.MaxAmount.StringFixed(2), t.MaxTenure, t.TenurePlan, t.AmortizationMethod, t.InterestRatePercent.String())
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `Commands:
  /loans [status]          list loans, optionally filtered by status
  /loan <ref>              show a loan
  /schedule <ref>          recompute and show the repayment schedule
  /confirm <ref>           confirm a draft loan
  /request <ref>           send a confirmed loan for approval
  /approve <ref>           approve a pending loan
  /register <ref>          post the registration entry
  /disburse <ref>          post the disbursement entry
  /decline <ref> <reason>  decline a loan before registration
  /reject [ref]            reject a pending loan (wizard)
  /pay [ref]               pay the next installment (wizard)
  /borrowers               list borrowers
  /types                   list loan types
  /portfolio [YYYY-MM-DD]  portfolio summary
  /bal                     trial balance
  /help                    this help
  /exit                    quit

Anything else is read as a loan request, e.g. "B001 wants 12000 personal loan over 12 months".`)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
