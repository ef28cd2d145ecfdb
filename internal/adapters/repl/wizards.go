package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"loan-manager/internal/app"
	"loan-manager/internal/core"
)

// session bundles what a wizard needs to talk to the user.
type session struct {
	svc         app.ApplicationService
	in          *bufio.Reader
	out         io.Writer
	companyCode string
}

// prompt prints label and returns the trimmed answer. ok is false on EOF or "cancel".
func (s *session) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	raw, err := s.in.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "cancel") || (err != nil && raw == "") {
		return "", false
	}
	return raw, true
}

func (s *session) confirm(label string) bool {
	answer, ok := s.prompt(label + " (y/n): ")
	answer = strings.ToLower(answer)
	return ok && (answer == "y" || answer == "yes")
}

// pickLoan returns args[0] or asks for a reference among the loans in status.
func (s *session) pickLoan(ctx context.Context, args []string, status core.LoanStatus) (string, bool, error) {
	if len(args) > 0 {
		return strings.ToUpper(args[0]), true, nil
	}
	list, err := s.svc.ListLoans(ctx, s.companyCode, string(status))
	if err != nil {
		return "", false, err
	}
	if len(list.Loans) == 0 {
		fmt.Fprintf(s.out, "No %s loans.\n", status)
		return "", false, nil
	}
	PrintLoans(s.out, list)
	ref, ok := s.prompt("Loan reference: ")
	return strings.ToUpper(ref), ok && ref != "", nil
}

// rejectWizard walks a manager through rejecting a pending loan.
func (s *session) rejectWizard(ctx context.Context, args []string) error {
	ref, ok, err := s.pickLoan(ctx, args, core.LoanPending)
	if err != nil || !ok {
		return err
	}
	loan, err := s.svc.GetLoan(ctx, s.companyCode, ref)
	if err != nil {
		return err
	}
	if loan.Loan.Status != core.LoanPending {
		fmt.Fprintf(s.out, "Loan %s is %s; only pending loans can be rejected.\n", ref, loan.Loan.Status)
		return nil
	}
	PrintLoan(s.out, loan.Loan)

	var reason string
	for reason == "" {
		reason, ok = s.prompt("Reason: ")
		if !ok {
			fmt.Fprintln(s.out, "Cancelled.")
			return nil
		}
		if reason == "" {
			fmt.Fprintln(s.out, "  A reason is required.")
		}
	}

	if !s.confirm(fmt.Sprintf("Reject %s?", ref)) {
		fmt.Fprintln(s.out, "Cancelled.")
		return nil
	}
	result, err := s.svc.RejectLoan(ctx, s.companyCode, ref, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Loan %s DECLINED: %s\n", result.Loan.Reference, result.Loan.RejectionReason)
	return nil
}

// payWizard records the payment of an installment of a disbursed loan.
func (s *session) payWizard(ctx context.Context, args []string) error {
	ref, ok, err := s.pickLoan(ctx, args, core.LoanDisbursed)
	if err != nil || !ok {
		return err
	}
	result, err := s.svc.GetLoan(ctx, s.companyCode, ref)
	if err != nil {
		return err
	}
	loan := result.Loan
	if loan.Status != core.LoanDisbursed {
		fmt.Fprintf(s.out, "Loan %s is %s; only disbursed loans accept payments.\n", ref, loan.Status)
		return nil
	}

	next := 0
	for _, r := range loan.Repayments {
		if r.Status == core.RepaymentPending {
			next = r.Sequence
			break
		}
	}
	if next == 0 {
		fmt.Fprintf(s.out, "Loan %s is fully paid.\n", ref)
		return nil
	}
	PrintSchedule(s.out, loan)

	seq := next
	for {
		raw, ok := s.prompt(fmt.Sprintf("Installment [%d]: ", next))
		if !ok {
			fmt.Fprintln(s.out, "Cancelled.")
			return nil
		}
		if raw == "" {
			break
		}
		n, convErr := strconv.Atoi(raw)
		if convErr == nil && n > 0 {
			seq = n
			break
		}
		fmt.Fprintln(s.out, "  Enter an installment number.")
	}

	rep, found := loan.Repayment(seq)
	if !found {
		fmt.Fprintf(s.out, "Loan %s has no installment %d.\n", ref, seq)
		return nil
	}
	if !s.confirm(fmt.Sprintf("Pay installment %d of %s (%s)?", seq, ref, rep.TotalPayment().StringFixed(2))) {
		fmt.Fprintln(s.out, "Cancelled.")
		return nil
	}
	paid, err := s.svc.ConfirmRepayment(ctx, s.companyCode, ref, seq)
	if err != nil {
		return err
	}
	entry := "-"
	if paid.Repayment.EntryID != nil {
		entry = strconv.Itoa(*paid.Repayment.EntryID)
	}
	fmt.Fprintf(s.out, "Installment %d of %s PAID. Entry %s posted.\n", seq, ref, entry)
	return nil
}
