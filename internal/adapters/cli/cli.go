package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"loan-manager/internal/adapters/repl"
	"loan-manager/internal/app"
)

const usage = `Usage: app <command>
  loans [status]        list loans
  loan <ref>            show a loan
  schedule <ref>        show the repayment schedule
  pay <ref> <seq>       pay an installment
  bal                   trial balance
  portfolio [as-of]     portfolio summary
  intake "<text>"       interpret a loan request and create the draft`

// Run executes a one-shot CLI command.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	company, err := svc.LoadDefaultCompany(ctx)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}
	code := company.CompanyCode

	switch args[0] {
	case "loans", "ls":
		status := ""
		if len(args) > 1 {
			status = args[1]
		}
		result, err := svc.ListLoans(ctx, code, status)
		if err != nil {
			return err
		}
		repl.PrintLoans(out, result)

	case "loan":
		if len(args) < 2 {
			return fmt.Errorf("usage: app loan <ref>")
		}
		result, err := svc.GetLoan(ctx, code, strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		repl.PrintLoan(out, result.Loan)

	case "schedule", "sched":
		if len(args) < 2 {
			return fmt.Errorf("usage: app schedule <ref>")
		}
		result, err := svc.GetLoan(ctx, code, strings.ToUpper(args[1]))
		if err != nil {
			return err
		}
		repl.PrintSchedule(out, result.Loan)

	case "pay":
		if len(args) < 3 {
			return fmt.Errorf("usage: app pay <ref> <seq>")
		}
		seq, err := strconv.Atoi(args[2])
		if err != nil || seq <= 0 {
			return fmt.Errorf("invalid installment number %q", args[2])
		}
		result, err := svc.ConfirmRepayment(ctx, code, strings.ToUpper(args[1]), seq)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Installment %d of %s paid.\n", result.Repayment.Sequence, result.LoanReference)

	case "bal", "balances":
		result, err := svc.GetTrialBalance(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to get balances: %w", err)
		}
		repl.PrintBalances(out, result)

	case "portfolio":
		asOf := ""
		if len(args) > 1 {
			asOf = args[1]
		}
		report, err := svc.GetPortfolio(ctx, code, asOf)
		if err != nil {
			return err
		}
		repl.PrintPortfolio(out, report)

	case "intake":
		if len(args) < 2 {
			return fmt.Errorf("usage: app intake \"<loan request>\"")
		}
		result, err := svc.InterpretIntake(ctx, code, strings.Join(args[1:], " "), true)
		if err != nil {
			return err
		}
		if result.IsClarification {
			return fmt.Errorf("AI needs clarification: %s", result.ClarificationMessage)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}
