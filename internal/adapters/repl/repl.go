package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"loan-manager/internal/app"
)

var errExit = errors.New("exit")

// Run starts the interactive REPL loop.
// It reads commands from in, dispatches slash commands deterministically,
// and routes free text through the loan intake agent.
func Run(ctx context.Context, svc app.ApplicationService, in *bufio.Reader, out io.Writer) error {
	company, err := svc.LoadDefaultCompany(ctx)
	if err != nil {
		return fmt.Errorf("failed to load company: %w", err)
	}

	s := &session{svc: svc, in: in, out: out, companyCode: company.CompanyCode}

	fmt.Fprintln(out, "Loan Manager")
	fmt.Fprintf(out, "Company: %s - %s (%s)\n", company.CompanyCode, company.Name, company.BaseCurrency)
	fmt.Fprintln(out, "Describe a loan request, or use /help for commands.")
	fmt.Fprintln(out, strings.Repeat("-", 70))

	for {
		fmt.Fprint(out, "\n> ")
		input, readErr := in.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "" {
			if readErr != nil {
				return nil
			}
			continue
		}

		if strings.HasPrefix(input, "/") {
			if err := s.dispatch(ctx, input); err != nil {
				if errors.Is(err, errExit) {
					fmt.Fprintln(out, "Goodbye!")
					return nil
				}
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		if err := s.intake(ctx, input); err != nil {
			if errors.Is(err, errExit) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// dispatch runs one slash command.
func (s *session) dispatch(ctx context.Context, input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	needRef := func(usage string) (string, bool) {
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: "+usage)
			return "", false
		}
		return strings.ToUpper(args[0]), true
	}

	transition := func(usage, verb string, fn func(context.Context, string, string) (*app.LoanResult, error)) error {
		ref, ok := needRef(usage)
		if !ok {
			return nil
		}
		result, err := fn(ctx, s.companyCode, ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Loan %s %s. Status: %s\n", result.Loan.Reference, verb, strings.ToUpper(string(result.Loan.Status)))
		return nil
	}

	switch cmd {
	case "loans":
		status := ""
		if len(args) > 0 {
			status = args[0]
		}
		result, err := s.svc.ListLoans(ctx, s.companyCode, status)
		if err != nil {
			return err
		}
		PrintLoans(s.out, result)

	case "loan":
		ref, ok := needRef("/loan <ref>")
		if !ok {
			return nil
		}
		result, err := s.svc.GetLoan(ctx, s.companyCode, ref)
		if err != nil {
			return err
		}
		PrintLoan(s.out, result.Loan)

	case "schedule":
		ref, ok := needRef("/schedule <ref>")
		if !ok {
			return nil
		}
		result, err := s.svc.ComputeSchedule(ctx, s.companyCode, ref)
		if err != nil {
			return err
		}
		PrintSchedule(s.out, result.Loan)

	case "confirm":
		return transition("/confirm <ref>", "confirmed", s.svc.ConfirmLoan)
	case "request":
		return transition("/request <ref>", "sent for approval", s.svc.RequestApproval)
	case "approve":
		return transition("/approve <ref>", "approved", s.svc.ApproveLoan)
	case "register":
		return transition("/register <ref>", "registered", s.svc.RegisterLoan)
	case "disburse":
		return transition("/disburse <ref>", "disbursed", s.svc.DisburseLoan)

	case "decline":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: /decline <ref> <reason>")
			return nil
		}
		result, err := s.svc.DeclineLoan(ctx, s.companyCode, strings.ToUpper(args[0]), strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Loan %s DECLINED: %s\n", result.Loan.Reference, result.Loan.RejectionReason)

	case "reject":
		return s.rejectWizard(ctx, args)
	case "pay":
		return s.payWizard(ctx, args)

	case "borrowers":
		result, err := s.svc.ListBorrowers(ctx, s.companyCode)
		if err != nil {
			return err
		}
		printBorrowers(s.out, result)

	case "types":
		result, err := s.svc.ListLoanTypes(ctx, s.companyCode)
		if err != nil {
			return err
		}
		printLoanTypes(s.out, result)

	case "portfolio":
		asOf := ""
		if len(args) > 0 {
			asOf = args[0]
		}
		report, err := s.svc.GetPortfolio(ctx, s.companyCode, asOf)
		if err != nil {
			return err
		}
		PrintPortfolio(s.out, report)

	case "bal", "balances":
		result, err := s.svc.GetTrialBalance(ctx, s.companyCode)
		if err != nil {
			return err
		}
		PrintBalances(s.out, result)

	case "help", "h":
		printHelp(s.out)

	case "exit", "quit", "e", "q":
		return errExit

	default:
		fmt.Fprintf(s.out, "Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

// intake interprets free text as a loan request, asking for clarification
// at most three times, and creates the draft once the user agrees.
func (s *session) intake(ctx context.Context, input string) error {
	fmt.Fprintln(s.out, "[AI] Processing...")
	accumulated := input

	for round := 1; round <= 3; round++ {
		result, err := s.svc.InterpretIntake(ctx, s.companyCode, accumulated, false)
		if err != nil {
			return err
		}

		if result.IsClarification {
			fmt.Fprintf(s.out, "\n[AI]: %s\n", result.ClarificationMessage)
			followUp, ok := s.prompt("> ")
			if strings.HasPrefix(followUp, "/") {
				fmt.Fprintln(s.out, "(AI session cancelled)")
				return s.dispatch(ctx, followUp)
			}
			if !ok || followUp == "" {
				fmt.Fprintln(s.out, "Cancelled.")
				return nil
			}
			accumulated = fmt.Sprintf("Original request: %s\nClarification requested: %s\nUser response: %s",
				accumulated, result.ClarificationMessage, followUp)
			fmt.Fprintln(s.out, "[AI] Thinking...")
			continue
		}

		PrintIntake(s.out, result)
		if result.Proposal.Confidence < 0.6 {
			fmt.Fprintln(s.out, "\nWARNING: Low confidence proposal.")
		}
		if !s.confirm("\nCreate this draft loan?") {
			fmt.Fprintln(s.out, "Cancelled.")
			return nil
		}
		created, err := s.svc.CreateLoan(ctx, app.CreateLoanRequest{
			CompanyCode: s.companyCode,
			BorrowerID:  result.Input.BorrowerID,
			LoanTypeID:  result.Input.LoanTypeID,
			Amount:      result.Input.Amount,
			Tenure:      result.Input.Tenure,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Draft loan %s created. Use /schedule %s next.\n", created.Loan.Reference, created.Loan.Reference)
		return nil
	}

	fmt.Fprintln(s.out, "Could not interpret the request. Try a slash command instead, type /help.")
	return nil
}
