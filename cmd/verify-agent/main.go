// verify-agent sends one sample loan request to the intake model and prints
// the structured answer. It needs OPENAI_API_KEY and no database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"loan-manager/internal/ai"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() // Load .env if present

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY not set")
	}

	agent := ai.NewAgent(apiKey)
	ctx := context.Background()

	catalog := ai.IntakeCatalog{
		Borrowers: `
- B001: Jane Doe
- B002: Omar Haddad
`,
		LoanTypes: `
- Personal Loan (max 50000.00 over 36 monthly installments, 12% french)
- Car Loan (max 80000.00 over 60 monthly installments, 9% german)
`,
	}

	request := "Omar wants 15,000 for a car, paid back over four years."

	fmt.Printf("INTERPRETING REQUEST: %s\n", request)
	resp, err := agent.InterpretIntake(ctx, request, catalog)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if resp.IsClarificationRequest {
		fmt.Printf("\n--- CLARIFICATION ---\n%s\n", resp.ClarificationMessage)
		return
	}

	p := resp.Proposal
	fmt.Printf("\n--- PROPOSAL ---\n")
	fmt.Printf("Borrower:   %s\n", p.BorrowerCode)
	fmt.Printf("Loan type:  %s\n", p.LoanTypeName)
	fmt.Printf("Amount:     %s\n", p.Amount)
	fmt.Printf("Tenure:     %d\n", p.Tenure)
	fmt.Printf("Confidence: %.2f\n", p.Confidence)
	fmt.Printf("Reasoning:  %s\n", p.Reasoning)
}
