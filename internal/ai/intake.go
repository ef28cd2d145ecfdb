package ai

import (
	"fmt"
	"strings"

	"loan-manager/internal/core"

	"github.com/shopspring/decimal"
)

// BuildCatalog formats borrowers and loan types for the intake prompt.
func BuildCatalog(borrowers []core.Borrower, types []core.LoanType) IntakeCatalog {
	var b, t []string
	for _, x := range borrowers {
		b = append(b, fmt.Sprintf("- %s: %s", x.Code, x.Name))
	}
	for _, x := range types {
		t = append(t, fmt.Sprintf("- %s (max %s over %d %s installments, %s%% %s)",
			x.Name, x.MaxAmount.StringFixed(2), x.MaxTenure, x.TenurePlan, x.InterestRatePercent, x.AmortizationMethod))
	}
	return IntakeCatalog{Borrowers: strings.Join(b, "\n"), LoanTypes: strings.Join(t, "\n")}
}

// Resolve maps a proposal onto ids of the company's borrowers and loan types.
// Bounds are left to loan creation.
func Resolve(p IntakeProposal, borrowers []core.Borrower, types []core.LoanType) (core.LoanInput, error) {
	var in core.LoanInput

	for _, b := range borrowers {
		if strings.EqualFold(b.Code, p.BorrowerCode) {
			in.BorrowerID = b.ID
			break
		}
	}
	if in.BorrowerID == 0 {
		return in, core.NewValidationError("borrower_code", "borrower %q is not in the borrower list", p.BorrowerCode)
	}

	for _, t := range types {
		if strings.EqualFold(t.Name, p.LoanTypeName) {
			in.LoanTypeID = t.ID
			break
		}
	}
	if in.LoanTypeID == 0 {
		return in, core.NewValidationError("loan_type_name", "loan type %q is not in the loan type list", p.LoanTypeName)
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return in, core.NewValidationError("amount", "amount %q is not a decimal number", p.Amount)
	}
	in.Amount = amount
	in.Tenure = p.Tenure
	return in, nil
}
