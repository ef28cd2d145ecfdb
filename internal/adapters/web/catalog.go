package web

import (
	"net/http"

	"loan-manager/internal/app"

	"github.com/shopspring/decimal"
)

// ── Requirements ─────────────────────────────────────────────────────────────

// apiListRequirements handles GET /api/companies/{code}/requirements.
func (h *Handler) apiListRequirements(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListRequirements(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"requirements": result.Requirements})
}

// apiCreateRequirement handles POST /api/companies/{code}/requirements.
func (h *Handler) apiCreateRequirement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Mandatory   bool   `json:"mandatory"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := h.svc.CreateRequirement(r.Context(), app.CreateRequirementRequest{
		CompanyCode: companyCode(r),
		Name:        body.Name,
		Description: body.Description,
		Mandatory:   body.Mandatory,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, req)
}

// ── Loan types ───────────────────────────────────────────────────────────────

type loanTypeAccountsBody struct {
	Payment                      string `json:"payment"`
	Disbursement                 string `json:"disbursement"`
	DisbursementBank             string `json:"disbursement_bank"`
	DisbursementCommission       string `json:"disbursement_commission"`
	AnticipatedPaymentCommission string `json:"anticipated_payment_commission"`
	LegalExpenses                string `json:"legal_expenses"`
	LifeInsurance                string `json:"life_insurance"`
	Interest                     string `json:"interest"`
}

type createLoanTypeBody struct {
	Name                                string               `json:"name"`
	Description                         string               `json:"description"`
	Criteria                            string               `json:"criteria"`
	MaxAmount                           decimal.Decimal      `json:"max_amount"`
	MaxTenure                           int                  `json:"max_tenure"`
	TenurePlan                          string               `json:"tenure_plan"`
	AmortizationMethod                  string               `json:"amortization_method"`
	InterestRatePercent                 decimal.Decimal      `json:"interest_rate_percent"`
	DisburseCommissionPercent           decimal.Decimal      `json:"disburse_commission_percent"`
	AnticipatedPaymentCommissionPercent decimal.Decimal      `json:"anticipated_payment_commission_percent"`
	LegalExpenses                       decimal.Decimal      `json:"legal_expenses"`
	LifeInsurance                       decimal.Decimal      `json:"life_insurance"`
	Accounts                            loanTypeAccountsBody `json:"accounts"`
	RequirementIDs                      []int                `json:"requirement_ids"`
}

// apiListLoanTypes handles GET /api/companies/{code}/loan-types.
func (h *Handler) apiListLoanTypes(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListLoanTypes(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"loan_types": result.LoanTypes})
}

// apiCreateLoanType handles POST /api/companies/{code}/loan-types.
func (h *Handler) apiCreateLoanType(w http.ResponseWriter, r *http.Request) {
	var body createLoanTypeBody
	if !decodeJSON(w, r, &body) {
		return
	}

	lt, err := h.svc.CreateLoanType(r.Context(), app.CreateLoanTypeRequest{
		CompanyCode:                         companyCode(r),
		Name:                                body.Name,
		Description:                         body.Description,
		Criteria:                            body.Criteria,
		MaxAmount:                           body.MaxAmount,
		MaxTenure:                           body.MaxTenure,
		TenurePlan:                          body.TenurePlan,
		AmortizationMethod:                  body.AmortizationMethod,
		InterestRatePercent:                 body.InterestRatePercent,
		DisburseCommissionPercent:           body.DisburseCommissionPercent,
		AnticipatedPaymentCommissionPercent: body.AnticipatedPaymentCommissionPercent,
		LegalExpenses:                       body.LegalExpenses,
		LifeInsurance:                       body.LifeInsurance,
		PaymentAccount:                      body.Accounts.Payment,
		DisbursementAccount:                 body.Accounts.Disbursement,
		DisbursementBankAccount:             body.Accounts.DisbursementBank,
		DisbursementCommissionAccount:       body.Accounts.DisbursementCommission,
		AnticipatedCommissionAccount:        body.Accounts.AnticipatedPaymentCommission,
		LegalExpensesAccount:                body.Accounts.LegalExpenses,
		LifeInsuranceAccount:                body.Accounts.LifeInsurance,
		InterestAccount:                     body.Accounts.Interest,
		RequirementIDs:                      body.RequirementIDs,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, lt)
}

// ── Borrowers ────────────────────────────────────────────────────────────────

// apiListBorrowers handles GET /api/companies/{code}/borrowers.
func (h *Handler) apiListBorrowers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListBorrowers(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"borrowers": result.Borrowers})
}

// apiCreateBorrower handles POST /api/companies/{code}/borrowers.
func (h *Handler) apiCreateBorrower(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code        string `json:"code"`
		Name        string `json:"name"`
		LoanAccount string `json:"loan_account"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	b, err := h.svc.CreateBorrower(r.Context(), app.CreateBorrowerRequest{
		CompanyCode: companyCode(r),
		Code:        body.Code,
		Name:        body.Name,
		LoanAccount: body.LoanAccount,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, b)
}

// apiSetBorrowerLoanAccount handles PUT /api/companies/{code}/borrowers/{id}/loan-account.
func (h *Handler) apiSetBorrowerLoanAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		AccountCode string `json:"account_code"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	b, err := h.svc.SetBorrowerLoanAccount(r.Context(), companyCode(r), id, body.AccountCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, b)
}
