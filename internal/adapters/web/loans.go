package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"loan-manager/internal/app"
	"loan-manager/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxDocumentBytes = 10 << 20 // 10 MB

func loanRef(r *http.Request) string {
	return chi.URLParam(r, "ref")
}

// apiListLoans handles GET /api/companies/{code}/loans?status=.
func (h *Handler) apiListLoans(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListLoans(r.Context(), companyCode(r), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"loans": result.Loans})
}

// apiGetLoan handles GET /api/companies/{code}/loans/{ref}.
func (h *Handler) apiGetLoan(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetLoan(r.Context(), companyCode(r), loanRef(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Loan)
}

// apiCreateLoan handles POST /api/companies/{code}/loans.
func (h *Handler) apiCreateLoan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BorrowerID int             `json:"borrower_id"`
		LoanTypeID int             `json:"loan_type_id"`
		Amount     decimal.Decimal `json:"amount"`
		Tenure     int             `json:"tenure"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.CreateLoan(r.Context(), app.CreateLoanRequest{
		CompanyCode: companyCode(r),
		BorrowerID:  body.BorrowerID,
		LoanTypeID:  body.LoanTypeID,
		Amount:      body.Amount,
		Tenure:      body.Tenure,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Loan)
}

// apiUpdateLoan handles PATCH /api/companies/{code}/loans/{ref}.
func (h *Handler) apiUpdateLoan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BorrowerID *int             `json:"borrower_id"`
		LoanTypeID *int             `json:"loan_type_id"`
		Amount     *decimal.Decimal `json:"amount"`
		Tenure     *int             `json:"tenure"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.UpdateLoan(r.Context(), app.UpdateLoanRequest{
		CompanyCode: companyCode(r),
		Reference:   loanRef(r),
		BorrowerID:  body.BorrowerID,
		LoanTypeID:  body.LoanTypeID,
		Amount:      body.Amount,
		Tenure:      body.Tenure,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Loan)
}

// ── Transitions ──────────────────────────────────────────────────────────────

// loanAction is a body-less lifecycle operation of the application service.
type loanAction func(ctx context.Context, companyCode, ref string) (*app.LoanResult, error)

// transition adapts a loanAction into a handler.
func (h *Handler) transition(action loanAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := action(r.Context(), companyCode(r), loanRef(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, result.Loan)
	}
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// apiDeclineLoan handles POST /api/companies/{code}/loans/{ref}/decline.
func (h *Handler) apiDeclineLoan(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.DeclineLoan(r.Context(), companyCode(r), loanRef(r), body.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Loan)
}

// apiRejectLoan handles POST /api/companies/{code}/loans/{ref}/reject.
func (h *Handler) apiRejectLoan(w http.ResponseWriter, r *http.Request) {
	var body reasonBody
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.RejectLoan(r.Context(), companyCode(r), loanRef(r), body.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Loan)
}

// ── Documents ────────────────────────────────────────────────────────────────

// apiUploadDocument handles POST /api/companies/{code}/loans/{ref}/documents/{requirementID}.
// The file is sent as multipart field "file".
func (h *Handler) apiUploadDocument(w http.ResponseWriter, r *http.Request) {
	reqID, ok := intParam(w, r, "requirementID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes+(1<<20))
	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "document too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, r, "invalid multipart body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, "missing file field", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes+1))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(content) > maxDocumentBytes {
		writeError(w, r, "document too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
		return
	}

	doc, err := h.svc.UploadDocument(r.Context(), app.UploadDocumentRequest{
		CompanyCode:   companyCode(r),
		Reference:     loanRef(r),
		RequirementID: reqID,
		Content:       content,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, doc)
}

// ── Repayments ───────────────────────────────────────────────────────────────

// apiPayInstallment handles POST /api/companies/{code}/loans/{ref}/repayments/{seq}/pay.
func (h *Handler) apiPayInstallment(w http.ResponseWriter, r *http.Request) {
	seq, ok := intParam(w, r, "seq")
	if !ok {
		return
	}
	result, err := h.svc.MarkInstallmentPaid(r.Context(), companyCode(r), loanRef(r), seq)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiConfirmRepayment handles POST /api/companies/{code}/loans/{ref}/repayments/{seq}/confirm.
func (h *Handler) apiConfirmRepayment(w http.ResponseWriter, r *http.Request) {
	seq, ok := intParam(w, r, "seq")
	if !ok {
		return
	}
	result, err := h.svc.ConfirmRepayment(r.Context(), companyCode(r), loanRef(r), seq)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiUpdateRepayment handles PATCH /api/companies/{code}/loans/{ref}/repayments/{seq}.
func (h *Handler) apiUpdateRepayment(w http.ResponseWriter, r *http.Request) {
	seq, ok := intParam(w, r, "seq")
	if !ok {
		return
	}
	var body core.RepaymentUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.UpdateRepayment(r.Context(), companyCode(r), loanRef(r), seq, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// ── Exports ──────────────────────────────────────────────────────────────────

// apiStartExport handles POST /api/companies/{code}/loans/{ref}/exports.
// An empty body exports the default columns.
func (h *Handler) apiStartExport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Columns []string `json:"columns"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	status, err := h.svc.StartScheduleExport(r.Context(), companyCode(r), loanRef(r), body.Columns)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, status)
}

// apiListExports handles GET /api/companies/{code}/loans/{ref}/exports.
func (h *Handler) apiListExports(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListExports(r.Context(), companyCode(r), loanRef(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetExport handles GET /api/companies/{code}/exports/{id}.
func (h *Handler) apiGetExport(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.GetExport(r.Context(), companyCode(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status)
}
