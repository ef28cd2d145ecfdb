package web

import (
	"net/http"
	"strings"

	"loan-manager/internal/core"
)

// apiTrialBalance handles GET /api/companies/{code}/trial-balance.
func (h *Handler) apiTrialBalance(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetTrialBalance(r.Context(), companyCode(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiGetEntry handles GET /api/companies/{code}/entries/{id}.
// The response carries loan_reference so clients can open the originating loan.
func (h *Handler) apiGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	entry, err := h.svc.GetEntry(r.Context(), companyCode(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// apiUpdateEntry handles PATCH /api/companies/{code}/entries/{id}.
func (h *Handler) apiUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	var body core.EntryUpdate
	if !decodeJSON(w, r, &body) {
		return
	}
	entry, err := h.svc.UpdateEntry(r.Context(), companyCode(r), id, body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// apiPortfolio handles GET /api/companies/{code}/reports/portfolio?as_of=YYYY-MM-DD.
func (h *Handler) apiPortfolio(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetPortfolio(r.Context(), companyCode(r), r.URL.Query().Get("as_of"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiIntake handles POST /api/companies/{code}/intake.
// With "create": true the interpreted loan is saved as a draft.
func (h *Handler) apiIntake(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text   string `json:"text"`
		Create bool   `json:"create"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeErrorField(w, r, "text is required", "VALIDATION_ERROR", "text", http.StatusUnprocessableEntity)
		return
	}

	result, err := h.svc.InterpretIntake(r.Context(), companyCode(r), body.Text, body.Create)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Loan != nil {
		status = http.StatusCreated
	}
	writeJSONStatus(w, status, result)
}
