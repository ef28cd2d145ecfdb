package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"loan-manager/internal/app"
	"loan-manager/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorField(w, r, message, code, "", status)
}

func writeErrorField(w http.ResponseWriter, r *http.Request, message, code, field string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		Field:     field,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps domain error kinds to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *core.ValidationError
		guard      *core.StateGuardError
		immutable  *core.ImmutableFieldError
		config     *core.ConfigurationError
		maxBytes   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.As(err, &validation):
		writeErrorField(w, r, err.Error(), validationCode(err), validation.Field, http.StatusUnprocessableEntity)
	case errors.As(err, &guard):
		writeError(w, r, err.Error(), guardCode(err), http.StatusConflict)
	case errors.As(err, &immutable):
		writeErrorField(w, r, err.Error(), "IMMUTABLE_FIELD", immutable.Field, http.StatusConflict)
	case errors.As(err, &config):
		writeError(w, r, err.Error(), "CONFIGURATION_ERROR", http.StatusUnprocessableEntity)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, r, err.Error(), "UNAUTHORIZED", http.StatusUnauthorized)
	case errors.As(err, &maxBytes):
		writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err, "path", r.URL.Path, "request_id", requestIDFromContext(r.Context()))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

func validationCode(err error) string {
	switch {
	case errors.Is(err, core.ErrOutOfBounds):
		return "OUT_OF_BOUNDS"
	case errors.Is(err, core.ErrDuplicateName):
		return "DUPLICATE_NAME"
	case errors.Is(err, core.ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, core.ErrUnbalancedEntry):
		return "UNBALANCED_ENTRY"
	}
	return "VALIDATION_ERROR"
}

func guardCode(err error) string {
	switch {
	case errors.Is(err, core.ErrStaleSchedule):
		return "STALE_SCHEDULE"
	case errors.Is(err, core.ErrOutOfOrderPayment):
		return "OUT_OF_ORDER_PAYMENT"
	case errors.Is(err, core.ErrIllegalEdit):
		return "ILLEGAL_EDIT"
	}
	return "INVALID_STATE"
}
