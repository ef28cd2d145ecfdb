package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"loan-manager/internal/app"
	"loan-manager/internal/observability"

	"github.com/go-chi/chi/v5"
)

// HandlerConfig carries the HTTP-facing settings of the server.
type HandlerConfig struct {
	AllowedOrigins string
	JWTSecret      string
	Logger         *slog.Logger
	Metrics        *observability.Metrics // optional; /metrics is mounted when set
	FilesDir       string                 // optional; local document storage served under /files
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	logger    *slog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: cfg.JWTSecret,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger, cfg.Metrics))
	r.Use(Recoverer(logger))
	r.Use(CORS(cfg.AllowedOrigins))

	// ── Health & metrics (public) ─────────────────────────────────────────────
	r.Get("/api/health", h.health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.With(RequestBodyLimit(1<<20)).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		if cfg.FilesDir != "" {
			files := http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.FilesDir)))
			r.Get("/files/*", files.ServeHTTP)
		}

		r.Get("/api/auth/me", h.me)

		r.Route("/api/companies/{code}", func(r chi.Router) {
			r.Use(h.requireCompanyAccess)

			// Document upload: body limit is enforced inside the handler (multipart).
			r.Post("/loans/{ref}/documents/{requirementID}", h.apiUploadDocument)

			r.Group(func(r chi.Router) {
				r.Use(RequestBodyLimit(1 << 20)) // 1 MB

				// ── Catalog ───────────────────────────────────────────────────
				r.Get("/requirements", h.apiListRequirements)
				r.Post("/requirements", h.apiCreateRequirement)
				r.Get("/loan-types", h.apiListLoanTypes)
				r.Post("/loan-types", h.apiCreateLoanType)
				r.Get("/borrowers", h.apiListBorrowers)
				r.Post("/borrowers", h.apiCreateBorrower)
				r.Put("/borrowers/{id}/loan-account", h.apiSetBorrowerLoanAccount)

				// ── Loans ─────────────────────────────────────────────────────
				r.Get("/loans", h.apiListLoans)
				r.Post("/loans", h.apiCreateLoan)
				r.Get("/loans/{ref}", h.apiGetLoan)
				r.Patch("/loans/{ref}", h.apiUpdateLoan)
				r.Post("/loans/{ref}/schedule", h.transition(svc.ComputeSchedule))
				r.Post("/loans/{ref}/confirm", h.transition(svc.ConfirmLoan))
				r.Post("/loans/{ref}/pending", h.transition(svc.RequestApproval))
				r.Post("/loans/{ref}/decline", h.apiDeclineLoan)
				r.Post("/loans/{ref}/exports", h.apiStartExport)
				r.Get("/loans/{ref}/exports", h.apiListExports)
				r.Get("/exports/{id}", h.apiGetExport)

				// Decisions that move money are reserved to managers.
				r.Group(func(r chi.Router) {
					r.Use(h.RequireManager)
					r.Post("/loans/{ref}/approve", h.transition(svc.ApproveLoan))
					r.Post("/loans/{ref}/reject", h.apiRejectLoan)
					r.Post("/loans/{ref}/register", h.transition(svc.RegisterLoan))
					r.Post("/loans/{ref}/disburse", h.transition(svc.DisburseLoan))
					r.Post("/loans/{ref}/repayments/{seq}/pay", h.apiPayInstallment)
					r.Post("/loans/{ref}/repayments/{seq}/confirm", h.apiConfirmRepayment)
					r.Patch("/loans/{ref}/repayments/{seq}", h.apiUpdateRepayment)
				})

				// ── Ledger & reports ──────────────────────────────────────────
				r.Get("/trial-balance", h.apiTrialBalance)
				r.Get("/entries/{id}", h.apiGetEntry)
				r.Patch("/entries/{id}", h.apiUpdateEntry)
				r.Get("/reports/portfolio", h.apiPortfolio)

				// ── Intake ────────────────────────────────────────────────────
				r.Post("/intake", h.apiIntake)
			})
		})
	})

	h.router = r
	return r
}

// health returns service status and the loaded company code.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	company, err := h.svc.LoadDefaultCompany(r.Context())
	companyCode := ""
	if err == nil && company != nil {
		companyCode = company.CompanyCode
	}

	type response struct {
		Status  string `json:"status"`
		Company string `json:"company"`
	}

	writeJSON(w, response{Status: "ok", Company: companyCode})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// intParam parses a numeric URL parameter, writing 400 on failure.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		writeError(w, r, "invalid "+name, "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
