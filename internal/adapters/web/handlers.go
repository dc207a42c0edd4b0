package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"stockroom/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Auth (public) ─────────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/categories", h.apiListCategories)
		r.Post("/api/categories", h.apiCreateCategory)
		r.Get("/api/skus", h.apiListSKUs)
		r.Post("/api/skus", h.apiCreateSKU)
		r.Get("/api/skus/{code}", h.apiGetSKU)
		r.Post("/api/skus/{code}/cost", h.apiUpdateSKUCost)
		r.Get("/api/skus/{code}/cost-history", h.apiGetCostHistory)
		r.Post("/api/skus/{code}/status", h.apiSetSKUStatus)

		// ── Receiving ─────────────────────────────────────────────────────────
		r.Get("/api/receipts", h.apiListReceipts)
		r.Post("/api/receipts", h.apiReceiveStock)
		r.Get("/api/receipts/{id}", h.apiGetReceipt)

		// ── Tags ──────────────────────────────────────────────────────────────
		r.Get("/api/tags", h.apiListTags)
		r.Post("/api/tags", h.apiCreateTag)
		r.Get("/api/tags/{ref}", h.apiGetTag)
		r.Post("/api/tags/{id}/allocate", h.apiAllocateToTag)
		r.Post("/api/tags/{id}/fulfill", h.apiFulfillTag)
		r.Post("/api/tags/{id}/return", h.apiReturnWithCondition)
		r.Post("/api/tags/{id}/cancel", h.apiCancelTag)

		// ── Inventory ─────────────────────────────────────────────────────────
		r.Get("/api/stock", h.apiStockLevels)
		r.Post("/api/stock/reconcile", h.apiReconcile)
		r.Get("/api/movements", h.apiListMovements)

		// ── Reports ───────────────────────────────────────────────────────────
		r.Get("/api/reports/valuation", h.apiValuationReport)
		r.Get("/api/reports/overdue", h.apiOverdueLoans)

		// ── AI ────────────────────────────────────────────────────────────────
		r.Post("/api/ai/interpret", h.apiInterpret)
		r.Post("/api/ai/validate", h.apiValidateProposal)
		r.Post("/api/ai/commit", h.apiCommitProposal)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
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

// decodeOptionalJSON decodes a body that may legitimately be empty. Decode
// errors are returned for callers that care; most ignore them.
func decodeOptionalJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
