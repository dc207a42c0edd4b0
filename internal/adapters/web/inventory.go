package web

import (
	"net/http"
	"strconv"
)

// apiStockLevels handles GET /api/stock.
func (h *Handler) apiStockLevels(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetStockLevels(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Rows)
}

// apiReconcile handles POST /api/stock/reconcile.
// Body: { sku_code? } — empty rebuilds counters for every SKU.
func (h *Handler) apiReconcile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SKUCode string `json:"sku_code"`
	}
	// Best-effort decode; an empty body means "reconcile everything".
	_ = decodeOptionalJSON(r, &body)

	result, err := h.svc.ReconcileInventory(r.Context(), body.SKUCode)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiListMovements handles GET /api/movements?sku=BOLT-M8&limit=50.
func (h *Handler) apiListMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.svc.ListMovements(r.Context(), r.URL.Query().Get("sku"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Movements)
}

// apiValuationReport handles GET /api/reports/valuation.
func (h *Handler) apiValuationReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetValuationReport(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// apiOverdueLoans handles GET /api/reports/overdue?as_of=2026-01-31.
// as_of defaults to today inside the service.
func (h *Handler) apiOverdueLoans(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetOverdueLoans(r.Context(), r.URL.Query().Get("as_of"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}
