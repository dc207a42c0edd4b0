package web

import (
	"fmt"
	"net/http"
	"strconv"

	"stockroom/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// apiListReceipts handles GET /api/receipts?limit=50.
func (h *Handler) apiListReceipts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := h.svc.ListReceipts(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Receipts)
}

// apiGetReceipt handles GET /api/receipts/{id}.
func (h *Handler) apiGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid receipt id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	receipt, err := h.svc.GetReceipt(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, receipt)
}

// apiReceiveStock handles POST /api/receipts.
// Body: { supplier?, movement_date?, notes?, lines: [{sku_code, quantity, unit_cost?, location?}] }
// unit_cost is a string decimal; empty means "use the SKU's current unit cost".
func (h *Handler) apiReceiveStock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Supplier     string `json:"supplier"`
		MovementDate string `json:"movement_date"`
		Notes        string `json:"notes"`
		Lines        []struct {
			SKUCode  string `json:"sku_code"`
			Quantity int    `json:"quantity"`
			UnitCost string `json:"unit_cost"`
			Location string `json:"location"`
		} `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Lines) == 0 {
		writeError(w, r, "at least one line is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req := app.ReceiveStockRequest{
		Supplier:     body.Supplier,
		ReceivedBy:   actor(r),
		MovementDate: body.MovementDate,
		Notes:        body.Notes,
	}
	for i, l := range body.Lines {
		if l.SKUCode == "" || l.Quantity <= 0 {
			writeError(w, r, fmt.Sprintf("line %d: sku_code and a positive quantity are required", i+1), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		cost := decimal.Zero
		if l.UnitCost != "" {
			var err error
			cost, err = decimal.NewFromString(l.UnitCost)
			if err != nil || cost.IsNegative() {
				writeError(w, r, fmt.Sprintf("line %d: invalid unit_cost", i+1), "BAD_REQUEST", http.StatusBadRequest)
				return
			}
		}
		req.Lines = append(req.Lines, app.ReceiptLineInput{
			SKUCode:  l.SKUCode,
			Quantity: l.Quantity,
			UnitCost: cost,
			Location: l.Location,
		})
	}

	receipt, err := h.svc.ReceiveStock(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, receipt)
}
