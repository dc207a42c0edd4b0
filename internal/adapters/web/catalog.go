package web

import (
	"fmt"
	"net/http"

	"stockroom/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// apiListCategories handles GET /api/categories.
func (h *Handler) apiListCategories(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Categories)
}

// apiCreateCategory handles POST /api/categories.
// Body: { code, name, kind, required_attributes? }
func (h *Handler) apiCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code               string   `json:"code"`
		Name               string   `json:"name"`
		Kind               string   `json:"kind"`
		RequiredAttributes []string `json:"required_attributes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Code == "" || body.Name == "" {
		writeError(w, r, "code and name are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	category, err := h.svc.CreateCategory(r.Context(), app.CreateCategoryRequest{
		Code:               body.Code,
		Name:               body.Name,
		Kind:               body.Kind,
		RequiredAttributes: body.RequiredAttributes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, category)
}

// apiListSKUs handles GET /api/skus?include_disabled=true.
func (h *Handler) apiListSKUs(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("include_disabled") == "true"
	result, err := h.svc.ListSKUs(r.Context(), includeDisabled)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.SKUs)
}

// apiGetSKU handles GET /api/skus/{code}.
func (h *Handler) apiGetSKU(w http.ResponseWriter, r *http.Request) {
	sku, err := h.svc.GetSKU(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sku)
}

// apiCreateSKU handles POST /api/skus.
// Body: { code, category_code, name, description?, unit_cost, bundle_items?: [{component_sku_code, quantity}] }
func (h *Handler) apiCreateSKU(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code         string `json:"code"`
		CategoryCode string `json:"category_code"`
		Name         string `json:"name"`
		Description  string `json:"description"`
		UnitCost     string `json:"unit_cost"`
		BundleItems  []struct {
			ComponentSKUCode string `json:"component_sku_code"`
			Quantity         int    `json:"quantity"`
		} `json:"bundle_items"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Code == "" || body.CategoryCode == "" || body.Name == "" {
		writeError(w, r, "code, category_code, and name are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	cost, err := decimal.NewFromString(body.UnitCost)
	if err != nil || cost.IsNegative() {
		writeError(w, r, "invalid unit_cost", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req := app.CreateSKURequest{
		Code:         body.Code,
		CategoryCode: body.CategoryCode,
		Name:         body.Name,
		Description:  body.Description,
		UnitCost:     cost,
		CreatedBy:    actor(r),
	}
	for i, item := range body.BundleItems {
		if item.Quantity <= 0 {
			writeError(w, r, fmt.Sprintf("bundle item %d: quantity must be positive", i+1), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.BundleItems = append(req.BundleItems, app.BundleItemInput{
			ComponentSKUCode: item.ComponentSKUCode,
			Quantity:         item.Quantity,
		})
	}

	sku, err := h.svc.CreateSKU(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sku)
}

// apiUpdateSKUCost handles POST /api/skus/{code}/cost.
// Body: { cost, effective_date?, notes? }
func (h *Handler) apiUpdateSKUCost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cost          string `json:"cost"`
		EffectiveDate string `json:"effective_date"`
		Notes         string `json:"notes"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	cost, err := decimal.NewFromString(body.Cost)
	if err != nil || cost.IsNegative() {
		writeError(w, r, "invalid cost", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	sku, err := h.svc.UpdateSKUCost(r.Context(), app.UpdateSKUCostRequest{
		Code:          chi.URLParam(r, "code"),
		Cost:          cost,
		EffectiveDate: body.EffectiveDate,
		UpdatedBy:     actor(r),
		Notes:         body.Notes,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sku)
}

// apiGetCostHistory handles GET /api/skus/{code}/cost-history.
func (h *Handler) apiGetCostHistory(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetCostHistory(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiSetSKUStatus handles POST /api/skus/{code}/status.
// Body: { status } — "active" or "disabled".
func (h *Handler) apiSetSKUStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Status != "active" && body.Status != "disabled" {
		writeError(w, r, "status must be 'active' or 'disabled'", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	sku, err := h.svc.SetSKUStatus(r.Context(), chi.URLParam(r, "code"), body.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sku)
}
