package web

import (
	"fmt"
	"net/http"
	"strconv"

	"stockroom/internal/app"

	"github.com/go-chi/chi/v5"
)

type tagLineBody struct {
	SKUCode     string `json:"sku_code"`
	Quantity    int    `json:"quantity"`
	Method      string `json:"method"`
	CostOrder   string `json:"cost_order"`
	InstanceIDs []int  `json:"instance_ids"`
}

func (b tagLineBody) toInput() app.TagLineInput {
	return app.TagLineInput{
		SKUCode:     b.SKUCode,
		Quantity:    b.Quantity,
		Method:      b.Method,
		CostOrder:   b.CostOrder,
		InstanceIDs: b.InstanceIDs,
	}
}

// apiListTags handles GET /api/tags?status=active&type=loaned.
func (h *Handler) apiListTags(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListTags(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("type"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result.Tags)
}

// apiGetTag handles GET /api/tags/{ref} — ref is a numeric id or tag number.
func (h *Handler) apiGetTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.svc.GetTag(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, tag)
}

// apiCreateTag handles POST /api/tags.
// Body: { tag_type, customer?, project?, due_date?, notes?, lines: [{sku_code, quantity?, method?, cost_order?, instance_ids?}] }
func (h *Handler) apiCreateTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TagType  string        `json:"tag_type"`
		Customer string        `json:"customer"`
		Project  string        `json:"project"`
		DueDate  string        `json:"due_date"`
		Notes    string        `json:"notes"`
		Lines    []tagLineBody `json:"lines"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.TagType == "" {
		writeError(w, r, "tag_type is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if len(body.Lines) == 0 {
		writeError(w, r, "at least one line is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req := app.CreateTagRequest{
		TagType:   body.TagType,
		Customer:  body.Customer,
		Project:   body.Project,
		DueDate:   body.DueDate,
		Notes:     body.Notes,
		CreatedBy: actor(r),
	}
	for i, l := range body.Lines {
		if l.SKUCode == "" {
			writeError(w, r, fmt.Sprintf("line %d: sku_code is required", i+1), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		req.Lines = append(req.Lines, l.toInput())
	}

	tag, err := h.svc.CreateTag(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, tag)
}

// apiAllocateToTag handles POST /api/tags/{id}/allocate.
// Body: one tag line.
func (h *Handler) apiAllocateToTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid tag id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body tagLineBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.SKUCode == "" {
		writeError(w, r, "sku_code is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	tag, err := h.svc.AllocateToTag(r.Context(), id, body.toInput(), actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, tag)
}

// apiFulfillTag handles POST /api/tags/{id}/fulfill.
// Body: { mode, resolutions?: [{sku_code, quantity?, instance_ids?}] }
// Empty resolutions resolves everything the tag holds.
func (h *Handler) apiFulfillTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid tag id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body struct {
		Mode        string `json:"mode"`
		Resolutions []struct {
			SKUCode     string `json:"sku_code"`
			Quantity    int    `json:"quantity"`
			InstanceIDs []int  `json:"instance_ids"`
		} `json:"resolutions"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Mode != "consume" && body.Mode != "release" {
		writeError(w, r, "mode must be 'consume' or 'release'", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req := app.FulfillTagRequest{TagID: id, Mode: body.Mode, Actor: actor(r)}
	for _, res := range body.Resolutions {
		req.Resolutions = append(req.Resolutions, app.ResolutionInput{
			SKUCode:     res.SKUCode,
			Quantity:    res.Quantity,
			InstanceIDs: res.InstanceIDs,
		})
	}

	tag, err := h.svc.FulfillTag(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, tag)
}

// apiReturnWithCondition handles POST /api/tags/{id}/return.
// Body: { instance_ids, condition } — condition is "functional",
// "needs_maintenance", or "broken".
func (h *Handler) apiReturnWithCondition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid tag id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body struct {
		InstanceIDs []int  `json:"instance_ids"`
		Condition   string `json:"condition"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.InstanceIDs) == 0 {
		writeError(w, r, "instance_ids is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ReturnWithCondition(r.Context(), app.ConditionReturnRequest{
		TagID:       id,
		InstanceIDs: body.InstanceIDs,
		Condition:   body.Condition,
		Actor:       actor(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCancelTag handles POST /api/tags/{id}/cancel.
// Body: { reason? }
func (h *Handler) apiCancelTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "invalid tag id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// Best-effort decode; reason is optional.
	_ = decodeOptionalJSON(r, &body)

	tag, err := h.svc.CancelTag(r.Context(), id, body.Reason, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, tag)
}
