package web

import (
	"net/http"

	"stockroom/internal/core"
)

// apiInterpret handles POST /api/ai/interpret.
// Body: { text } — a natural-language stock request. Returns either a tag
// proposal for review or a clarification question. Nothing is committed.
func (h *Handler) apiInterpret(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Text == "" {
		writeError(w, r, "text is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.InterpretRequest(r.Context(), body.Text)
	if err != nil {
		writeError(w, r, "interpretation failed: "+err.Error(), "AI_ERROR", http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

// apiValidateProposal handles POST /api/ai/validate.
// Body: a tag proposal. Returns { valid, error? }.
func (h *Handler) apiValidateProposal(w http.ResponseWriter, r *http.Request) {
	var proposal core.TagProposal
	if !decodeJSON(w, r, &proposal) {
		return
	}

	type response struct {
		Valid bool   `json:"valid"`
		Error string `json:"error,omitempty"`
	}
	if err := h.svc.ValidateProposal(r.Context(), proposal); err != nil {
		writeJSON(w, response{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, response{Valid: true})
}

// apiCommitProposal handles POST /api/ai/commit.
// Body: a tag proposal, sent back unchanged after the user approved it.
func (h *Handler) apiCommitProposal(w http.ResponseWriter, r *http.Request) {
	var proposal core.TagProposal
	if !decodeJSON(w, r, &proposal) {
		return
	}

	tag, err := h.svc.CommitProposal(r.Context(), proposal, actor(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, tag)
}
