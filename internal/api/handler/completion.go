// internal/api/handler/completion.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"readreward/internal/domain"
	"readreward/internal/service"
)

// CompletionHandler handles reward claims for finished content.
type CompletionHandler struct {
	responder
	service service.CompletionService
}

// NewCompletionHandler creates a new CompletionHandler.
func NewCompletionHandler(svc service.CompletionService, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{
		responder: responder{logger: logger},
		service:   svc,
	}
}

// CompleteRequest represents the request body for a completion. Only the
// content id and reading time affect the outcome.
type CompleteRequest struct {
	ContentID int64           `json:"contentId" validate:"gt=0"`
	Rating    int             `json:"rating" validate:"gte=0,lte=5"`
	Opinion   string          `json:"opinion" validate:"max=2000"`
	TimeSpent int             `json:"timeSpent" validate:"gte=0"`
	Answers   json.RawMessage `json:"answers,omitempty"`
}

// Complete handles a completion claim.
// POST /completions
func (h *CompletionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req CompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.service.Complete(r.Context(), p, req.ContentID, domain.ClientReport{
		Rating:    req.Rating,
		Opinion:   req.Opinion,
		TimeSpent: req.TimeSpent,
		Answers:   req.Answers,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, result)
}
