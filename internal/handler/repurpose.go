package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/service"
)

// Repurposer is the service behind POST /api/repurpose.
type Repurposer interface {
	Repurpose(ctx context.Context, id *model.Identity, in service.RepurposeInput) (*service.RepurposeResult, error)
}

// RepurposeHandler serves content repurposing.
type RepurposeHandler struct {
	svc    Repurposer
	logger *slog.Logger
}

// NewRepurposeHandler creates a new RepurposeHandler.
func NewRepurposeHandler(svc Repurposer, logger *slog.Logger) *RepurposeHandler {
	return &RepurposeHandler{
		svc:    svc,
		logger: logger,
	}
}

// Repurpose handles POST /api/repurpose.
// Partial per-platform failures are reported inside a 200 body.
func (h *RepurposeHandler) Repurpose(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeUnauthorized(w)
		return
	}

	var req dto.RepurposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Repurpose(r.Context(), id, req.ToInput())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRepurposeResponse(result))
}
