package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/model"
)

// KeyManager manages the caller's personal API keys.
type KeyManager interface {
	CreateAPIKey(ctx context.Context, id *model.Identity, name string) (*model.APIKeyCreateResponse, error)
	ListAPIKeys(ctx context.Context, id *model.Identity) ([]model.APIKeyResponse, error)
	RevokeAPIKey(ctx context.Context, id *model.Identity, keyID string) error
}

// JobLister returns a user's recent content jobs.
type JobLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.ContentJob, error)
}

// AccountHandler serves the caller's profile, history and API keys.
type AccountHandler struct {
	accounts     Accounts
	keys         KeyManager
	jobs         JobLister
	monthlyLimit int64
	logger       *slog.Logger
}

// NewAccountHandler creates a new AccountHandler. monthlyLimit is the
// free plan quota shown on the profile; 0 means unlimited.
func NewAccountHandler(accounts Accounts, keys KeyManager, jobs JobLister, monthlyLimit int64, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		keys:         keys,
		jobs:         jobs,
		monthlyLimit: monthlyLimit,
		logger:       logger,
	}
}

// Me handles GET /api/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	user, err := h.accounts.Me(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := dto.MeResponse{
		User:       user.ToResponse(h.accounts.Now()),
		AuthMethod: id.Method,
	}
	if user.Plan != model.PlanPro {
		resp.MonthlyLimit = h.monthlyLimit
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListJobs handles GET /api/jobs?limit=N.
func (h *AccountHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeUnauthorized(w)
		return
	}

	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 100")
		return
	}

	jobs, err := h.jobs.ListByUser(r.Context(), id.UserID, limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.ContentJob{}
	}
	writeJSON(w, http.StatusOK, dto.JobListResponse{Data: jobs})
}

// CreateAPIKey handles POST /api/keys.
func (h *AccountHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeUnauthorized(w)
		return
	}

	var req model.APIKeyCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.keys.CreateAPIKey(r.Context(), id, req.Name)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListAPIKeys handles GET /api/keys.
func (h *AccountHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	keys, err := h.keys.ListAPIKeys(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.APIKeyListResponse{Data: keys})
}

// RevokeAPIKey handles DELETE /api/keys/{key_id}.
func (h *AccountHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if err := h.keys.RevokeAPIKey(r.Context(), id, chi.URLParam(r, "key_id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseLimit reads an optional page size; empty means the repository default.
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		return 0, false
	}
	return n, true
}
