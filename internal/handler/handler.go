// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/service"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

// Handler serves the informational and fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello reports the service name and version.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"message": "Hello from Recast!",
		"version": Version,
	}
	writeJSON(w, http.StatusOK, response)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeUnauthorized writes the fixed 401 body.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
}

// decodeJSON decodes a request body, reporting whether it succeeded.
// A failure has already been answered with 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses.
// Unknown errors are logged and answered with a generic 500.
func handleServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validation *service.ValidationError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		writeUnauthorized(w)
	case errors.Is(err, service.ErrScrapeFailed):
		writeError(w, http.StatusBadRequest, "SCRAPE_FAILED", "Failed to scrape URL content")
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", validation.Message)
	case errors.Is(err, service.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, "QUOTA_EXCEEDED", "Monthly usage limit reached")
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "User already exists")
	case errors.Is(err, service.ErrInvalidLogin):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, service.ErrKeyNotFound):
		writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found")
	case errors.Is(err, service.ErrTooManyAPIKeys):
		writeError(w, http.StatusConflict, "KEY_LIMIT_REACHED", "API key limit reached")
	case errors.Is(err, service.ErrNotConfigured):
		logger.Error("generation provider not configured", "error", err)
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", "Content generation is not configured")
	default:
		logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
