package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/handler/dto"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/service"
)

// Accounts is the account service used by the session and profile handlers.
type Accounts interface {
	Signup(ctx context.Context, in service.SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	GoogleSignIn(ctx context.Context, profile *auth.GoogleProfile) (*model.User, error)
	Me(ctx context.Context, id *model.Identity) (*model.User, error)
	Now() time.Time
}

// GoogleProvider runs the Google OAuth authorization-code flow.
type GoogleProvider interface {
	Begin(w http.ResponseWriter) (string, error)
	Complete(ctx context.Context, w http.ResponseWriter, r *http.Request) (*auth.GoogleProfile, error)
}

// Browser redirect targets after Google sign-in.
const (
	DashboardPath   = "/dashboard"
	LoginFailedPath = "/login?error=oauth"
)

// SessionHandler serves signup, login, logout and Google sign-in.
type SessionHandler struct {
	accounts Accounts
	sessions *auth.SessionManager
	google   GoogleProvider
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler. google may be nil.
func NewSessionHandler(accounts Accounts, sessions *auth.SessionManager, google GoogleProvider, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		accounts: accounts,
		sessions: sessions,
		google:   google,
		logger:   logger,
	}
}

// Signup handles POST /api/auth/signup.
func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if !h.startSession(w, user) {
		return
	}
	writeJSON(w, http.StatusCreated, dto.SessionResponse{
		Message: "User created successfully",
		User:    user.ToResponse(h.accounts.Now()),
	})
}

// Login handles POST /api/auth/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	if !h.startSession(w, user) {
		return
	}
	writeJSON(w, http.StatusOK, dto.SessionResponse{
		Message: "Logged in",
		User:    user.ToResponse(h.accounts.Now()),
	})
}

// Logout handles POST /api/auth/logout.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GoogleBegin handles GET /api/auth/google.
func (h *SessionHandler) GoogleBegin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "OAUTH_DISABLED", "Google sign-in is not configured")
		return
	}

	consentURL, err := h.google.Begin(w)
	if err != nil {
		if errors.Is(err, auth.ErrOAuthDisabled) {
			writeError(w, http.StatusNotFound, "OAUTH_DISABLED", "Google sign-in is not configured")
			return
		}
		handleServiceError(w, h.logger, err)
		return
	}
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback.
// Failures send the browser back to the login page.
func (h *SessionHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeError(w, http.StatusNotFound, "OAUTH_DISABLED", "Google sign-in is not configured")
		return
	}

	profile, err := h.google.Complete(r.Context(), w, r)
	if err != nil {
		h.logger.Warn("google callback rejected", "error", err)
		http.Redirect(w, r, LoginFailedPath, http.StatusFound)
		return
	}

	user, err := h.accounts.GoogleSignIn(r.Context(), profile)
	if err != nil {
		h.logger.Warn("google sign-in failed", "error", err)
		http.Redirect(w, r, LoginFailedPath, http.StatusFound)
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("issue session", "error", err)
		http.Redirect(w, r, LoginFailedPath, http.StatusFound)
		return
	}
	h.sessions.SetCookie(w, token)
	http.Redirect(w, r, DashboardPath, http.StatusFound)
}

func (h *SessionHandler) startSession(w http.ResponseWriter, user *model.User) bool {
	token, err := h.sessions.Issue(user)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return false
	}
	h.sessions.SetCookie(w, token)
	return true
}
