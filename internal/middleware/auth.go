package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/model"
)

// Auth returns a middleware that resolves the caller's identity with
// authenticator and rejects anonymous requests with 401.
func Auth(authenticator auth.Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticator.Authenticate(r)
			if err != nil || id == nil {
				reason := "invalid_credentials"
				if errors.Is(err, auth.ErrNoCredentials) {
					reason = "missing_credentials"
				}
				logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", clientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			setLogUser(r.Context(), id)
			logger.Debug("authentication successful",
				slog.String("user_id", id.UserID),
				slog.String("method", id.Method),
				slog.String("key_id", id.KeyID),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuthMethod rejects identities established by any other method
// with 403. Must be applied after Auth.
func RequireAuthMethod(methods ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.IdentityFromContext(r.Context())
			if id == nil {
				writeAuthError(w)
				return
			}
			for _, m := range methods {
				if id.Method == m {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "FORBIDDEN", "This endpoint requires a "+describeMethods(methods))
		})
	}
}

// RequireSession allows only browser sessions.
func RequireSession() func(http.Handler) http.Handler {
	return RequireAuthMethod(model.AuthMethodSession)
}

func describeMethods(methods []string) string {
	if len(methods) == 1 && methods[0] == model.AuthMethodSession {
		return "signed-in session"
	}
	return "different authentication method"
}
