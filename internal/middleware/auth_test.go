package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/model"
)

type staticAuthenticator struct {
	id  *model.Identity
	err error
}

func (s staticAuthenticator) Authenticate(r *http.Request) (*model.Identity, error) {
	return s.id, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		auth       staticAuthenticator
		wantStatus int
		wantUser   string
	}{
		{
			name:       "authenticated",
			auth:       staticAuthenticator{id: &model.Identity{UserID: "01HUSER", Method: model.AuthMethodSession}},
			wantStatus: http.StatusOK,
			wantUser:   "01HUSER",
		},
		{
			name:       "no credentials",
			auth:       staticAuthenticator{err: auth.ErrNoCredentials},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			auth:       staticAuthenticator{err: auth.ErrInvalidToken},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := Auth(tt.auth, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = auth.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if body["error"] != "Unauthorized" || body["code"] != "UNAUTHORIZED" {
					t.Errorf("unexpected body: %v", body)
				}
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	tests := []struct {
		name       string
		id         *model.Identity
		wantStatus int
	}{
		{name: "session", id: &model.Identity{UserID: "u", Method: model.AuthMethodSession}, wantStatus: http.StatusOK},
		{name: "api key", id: &model.Identity{UserID: "u", Method: model.AuthMethodAPIKey}, wantStatus: http.StatusForbidden},
		{name: "anonymous", id: nil, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireSession()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/keys", nil)
			if tt.id != nil {
				req = req.WithContext(auth.ContextWithIdentity(req.Context(), tt.id))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
