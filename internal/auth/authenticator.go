package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/recast/recast/internal/model"
)

// Authenticator resolves the caller of a request.
// It returns ErrNoCredentials when the request carries nothing it understands.
type Authenticator interface {
	Authenticate(r *http.Request) (*model.Identity, error)
}

// SessionAuthenticator accepts a session token from the session cookie
// or from an "Authorization: Bearer" header.
type SessionAuthenticator struct {
	sessions *SessionManager
}

// NewSessionAuthenticator creates a SessionAuthenticator.
func NewSessionAuthenticator(sessions *SessionManager) *SessionAuthenticator {
	return &SessionAuthenticator{sessions: sessions}
}

// Authenticate implements Authenticator.
func (a *SessionAuthenticator) Authenticate(r *http.Request) (*model.Identity, error) {
	token := ""
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		token = c.Value
	} else if bearer := bearerToken(r); bearer != "" && !ValidateKeyFormat(bearer) {
		token = bearer
	}
	if token == "" {
		return nil, ErrNoCredentials
	}
	return a.sessions.Verify(token)
}

// KeyStore looks up API keys and their owners.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// IdentityCache caches resolved API key identities by key hash.
type IdentityCache interface {
	GetIdentity(ctx context.Context, cacheKey string) (*model.Identity, error)
	SetIdentity(ctx context.Context, cacheKey string, id *model.Identity) error
}

// APIKeyAuthenticator accepts personal API keys from
// "Authorization: Bearer rk_..." or "X-API-Key".
type APIKeyAuthenticator struct {
	store  KeyStore
	cache  IdentityCache
	logger *slog.Logger

	// MinDuration pads failed lookups to blunt timing probes.
	MinDuration time.Duration
}

// NewAPIKeyAuthenticator creates an APIKeyAuthenticator. cache may be nil.
func NewAPIKeyAuthenticator(store KeyStore, cache IdentityCache, logger *slog.Logger) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{
		store:       store,
		cache:       cache,
		logger:      logger,
		MinDuration: 200 * time.Millisecond,
	}
}

// Authenticate implements Authenticator.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*model.Identity, error) {
	key := bearerToken(r)
	if key == "" || !strings.HasPrefix(key, "rk_") {
		key = r.Header.Get("X-API-Key")
	}
	if key == "" {
		return nil, ErrNoCredentials
	}

	start := time.Now()
	id, err := a.authenticate(r.Context(), key)
	if err != nil {
		if elapsed := time.Since(start); elapsed < a.MinDuration {
			time.Sleep(a.MinDuration - elapsed)
		}
		return nil, err
	}
	return id, nil
}

func (a *APIKeyAuthenticator) authenticate(ctx context.Context, key string) (*model.Identity, error) {
	parsed, err := ParseAPIKey(key)
	if err != nil {
		return nil, ErrInvalidKeyFormat
	}

	cacheKey := QuickHash(key)
	if a.cache != nil {
		if id, _ := a.cache.GetIdentity(ctx, cacheKey); id != nil {
			return id, nil
		}
	}

	keys, err := a.store.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	var matched *model.APIKey
	for _, k := range keys {
		if ok, err := VerifyPassword(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, ErrInvalidCredentials
	}

	user, err := a.store.GetUserByID(ctx, matched.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup key owner: %w", err)
	}

	id := &model.Identity{
		UserID: user.ID,
		Email:  user.Email,
		Plan:   user.Plan,
		Method: model.AuthMethodAPIKey,
		KeyID:  matched.ID,
	}

	if a.cache != nil {
		_ = a.cache.SetIdentity(ctx, cacheKey, id)
	}

	go func(keyID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.store.UpdateAPIKeyLastUsed(ctx, keyID); err != nil && a.logger != nil {
			a.logger.Warn("update key last_used_at failed",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}(matched.ID)

	return id, nil
}

// Chain tries each Authenticator in order and returns the first identity.
type Chain []Authenticator

// Authenticate implements Authenticator.
func (c Chain) Authenticate(r *http.Request) (*model.Identity, error) {
	var lastErr error = ErrNoCredentials
	for _, a := range c {
		id, err := a.Authenticate(r)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			lastErr = err
		}
	}
	return nil, lastErr
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}
