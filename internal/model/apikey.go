// Package model defines domain entities for the application.
package model

import "time"

// Identity methods describe how a request was authenticated.
const (
	AuthMethodSession = "session"
	AuthMethodAPIKey  = "api_key"
)

// RateLimitConfig defines rate limit parameters per plan.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// PlanRateLimits maps plans to their repurpose rate limits.
var PlanRateLimits = map[string]RateLimitConfig{
	PlanFree: {RequestsPerMinute: 10, Burst: 3},
	PlanPro:  {RequestsPerMinute: 60, Burst: 10},
}

// RateLimitFor returns the rate limit for a plan, defaulting to free.
func RateLimitFor(plan string) RateLimitConfig {
	if cfg, ok := PlanRateLimits[plan]; ok {
		return cfg
	}
	return PlanRateLimits[PlanFree]
}

// APIKey represents a personal API key for non-browser clients.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	KeyHash    string     `json:"-"` // Never serialize
	KeyPrefix  string     `json:"key_prefix"`
	Name       string     `json:"name,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// Identity is the authenticated caller of a request.
// It is injected into the request context by the auth middleware.
type Identity struct {
	UserID string
	Email  string
	Plan   string
	Method string // AuthMethodSession or AuthMethodAPIKey
	KeyID  string // Set only for AuthMethodAPIKey
}

// APIKeyCreateRequest represents a request to create a new API key.
type APIKeyCreateRequest struct {
	Name string `json:"name,omitempty"`
}

// APIKeyResponse represents the response for an API key (without secrets).
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	KeyPrefix  string     `json:"key_prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Revoked    bool       `json:"revoked"`
}

// ToResponse converts an APIKey to APIKeyResponse.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		Revoked:    k.IsRevoked(),
	}
}

// APIKeyCreateResponse includes the plaintext key (shown only once).
type APIKeyCreateResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"` // Plaintext - display once only!
	Name      string    `json:"name,omitempty"`
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}
