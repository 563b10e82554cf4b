package dto

import "github.com/recast/recast/internal/model"

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login.
type SessionResponse struct {
	Message string             `json:"message"`
	User    model.UserResponse `json:"user"`
}

// MeResponse describes the caller and their current month's usage.
type MeResponse struct {
	User         model.UserResponse `json:"user"`
	AuthMethod   string             `json:"auth_method"`
	MonthlyLimit int64              `json:"monthly_limit,omitempty"`
}

// JobListResponse is returned by GET /api/jobs.
type JobListResponse struct {
	Data []*model.ContentJob `json:"data"`
}

// APIKeyListResponse is returned by GET /api/keys.
type APIKeyListResponse struct {
	Data []model.APIKeyResponse `json:"data"`
}
