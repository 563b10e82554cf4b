// Package service provides business logic for the application.
package service

import (
	"errors"

	"github.com/recast/recast/internal/generation"
)

// Service errors.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrScrapeFailed   = errors.New("failed to scrape URL content")
	ErrQuotaExceeded  = errors.New("monthly usage limit reached")
	ErrNotConfigured  = generation.ErrNotConfigured
	ErrEmailTaken     = errors.New("user already exists")
	ErrInvalidLogin   = errors.New("invalid email or password")
	ErrKeyNotFound    = errors.New("api key not found")
	ErrTooManyAPIKeys = errors.New("api key limit reached")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is match ErrBadRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
