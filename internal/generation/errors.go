package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotConfigured indicates the selected provider has no credentials.
	ErrNotConfigured = errors.New("generation provider not configured")
	// ErrGeneration is matched by every *GenerationError.
	ErrGeneration = errors.New("generation failed")
)

// GenerationError carries the upstream failure of a single generation call.
type GenerationError struct {
	Provider string
	Platform string
	Status   int    // Upstream HTTP status, 0 if none
	Message  string // Upstream or local failure message
	Err      error
}

func (e *GenerationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s generation", e.Provider)
	if e.Platform != "" {
		fmt.Fprintf(&b, " for %s", e.Platform)
	}
	b.WriteString(" failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrGeneration.
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// transientMarkers are upstream message fragments that indicate the model
// is temporarily unavailable rather than the request being wrong.
var transientMarkers = []string{"paused", "loading", "overloaded", "rate limit"}

// IsTransient reports whether err looks like a temporary upstream outage.
// Only these failures are eligible for the template fallback.
func IsTransient(err error) bool {
	var ge *GenerationError
	if !errors.As(err, &ge) {
		return false
	}
	switch ge.Status {
	case http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	msg := strings.ToLower(ge.Message)
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
