package model

import "time"

// Source kinds for content jobs.
const (
	SourceText = "text"
	SourceURL  = "url"
)

// ContentJob is the durable record of one repurpose call.
type ContentJob struct {
	ID              string            `json:"id"`       // ULID
	EventID         string            `json:"-"`        // Redis stream ID, idempotency key
	UserID          string            `json:"user_id"`
	InputType       string            `json:"input_type,omitempty"`
	SourceKind      string            `json:"source_kind"`
	SourceURL       string            `json:"source_url,omitempty"`
	SourceChars     int               `json:"source_chars"`
	TargetPlatforms []string          `json:"target_platforms"`
	Generated       map[string]string `json:"generated"`
	Errors          map[string]string `json:"errors,omitempty"`
	Degraded        bool              `json:"degraded"`
	CreatedAt       time.Time         `json:"created_at"`
}
