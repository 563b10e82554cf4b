// Package jobs records repurpose calls as content jobs through a Redis
// stream drained into PostgreSQL.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/model"
)

const (
	maxTextPerPlatform = 16 << 10
	maxURLLength       = 2048
)

// Payload is the stream representation of one repurpose call.
type Payload struct {
	UserID      string            `json:"uid"`
	InputType   string            `json:"it,omitempty"`
	SourceKind  string            `json:"sk"`
	SourceURL   string            `json:"url,omitempty"`
	SourceChars int               `json:"sc"`
	Platforms   []string          `json:"p"`
	Generated   map[string]string `json:"g,omitempty"`
	Errors      map[string]string `json:"e,omitempty"`
	Degraded    bool              `json:"d,omitempty"`
	CreatedAt   int64             `json:"t"` // Unix milliseconds
}

// Validate checks the payload fields a worker relies on.
func (p Payload) Validate() error {
	if p.UserID == "" {
		return errors.New("uid is required")
	}
	if p.SourceKind != model.SourceText && p.SourceKind != model.SourceURL {
		return fmt.Errorf("source kind %q is invalid", p.SourceKind)
	}
	if p.SourceKind == model.SourceURL && p.SourceURL == "" {
		return errors.New("url is required for url sources")
	}
	if len(p.SourceURL) > maxURLLength {
		return errors.New("url too long")
	}
	if len(p.Platforms) == 0 {
		return errors.New("at least one platform is required")
	}
	for platform, text := range p.Generated {
		if len(text) > maxTextPerPlatform {
			return fmt.Errorf("generated text for %s too long", platform)
		}
	}
	if p.CreatedAt <= 0 {
		return errors.New("created time must be set")
	}
	return nil
}

// toContentJob builds the row for a validated payload.
// The stream message ID is the idempotency key.
func (p Payload) toContentJob(messageID string) *model.ContentJob {
	createdAt := time.UnixMilli(p.CreatedAt).UTC()
	return &model.ContentJob{
		ID:              ulid.MustNew(ulid.Timestamp(createdAt), ulid.DefaultEntropy()).String(),
		EventID:         messageID,
		UserID:          p.UserID,
		InputType:       p.InputType,
		SourceKind:      p.SourceKind,
		SourceURL:       p.SourceURL,
		SourceChars:     p.SourceChars,
		TargetPlatforms: p.Platforms,
		Generated:       p.Generated,
		Errors:          p.Errors,
		Degraded:        p.Degraded,
		CreatedAt:       createdAt,
	}
}

// decodeMessage parses a stream message. On failure it returns the
// dead-letter reason alongside the error.
func decodeMessage(msg redis.XMessage) (*model.ContentJob, string, error) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, "invalid_format", errors.New("payload field missing or not a string")
	}

	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, "unmarshal_error", err
	}
	if err := p.Validate(); err != nil {
		return nil, "validation_error", err
	}
	return p.toContentJob(msg.ID), "", nil
}
