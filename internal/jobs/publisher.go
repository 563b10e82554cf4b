package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/metrics"
)

const (
	// StreamKey is the Redis stream for content jobs.
	StreamKey = "stream:content_jobs"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:content_jobs:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 50000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 500 * time.Millisecond
)

// Publisher enqueues content jobs to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new content job publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "jobs.publisher"),
		metrics: recorder,
	}
}

// Publish adds a content job to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, job Payload) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged and counted, never returned.
func (p *Publisher) PublishAsync(job Payload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, job)
		if err != nil {
			p.logger.Warn("failed to publish content job",
				"user_id", job.UserID,
				"error", err,
			)
			p.metrics.IncJobPublished("dropped")
			return
		}

		p.logger.Debug("content job published",
			"user_id", job.UserID,
			"stream_id", streamID,
		)
		p.metrics.IncJobPublished("success")
	}()
}
