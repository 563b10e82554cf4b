package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
)

// ConsumerGroup is the Redis consumer group shared by all job recorders.
const ConsumerGroup = "content_job_workers"

// Job outcome labels reported through metrics.Recorder.IncJobProcessed.
const (
	OutcomeRecorded     = "recorded"
	OutcomeAbandoned    = "abandoned"
	OutcomeDeadLettered = "dead_lettered"
)

const (
	deadLetterMaxLen = 10000
	maxRetryDelay    = 30 * time.Second
)

// Repository persists content jobs.
type Repository interface {
	BulkInsert(ctx context.Context, jobs []*model.ContentJob) error
}

// WorkerConfig tunes a Worker. Zero fields take the defaults.
type WorkerConfig struct {
	BatchSize    int           // jobs per XREADGROUP, default 100
	BlockTimeout time.Duration // default 5s
	MaxAttempts  int           // insert attempts per batch, default 3
	RetryBase    time.Duration // first retry delay, doubled per attempt, default 1s
	ReclaimEvery time.Duration // how often to look for stalled jobs, default 10s
	ReclaimIdle  time.Duration // pending age before a job is taken over, default 30s
	DepthEvery   time.Duration // queue depth gauge refresh, default 5s
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.ReclaimEvery <= 0 {
		c.ReclaimEvery = 10 * time.Second
	}
	if c.ReclaimIdle <= 0 {
		c.ReclaimIdle = 30 * time.Second
	}
	if c.DepthEvery <= 0 {
		c.DepthEvery = 5 * time.Second
	}
	return c
}

// Worker records content jobs published on the job stream into the
// repository. Jobs are acknowledged only after they are stored, so a crash
// leaves them pending for another consumer to reclaim.
type Worker struct {
	redis      *redis.Client
	repo       Repository
	logger     *slog.Logger
	metrics    metrics.Recorder
	consumerID string
	cfg        WorkerConfig

	reclaimCursor string
	lastReclaim   time.Time
	lastDepth     time.Time

	mu       sync.Mutex
	running  bool
	stopping bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker creates a job recorder for the given consumer.
func NewWorker(client *redis.Client, repo Repository, logger *slog.Logger, consumerID string, recorder metrics.Recorder, cfg WorkerConfig) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:         client,
		repo:          repo,
		logger:        logger.With("component", "jobs.worker", "consumer_id", consumerID),
		metrics:       recorder,
		consumerID:    consumerID,
		cfg:           cfg.withDefaults(),
		reclaimCursor: "0-0",
	}
}

// Run records jobs until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("job worker already running")
	}
	w.running = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()
	defer close(w.done)

	if err := w.joinGroup(ctx); err != nil {
		return fmt.Errorf("join consumer group: %w", err)
	}
	w.logger.Info("job worker started", "batch_size", w.cfg.BatchSize)

	for !w.isStopping() {
		if ctx.Err() != nil {
			w.logger.Info("job worker stopping")
			return ctx.Err()
		}
		err := w.recordNext(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		w.logger.Error("recording content jobs failed", "error", err)
		w.pause(ctx, time.Second)
	}
	w.logger.Info("job worker drained")
	return nil
}

// Shutdown stops the worker after its in-flight batch and waits for Run to
// return or ctx to expire. It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.stopping = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	w.logger.Info("job worker shutdown initiated")
	cancel()

	select {
	case <-done:
		w.logger.Info("job worker shutdown complete")
		return nil
	case <-ctx.Done():
		w.logger.Warn("job worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) isStopping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

func (w *Worker) joinGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isBusyGroup(err) {
		return err
	}
	return nil
}

// recordNext stores one batch: stalled jobs first, then new ones.
func (w *Worker) recordNext(ctx context.Context) error {
	w.refreshDepth(ctx)

	messages, err := w.reclaimStalled(ctx)
	if err != nil {
		w.logger.Warn("reclaiming stalled jobs failed", "error", err)
	}
	if len(messages) == 0 {
		if messages, err = w.fetchNew(ctx); err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	jobs, ids := w.decodeJobs(ctx, messages)
	if len(jobs) > 0 {
		if err := w.storeWithRetry(ctx, jobs); err != nil {
			// Left pending; reclaimStalled picks them up after ReclaimIdle.
			return err
		}
	}
	return w.ack(ctx, ids)
}

// reclaimStalled takes over jobs another consumer read but never acked.
func (w *Worker) reclaimStalled(ctx context.Context) ([]redis.XMessage, error) {
	if !w.lastReclaim.IsZero() && time.Since(w.lastReclaim) < w.cfg.ReclaimEvery {
		return nil, nil
	}
	w.lastReclaim = time.Now()

	messages, cursor, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.cfg.ReclaimIdle,
		Start:    w.reclaimCursor,
		Count:    int64(w.cfg.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if cursor != "" {
		w.reclaimCursor = cursor
	}
	if len(messages) > 0 {
		w.logger.Info("reclaimed stalled content jobs", "count", len(messages))
	}
	return messages, nil
}

func (w *Worker) fetchNew(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.cfg.BatchSize),
		Block:    w.cfg.BlockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

func (w *Worker) refreshDepth(ctx context.Context) {
	if !w.lastDepth.IsZero() && time.Since(w.lastDepth) < w.cfg.DepthEvery {
		return
	}
	w.lastDepth = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			w.logger.Warn("reading job queue depth failed", "error", err)
		}
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetJobQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

// decodeJobs returns the decodable jobs and every message ID in the batch.
// Undecodable messages are dead-lettered and still acked.
func (w *Worker) decodeJobs(ctx context.Context, messages []redis.XMessage) ([]*model.ContentJob, []string) {
	jobs := make([]*model.ContentJob, 0, len(messages))
	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
		job, reason, err := decodeMessage(msg)
		if err != nil {
			w.deadLetter(ctx, msg, reason, err)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, ids
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string, cause error) {
	w.logger.Warn("dead-lettering content job",
		"message_id", msg.ID,
		"reason", reason,
		"error", cause,
	)
	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: deadLetterMaxLen,
		Approx: true,
		Values: map[string]any{
			"original_id":      msg.ID,
			"original_stream":  StreamKey,
			"reason":           reason,
			"detail":           cause.Error(),
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("writing dead-letter entry failed", "message_id", msg.ID, "error", err)
	}
	w.metrics.IncJobProcessed(OutcomeDeadLettered)
}

// storeWithRetry inserts jobs, backing off between attempts. Inserts are
// idempotent on the stream ID, so a partially applied attempt is safe to repeat.
func (w *Worker) storeWithRetry(ctx context.Context, jobs []*model.ContentJob) error {
	summary := summarize(jobs)
	var err error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		if err = w.repo.BulkInsert(ctx, jobs); err == nil {
			w.logger.Info("content jobs recorded",
				"jobs", len(jobs),
				"users", summary.users,
				"degraded", summary.degraded,
				"outputs", summary.outputs,
				"duration_ms", float64(time.Since(start).Microseconds())/1000,
			)
			w.metrics.ObserveJobBatchSize(len(jobs))
			w.countOutcome(OutcomeRecorded, len(jobs))
			return nil
		}
		if attempt == w.cfg.MaxAttempts {
			break
		}
		delay := retryDelay(w.cfg.RetryBase, attempt)
		w.logger.Warn("recording content jobs failed, retrying",
			"attempt", attempt,
			"jobs", len(jobs),
			"first_event_id", jobs[0].EventID,
			"retry_in", delay,
			"error", err,
		)
		if !w.pause(ctx, delay) {
			return ctx.Err()
		}
	}
	w.logger.Error("abandoning content job batch",
		"jobs", len(jobs),
		"first_event_id", jobs[0].EventID,
		"error", err,
	)
	w.countOutcome(OutcomeAbandoned, len(jobs))
	return fmt.Errorf("bulk insert: %w", err)
}

func (w *Worker) countOutcome(outcome string, n int) {
	for range n {
		w.metrics.IncJobProcessed(outcome)
	}
}

func (w *Worker) ack(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// pause sleeps for d and reports false if ctx ended first.
func (w *Worker) pause(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type batchSummary struct {
	users    int
	degraded int
	outputs  int
}

func summarize(jobs []*model.ContentJob) batchSummary {
	users := make(map[string]struct{}, len(jobs))
	var s batchSummary
	for _, j := range jobs {
		users[j.UserID] = struct{}{}
		if j.Degraded {
			s.degraded++
		}
		s.outputs += len(j.Generated)
	}
	s.users = len(users)
	return s
}

// retryDelay doubles base per attempt, capped at maxRetryDelay.
func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxRetryDelay; i++ {
		d *= 2
	}
	return min(d, maxRetryDelay)
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
