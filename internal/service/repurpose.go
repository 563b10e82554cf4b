package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/recast/recast/internal/generation"
	"github.com/recast/recast/internal/jobs"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/prompt"
	"github.com/recast/recast/internal/repository"
)

const (
	// MaxContentChars bounds text sent to the provider.
	MaxContentChars = 20000
	// MaxRequestedPlatforms bounds the explicit platform list.
	MaxRequestedPlatforms = 10

	usageUpdateTimeout = 3 * time.Second
)

// Fetcher resolves a URL to readable text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Generator produces text for one platform.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, content, inputType string, platform prompt.Platform) (generation.Output, error)
}

// UsageStore reads users and counts their repurpose calls.
type UsageStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	IncrementUsage(ctx context.Context, userID string, now time.Time) (int64, error)
}

// JobPublisher records finished repurpose calls.
type JobPublisher interface {
	PublishAsync(job jobs.Payload)
}

// Shape identifies which request/response format a call uses.
type Shape int

const (
	// ShapeInputType is {text|url, inputType} answered with
	// twitterPosts/linkedinPost/instagramCaption.
	ShapeInputType Shape = iota
	// ShapePlatforms is {content, platforms} answered with results/errors.
	ShapePlatforms
)

// RepurposeInput is a decoded repurpose request in either shape.
type RepurposeInput struct {
	Text      string
	URL       string
	InputType string

	Content   string
	Platforms []string
}

// Shape reports which request format the input follows.
func (in RepurposeInput) Shape() Shape {
	if in.Platforms != nil || in.Content != "" {
		return ShapePlatforms
	}
	return ShapeInputType
}

// RepurposeResult holds per-platform outputs and failures.
// Every key of Outputs and Errors is one of TargetPlatforms.
type RepurposeResult struct {
	Shape           Shape
	InputType       string
	TargetPlatforms []prompt.Platform
	Outputs         map[prompt.Platform]generation.Output
	Errors          map[string]string
	Degraded        []prompt.Platform
}

// RepurposeConfig tunes the service.
type RepurposeConfig struct {
	// MaxConcurrency caps simultaneous provider calls per request.
	MaxConcurrency int
	// GenerationTimeout bounds each platform's provider call.
	GenerationTimeout time.Duration
	// FreeMonthlyLimit is the free plan's monthly quota; 0 disables it.
	FreeMonthlyLimit int64
}

// RepurposeService orchestrates content resolution, generation,
// usage accounting and job recording.
type RepurposeService struct {
	fetcher   Fetcher
	generator Generator
	users     UsageStore
	jobs      JobPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	cfg       RepurposeConfig
	now       func() time.Time
}

// NewRepurposeService creates a RepurposeService. publisher may be nil.
func NewRepurposeService(
	fetcher Fetcher,
	generator Generator,
	users UsageStore,
	publisher JobPublisher,
	logger *slog.Logger,
	recorder metrics.Recorder,
	cfg RepurposeConfig,
) *RepurposeService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = len(prompt.AllPlatforms)
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 60 * time.Second
	}
	return &RepurposeService{
		fetcher:   fetcher,
		generator: generator,
		users:     users,
		jobs:      publisher,
		logger:    logger.With("component", "repurpose"),
		metrics:   recorder,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Repurpose runs one repurpose call for the caller.
// Per-platform failures are reported in the result, not as an error.
func (s *RepurposeService) Repurpose(ctx context.Context, id *model.Identity, in RepurposeInput) (*RepurposeResult, error) {
	if id == nil || id.UserID == "" {
		return nil, ErrUnauthorized
	}

	shape := in.Shape()
	if err := validate(shape, in); err != nil {
		s.metrics.IncRepurposeRequest("invalid")
		return nil, err
	}

	if !s.generator.Configured() {
		return nil, ErrNotConfigured
	}

	if err := s.checkQuota(ctx, id); err != nil {
		return nil, err
	}

	content, sourceKind, err := s.resolveContent(ctx, shape, in)
	if err != nil {
		s.metrics.IncRepurposeRequest("invalid")
		return nil, err
	}

	var targets []prompt.Platform
	if shape == ShapePlatforms {
		targets = prompt.ParsePlatforms(in.Platforms)
	} else {
		targets = prompt.TargetsFor(in.InputType)
	}

	result := s.generateAll(ctx, content, in.InputType, targets)
	result.Shape = shape
	result.InputType = in.InputType

	status := "success"
	switch {
	case len(result.Outputs) == 0:
		status = "failed"
	case len(result.Errors) > 0:
		status = "partial"
	}
	s.metrics.IncRepurposeRequest(status)

	if len(result.Outputs) > 0 {
		s.recordUsage(ctx, id.UserID)
	}
	s.publishJob(id.UserID, in, sourceKind, content, result)

	return result, nil
}

func validate(shape Shape, in RepurposeInput) error {
	if shape == ShapePlatforms {
		if strings.TrimSpace(in.Content) == "" {
			return invalid("content", "content is required")
		}
		if len(in.Platforms) == 0 {
			return invalid("platforms", "at least one platform is required")
		}
		if len(in.Platforms) > MaxRequestedPlatforms {
			return invalid("platforms", fmt.Sprintf("at most %d platforms are allowed", MaxRequestedPlatforms))
		}
		if utf8.RuneCountInString(in.Content) > MaxContentChars {
			return invalid("content", fmt.Sprintf("content exceeds %d characters", MaxContentChars))
		}
		return nil
	}

	if strings.TrimSpace(in.InputType) == "" {
		return invalid("inputType", "input type is required")
	}
	if strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.URL) == "" {
		return invalid("text", "text or url is required")
	}
	if utf8.RuneCountInString(in.Text) > MaxContentChars {
		return invalid("text", fmt.Sprintf("text exceeds %d characters", MaxContentChars))
	}
	return nil
}

func (s *RepurposeService) checkQuota(ctx context.Context, id *model.Identity) error {
	if s.cfg.FreeMonthlyLimit <= 0 {
		return nil
	}

	user, err := s.users.GetUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("load user: %w", err)
	}
	if user.Plan == model.PlanFree && user.CurrentUsage(s.now()) >= s.cfg.FreeMonthlyLimit {
		s.metrics.IncRepurposeRequest("quota_exceeded")
		return ErrQuotaExceeded
	}
	return nil
}

// resolveContent returns the text to repurpose. A URL takes precedence
// over inline text.
func (s *RepurposeService) resolveContent(ctx context.Context, shape Shape, in RepurposeInput) (string, string, error) {
	if shape == ShapePlatforms {
		return strings.TrimSpace(in.Content), model.SourceText, nil
	}

	if target := strings.TrimSpace(in.URL); target != "" {
		text, err := s.fetcher.Fetch(ctx, target)
		if err != nil {
			s.logger.Warn("scrape failed",
				"url_host", hostOnly(target),
				"error", err,
			)
			return "", "", fmt.Errorf("%w: %w", ErrScrapeFailed, ErrBadRequest)
		}
		text = truncateRunes(strings.TrimSpace(text), MaxContentChars)
		if text == "" {
			return "", "", invalid("url", "no content provided")
		}
		return text, model.SourceURL, nil
	}

	return strings.TrimSpace(in.Text), model.SourceText, nil
}

// generateAll calls the generator for every target concurrently.
// A failure for one platform never affects the others.
func (s *RepurposeService) generateAll(ctx context.Context, content, inputType string, targets []prompt.Platform) *RepurposeResult {
	outputs := make([]generation.Output, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i, platform := range targets {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
			defer cancel()
			outputs[i], errs[i] = s.generator.Generate(pctx, content, inputType, platform)
			return nil
		})
	}
	_ = g.Wait()

	result := &RepurposeResult{
		TargetPlatforms: targets,
		Outputs:         make(map[prompt.Platform]generation.Output, len(targets)),
	}
	for i, platform := range targets {
		if err := errs[i]; err != nil {
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[string(platform)] = platformErrorMessage(err)
			s.logger.Warn("platform generation failed",
				"platform", platform,
				"error", err,
			)
			continue
		}
		result.Outputs[platform] = outputs[i]
		if outputs[i].Degraded {
			result.Degraded = append(result.Degraded, platform)
		}
	}
	return result
}

func platformErrorMessage(err error) string {
	var ge *generation.GenerationError
	switch {
	case errors.Is(err, prompt.ErrUnsupportedPlatform):
		return err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "generation timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.As(err, &ge):
		if ge.Message != "" {
			return ge.Message
		}
		return "generation failed"
	default:
		return "generation failed"
	}
}

// recordUsage increments the usage counter. Failures are only logged.
func (s *RepurposeService) recordUsage(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), usageUpdateTimeout)
	defer cancel()

	if _, err := s.users.IncrementUsage(ctx, userID, s.now()); err != nil {
		s.metrics.IncUsageUpdateFailed()
		s.logger.Error("usage update failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *RepurposeService) publishJob(userID string, in RepurposeInput, sourceKind, content string, result *RepurposeResult) {
	if s.jobs == nil {
		return
	}

	platforms := make([]string, len(result.TargetPlatforms))
	for i, p := range result.TargetPlatforms {
		platforms[i] = string(p)
	}
	generated := make(map[string]string, len(result.Outputs))
	for p, out := range result.Outputs {
		generated[string(p)] = out.Text
	}

	payload := jobs.Payload{
		UserID:      userID,
		InputType:   in.InputType,
		SourceKind:  sourceKind,
		SourceChars: utf8.RuneCountInString(content),
		Platforms:   platforms,
		Generated:   generated,
		Errors:      result.Errors,
		Degraded:    len(result.Degraded) > 0,
		CreatedAt:   s.now().UnixMilli(),
	}
	if sourceKind == model.SourceURL {
		payload.SourceURL = strings.TrimSpace(in.URL)
	}
	s.jobs.PublishAsync(payload)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// hostOnly keeps query strings, which may carry tokens, out of logs.
func hostOnly(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
