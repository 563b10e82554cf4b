package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/prompt"
)

// Output is the post-processed result for one platform.
type Output struct {
	Platform prompt.Platform
	// Text is the full output. For multi-variant platforms the posts are
	// joined by a separator line.
	Text string
	// Posts holds each individually truncated post.
	Posts []string
	// Degraded is set when the template fallback produced the output.
	Degraded bool
}

// Client validates the platform, calls the provider and post-processes
// the result. It is safe for concurrent use.
type Client struct {
	provider Provider
	fallback Provider
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithFallback enables the degraded-mode strategy for transient upstream
// failures. Outputs produced by it are marked Degraded.
func WithFallback(p Provider) ClientOption {
	return func(c *Client) { c.fallback = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) ClientOption {
	return func(c *Client) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// NewClient creates a Client around provider.
func NewClient(provider Provider, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		provider: provider,
		logger:   logger.With("component", "generation"),
		metrics:  metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProviderName returns the primary provider's name.
func (c *Client) ProviderName() string {
	if c.provider == nil {
		return ""
	}
	return c.provider.Name()
}

// Configured reports whether the primary provider can be called.
func (c *Client) Configured() bool {
	return c.provider != nil && c.provider.Configured()
}

// Generate produces platform text for content. Unsupported platforms fail
// before any provider call.
func (c *Client) Generate(ctx context.Context, content, inputType string, platform prompt.Platform) (Output, error) {
	cfg, err := prompt.Lookup(platform)
	if err != nil {
		c.metrics.IncGeneration(string(platform), "failed")
		return Output{}, err
	}
	if !c.Configured() {
		return Output{}, ErrNotConfigured
	}

	req := Request{Content: content, InputType: inputType, Config: cfg}

	start := time.Now()
	text, err := c.call(ctx, c.provider, req)
	c.metrics.ObserveGenerationDuration(time.Since(start))

	degraded := false
	if err != nil {
		if c.fallback == nil || !IsTransient(err) {
			c.metrics.IncGeneration(string(platform), "failed")
			return Output{}, err
		}

		c.logger.Warn("primary provider unavailable, using fallback",
			"platform", platform,
			"provider", c.provider.Name(),
			"fallback", c.fallback.Name(),
			"error", err,
		)
		text, err = c.call(ctx, c.fallback, req)
		if err != nil {
			c.metrics.IncGeneration(string(platform), "failed")
			return Output{}, err
		}
		degraded = true
	}

	// Fallback text is the user's own source; separators in it are content.
	out := finish(cfg, text, !degraded)
	if len(out.Posts) == 0 {
		c.metrics.IncGeneration(string(platform), "failed")
		return Output{}, &GenerationError{
			Provider: c.provider.Name(),
			Platform: string(platform),
			Message:  "empty generated text",
		}
	}
	out.Degraded = degraded

	status := "success"
	if degraded {
		status = "degraded"
	}
	c.metrics.IncGeneration(string(platform), status)

	return out, nil
}

// call invokes p and turns an empty cleaned result into a GenerationError.
func (c *Client) call(ctx context.Context, p Provider, req Request) (string, error) {
	raw, err := p.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrGeneration) {
			return "", err
		}
		return "", &GenerationError{
			Provider: p.Name(),
			Platform: string(req.Config.Platform),
			Message:  err.Error(),
			Err:      err,
		}
	}

	text := Clean(raw)
	if text == "" {
		return "", &GenerationError{
			Provider: p.Name(),
			Platform: string(req.Config.Platform),
			Message:  "empty generated text",
		}
	}
	return text, nil
}

// finish truncates cleaned text according to cfg, splitting it into posts
// first when split is set and cfg asks for several variants.
func finish(cfg prompt.Config, text string, split bool) Output {
	var posts []string
	if split && cfg.Variants > 1 {
		posts = SplitPosts(text)
	} else {
		posts = []string{text}
	}
	for i, post := range posts {
		posts[i] = Truncate(post, cfg.MaxLength)
	}

	return Output{
		Platform: cfg.Platform,
		Text:     strings.Join(posts, "\n\n"+prompt.PostSeparator+"\n\n"),
		Posts:    posts,
	}
}
