package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recast/recast/internal/generation"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/prompt"
	"github.com/recast/recast/internal/scraper"
)

var testIdentity = &model.Identity{UserID: "u1", Email: "u1@example.com", Plan: model.PlanFree, Method: model.AuthMethodSession}

type fixture struct {
	svc      *RepurposeService
	provider *scriptedProvider
	fetcher  *fakeFetcher
	users    *fakeUsers
	jobs     *capturePublisher
	metrics  *metrics.InMemoryRecorder
}

func newFixture(t *testing.T, cfg RepurposeConfig, opts ...generation.ClientOption) *fixture {
	t.Helper()
	f := &fixture{
		provider: defaultProvider(),
		fetcher:  &fakeFetcher{text: "Scraped article body"},
		users: newFakeUsers(&model.User{
			ID:          "u1",
			Plan:        model.PlanFree,
			UsagePeriod: model.UsagePeriodFor(time.Now()),
		}),
		jobs:    &capturePublisher{},
		metrics: metrics.NewInMemory(),
	}
	client := generation.NewClient(f.provider, discardLogger(), opts...)
	f.svc = NewRepurposeService(f.fetcher, client, f.users, f.jobs, discardLogger(), f.metrics, cfg)
	return f
}

func TestRepurpose_InputTypeScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "Our Q3 revenue grew 40%...",
		InputType: "blog-article",
	})
	require.NoError(t, err)

	assert.Equal(t, ShapeInputType, res.Shape)
	assert.Equal(t, []prompt.Platform{prompt.Twitter, prompt.LinkedIn, prompt.Instagram}, res.TargetPlatforms)
	assert.Empty(t, res.Errors)

	tw := res.Outputs[prompt.Twitter]
	require.Len(t, tw.Posts, 3)
	for _, post := range tw.Posts {
		assert.NotEmpty(t, post)
		assert.LessOrEqual(t, utf8.RuneCountInString(post), 280)
	}
	assert.NotEmpty(t, res.Outputs[prompt.LinkedIn].Text)
	assert.NotEmpty(t, res.Outputs[prompt.Instagram].Text)

	assert.Equal(t, 1, f.users.incrementCount())
	assert.Equal(t, uint64(1), f.metrics.Snapshot().RepurposeRequests["success"])

	published := f.jobs.published()
	require.Len(t, published, 1)
	assert.Equal(t, model.SourceText, published[0].SourceKind)
	assert.Equal(t, []string{"twitter", "linkedin", "instagram"}, published[0].Platforms)
	assert.Equal(t, "u1", published[0].UserID)
}

func TestRepurpose_TargetsFollowInputType(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "A post",
		InputType: "linkedin-post",
	})
	require.NoError(t, err)
	assert.Equal(t, []prompt.Platform{prompt.Twitter, prompt.Instagram}, res.TargetPlatforms)
	assert.Len(t, res.Outputs, 2)
	assert.Equal(t, int64(2), f.provider.calls.Load())
}

func TestRepurpose_Unauthorized(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})

	_, err := f.svc.Repurpose(context.Background(), nil, RepurposeInput{Text: "x", InputType: "blog-article"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.fetcher.calls.Load())
	assert.Zero(t, f.provider.calls.Load())
}

func TestRepurpose_BadRequestMakesNoCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   RepurposeInput
	}{
		{"empty", RepurposeInput{}},
		{"no text or url", RepurposeInput{InputType: "blog-article"}},
		{"url without input type", RepurposeInput{URL: "https://example.com/article"}},
		{"no content", RepurposeInput{Platforms: []string{"twitter"}}},
		{"blank content", RepurposeInput{Content: "   ", Platforms: []string{"twitter"}}},
		{"no platforms", RepurposeInput{Content: "hello", Platforms: []string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, RepurposeConfig{})

			_, err := f.svc.Repurpose(context.Background(), testIdentity, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadRequest)
			assert.Zero(t, f.fetcher.calls.Load())
			assert.Zero(t, f.provider.calls.Load())
			assert.Zero(t, f.users.incrementCount())
		})
	}
}

func TestRepurpose_ScrapeFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})
	f.fetcher.err = &scraper.FetchError{URL: "https://example.com/article", Reason: "network error", Err: errors.New("dial tcp: refused")}

	_, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		URL:       "https://example.com/article",
		InputType: "blog-article",
	})
	assert.ErrorIs(t, err, ErrScrapeFailed)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, int64(1), f.fetcher.calls.Load())
	assert.Zero(t, f.provider.calls.Load())
	assert.Empty(t, f.jobs.published())
}

func TestRepurpose_URLTakesPrecedence(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})

	_, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "ignored",
		URL:       "https://example.com/post?token=secret",
		InputType: "general-content",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.fetcher.calls.Load())

	published := f.jobs.published()
	require.Len(t, published, 1)
	assert.Equal(t, model.SourceURL, published[0].SourceKind)
	assert.Equal(t, utf8.RuneCountInString("Scraped article body"), published[0].SourceChars)
}

func TestRepurpose_EmptyScrapeIsBadRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})
	f.fetcher.text = "   "

	_, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		URL:       "https://example.com/empty",
		InputType: "blog-article",
	})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Zero(t, f.provider.calls.Load())
}

func TestRepurpose_PlatformsShapeWithUnsupported(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Content:   "Launch notes",
		Platforms: []string{"twitter", "bogus"},
	})
	require.NoError(t, err)

	assert.Equal(t, ShapePlatforms, res.Shape)
	assert.NotEmpty(t, res.Outputs[prompt.Twitter].Text)
	assert.NotContains(t, res.Outputs, prompt.Platform("bogus"))
	assert.Contains(t, res.Errors["bogus"], "unsupported platform")
	// Only the supported platform reached the provider.
	assert.Equal(t, int64(1), f.provider.calls.Load())
	assert.Equal(t, uint64(1), f.metrics.Snapshot().RepurposeRequests["partial"])
}

func TestRepurpose_ResultKeysSubsetOfRequested(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Content:   "Hello",
		Platforms: []string{" LinkedIn ", "linkedin", "tiktok"},
	})
	require.NoError(t, err)

	requested := map[string]bool{"linkedin": true, "tiktok": true}
	assert.Len(t, res.TargetPlatforms, 2)
	for p := range res.Outputs {
		assert.True(t, requested[string(p)], "unexpected output key %s", p)
	}
	for p := range res.Errors {
		assert.True(t, requested[p], "unexpected error key %s", p)
		_, dup := res.Outputs[prompt.Platform(p)]
		assert.False(t, dup, "platform %s reported as both output and error", p)
	}
}

func TestRepurpose_PerPlatformFailureIsolated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})
	f.provider.errs = map[prompt.Platform]error{
		prompt.LinkedIn: &generation.GenerationError{Provider: "scripted", Platform: "linkedin", Status: http.StatusInternalServerError, Message: "model crashed"},
	}

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "content",
		InputType: "youtube-transcript",
	})
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 2)
	assert.Equal(t, "model crashed", res.Errors["linkedin"])
	assert.Equal(t, 1, f.users.incrementCount())
}

func TestRepurpose_AllFailedDoesNotCountUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})
	f.provider.errs = map[prompt.Platform]error{
		prompt.Twitter:   errUpstream,
		prompt.LinkedIn:  errUpstream,
		prompt.Instagram: errUpstream,
	}

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "content",
		InputType: "blog-article",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Outputs)
	assert.Len(t, res.Errors, 3)
	assert.Zero(t, f.users.incrementCount())
	assert.Equal(t, uint64(1), f.metrics.Snapshot().RepurposeRequests["failed"])
}

func TestRepurpose_NotConfigured(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})
	f.provider.configured = false

	_, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "content",
		InputType: "blog-article",
	})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, f.provider.calls.Load())
}

func TestRepurpose_UsageFailureIsBestEffort(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{})
	f.users.incErr = errors.New("db down")

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "content",
		InputType: "twitter-post",
	})
	require.NoError(t, err)
	assert.Len(t, res.Outputs, 2)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().UsageUpdateFailures)
}

func TestRepurpose_Quota(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{FreeMonthlyLimit: 2})
	in := RepurposeInput{Text: "content", InputType: "twitter-post"}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Repurpose(context.Background(), testIdentity, in)
		require.NoError(t, err)
	}

	_, err := f.svc.Repurpose(context.Background(), testIdentity, in)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Pro users are not limited.
	f.users.users["u1"].Plan = model.PlanPro
	_, err = f.svc.Repurpose(context.Background(), testIdentity, in)
	assert.NoError(t, err)
}

func TestRepurpose_DegradedFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, RepurposeConfig{}, generation.WithFallback(generation.NewTemplateProvider()))
	f.provider.errs = map[prompt.Platform]error{
		prompt.Instagram: &generation.GenerationError{Provider: "scripted", Status: http.StatusServiceUnavailable, Message: "model is loading"},
	}

	res, err := f.svc.Repurpose(context.Background(), testIdentity, RepurposeInput{
		Text:      "content",
		InputType: "blog-article",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []prompt.Platform{prompt.Instagram}, res.Degraded)
	assert.True(t, res.Outputs[prompt.Instagram].Degraded)

	published := f.jobs.published()
	require.Len(t, published, 1)
	assert.True(t, published[0].Degraded)
}

func TestHostOnly(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example.com", hostOnly("https://example.com/a?token=x"))
	assert.Equal(t, "", hostOnly("::not a url"))
}
