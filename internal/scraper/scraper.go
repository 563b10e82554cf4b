// Package scraper fetches a web page and extracts its main text content.
package scraper

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/recast/recast/internal/metrics"
)

// DefaultMaxBytes is the default response body limit.
const DefaultMaxBytes = 5 << 20

// removedSelector lists elements stripped before extraction.
const removedSelector = "script, style, noscript, nav, header, footer, aside"

// contentSelectors are tried in order; the first non-empty text wins.
var contentSelectors = []string{
	"article",
	`[role="main"]`,
	".content",
	"#content",
	"main",
	"body",
}

// ErrFetch is matched by every *FetchError.
var ErrFetch = errors.New("fetch failed")

// FetchError reports why a URL could not be turned into text.
type FetchError struct {
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Cache stores extracted text keyed by URL hash.
type Cache interface {
	GetScrape(ctx context.Context, key string) (string, bool)
	SetScrape(ctx context.Context, key, text string, ttl time.Duration) error
}

// Fetcher retrieves URLs and extracts readable text.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache enables caching of extracted text. A zero ttl disables it.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		if c != nil && ttl > 0 {
			f.cache = c
			f.cacheTTL = ttl
		}
	}
}

// WithMaxBytes overrides the response body limit.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(f *Fetcher) {
		if recorder != nil {
			f.metrics = recorder
		}
	}
}

// New creates a Fetcher. A nil client uses a guarded NewHTTPClient(DefaultTimeout, false).
func New(client *http.Client, logger *slog.Logger, opts ...Option) *Fetcher {
	if client == nil {
		client = NewHTTPClient(DefaultTimeout, false)
	}
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		client:   client,
		maxBytes: DefaultMaxBytes,
		logger:   logger.With("component", "scraper"),
		metrics:  metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL and returns its main text content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target, err := validateURL(rawURL)
	if err != nil {
		f.metrics.IncScrape("invalid")
		return "", err
	}

	cacheKey := hashURL(target)
	if f.cache != nil {
		if text, ok := f.cache.GetScrape(ctx, cacheKey); ok {
			f.metrics.IncScrape("cache_hit")
			return text, nil
		}
	}

	start := time.Now()
	text, err := f.fetch(ctx, target)
	if err != nil {
		f.metrics.IncScrape("failed")
		f.logger.Warn("fetch failed",
			"host", hostOf(target),
			"error", err,
		)
		return "", err
	}

	f.metrics.IncScrape("success")
	f.logger.Debug("fetch succeeded",
		"host", hostOf(target),
		"chars", len(text),
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	if f.cache != nil {
		if err := f.cache.SetScrape(ctx, cacheKey, text, f.cacheTTL); err != nil {
			f.logger.Warn("failed to cache scraped content", "error", err)
		}
	}

	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &FetchError{URL: target, Reason: "build request", Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: target, Reason: "network error", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: target, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	mediaType := "text/html"
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return "", &FetchError{URL: target, Reason: "invalid content type", Err: err}
		}
		mediaType = parsed
	}

	isHTML := mediaType == "text/html" || mediaType == "application/xhtml+xml"
	if !isHTML && !strings.HasPrefix(mediaType, "text/") {
		return "", &FetchError{URL: target, Reason: "non-text content type " + mediaType}
	}
	if resp.ContentLength > f.maxBytes {
		return "", &FetchError{URL: target, Reason: "response too large"}
	}

	// One byte past the limit tells an oversized body from one that fits exactly.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return "", &FetchError{URL: target, Reason: "read body", Err: err}
	}
	if int64(len(raw)) > f.maxBytes {
		return "", &FetchError{URL: target, Reason: "response too large"}
	}

	var text string
	if isHTML {
		text, err = ExtractText(bytes.NewReader(raw))
		if err != nil {
			return "", &FetchError{URL: target, Reason: "parse html", Err: err}
		}
	} else {
		text = normalizeSpace(string(raw))
	}

	if text == "" {
		return "", &FetchError{URL: target, Reason: "no readable content"}
	}
	return text, nil
}

// ExtractText parses HTML and returns the best-guess main content text.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	doc.Find(removedSelector).Remove()

	for _, selector := range contentSelectors {
		text := normalizeSpace(doc.Find(selector).Text())
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// normalizeSpace collapses runs of spaces and tabs, keeps single blank
// lines between blocks and trims the result.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{URL: raw, Reason: "invalid url", Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &FetchError{URL: raw, Reason: "unsupported scheme"}
	}
	if parsed.Hostname() == "" {
		return "", &FetchError{URL: raw, Reason: "missing host"}
	}
	if isLocalHostname(parsed.Hostname()) {
		return "", &FetchError{URL: raw, Reason: "host not allowed", Err: ErrBlockedAddress}
	}
	parsed.Fragment = ""
	return parsed.String(), nil
}

func hashURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:16])
}

func hostOf(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return parsed.Host
}
