package generation

import (
	"context"
	"strings"
	"unicode/utf8"
)

// TemplateProvider is the degraded-mode strategy: it returns the source
// content with the platform's fixed hashtags appended. It performs no
// network calls and never fails.
type TemplateProvider struct{}

// NewTemplateProvider creates a TemplateProvider.
func NewTemplateProvider() *TemplateProvider { return &TemplateProvider{} }

// Name returns the provider name.
func (TemplateProvider) Name() string { return ProviderTemplate }

// Configured always reports true.
func (TemplateProvider) Configured() bool { return true }

// Generate appends hashtags to the content, shortening the content so the
// hashtags survive the platform limit.
func (TemplateProvider) Generate(_ context.Context, req Request) (string, error) {
	content := strings.TrimSpace(req.Content)
	tags := strings.Join(req.Config.Hashtags, " ")
	if tags == "" {
		return content, nil
	}

	suffix := "\n\n" + tags
	if limit := req.Config.MaxLength; limit > 0 {
		room := limit - utf8.RuneCountInString(suffix)
		if room > 0 {
			content = Truncate(content, room)
		}
	}
	return content + suffix, nil
}
