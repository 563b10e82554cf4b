// Package generation turns source content into platform-specific text by
// delegating to an external text-generation provider.
package generation

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/recast/recast/internal/prompt"
)

// Provider names accepted by configuration.
const (
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
	ProviderTemplate    = "template"
)

// Request is a single provider call.
type Request struct {
	Content   string
	InputType string
	Config    prompt.Config
}

// Provider generates raw text for one platform.
type Provider interface {
	Name() string
	// Configured reports whether the provider has the credentials it needs.
	Configured() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Registry holds the available providers by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name.
func (r *Registry) Register(p Provider) {
	r.providers[strings.ToLower(p.Name())] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownProviderError reports a provider name nothing is registered under.
type UnknownProviderError struct {
	Name  string
	Known []string
}

func (e *UnknownProviderError) Error() string {
	return "unknown generation provider " + strconv.Quote(e.Name) + " (known: " + strings.Join(e.Known, ", ") + ")"
}
