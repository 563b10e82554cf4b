package generation

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = openai.GPT4o

// OpenAIConfig configures the OpenAI chat completions provider.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // Optional, for compatible gateways
	Temperature float32
	HTTPClient  *http.Client
}

// OpenAIProvider generates text with the chat completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	configured  bool
}

// NewOpenAIProvider creates an OpenAI-backed provider. An empty API key
// yields a provider that reports ErrNotConfigured on every call.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
		configured:  cfg.APIKey != "",
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Configured reports whether an API key is set.
func (p *OpenAIProvider) Configured() bool { return p.configured }

// Generate sends the platform instruction as the system message and the
// content as the user message.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	if !p.configured {
		return "", ErrNotConfigured
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.Config.SystemPrompt(req.InputType),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Content,
			},
		},
		MaxTokens:   req.Config.MaxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", p.wrapError(req, err)
	}

	if len(resp.Choices) == 0 {
		return "", &GenerationError{
			Provider: ProviderOpenAI,
			Platform: string(req.Config.Platform),
			Message:  "no choices returned",
		}
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) wrapError(req Request, err error) error {
	genErr := &GenerationError{
		Provider: ProviderOpenAI,
		Platform: string(req.Config.Platform),
		Message:  err.Error(),
		Err:      err,
	}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		genErr.Status = apiErr.HTTPStatusCode
		genErr.Message = apiErr.Message
	case errors.As(err, &reqErr):
		genErr.Status = reqErr.HTTPStatusCode
	}
	return genErr
}
