package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHuggingFaceURL is the hosted Inference API model endpoint.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.3"

// maxErrorBody bounds how much of an upstream error body is read.
const maxErrorBody = 4 << 10

// HuggingFaceConfig configures the Inference API provider.
type HuggingFaceConfig struct {
	Token        string
	ModelURL     string
	MaxNewTokens int
	HTTPClient   *http.Client
}

// HuggingFaceProvider generates text with the Hugging Face Inference API.
type HuggingFaceProvider struct {
	token        string
	modelURL     string
	maxNewTokens int
	client       *http.Client
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

type hfError struct {
	Error string `json:"error"`
}

// NewHuggingFaceProvider creates a Hugging Face provider. An empty token
// yields a provider that reports ErrNotConfigured on every call.
func NewHuggingFaceProvider(cfg HuggingFaceConfig) *HuggingFaceProvider {
	modelURL := cfg.ModelURL
	if modelURL == "" {
		modelURL = DefaultHuggingFaceURL
	}
	maxNewTokens := cfg.MaxNewTokens
	if maxNewTokens <= 0 {
		maxNewTokens = 300
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HuggingFaceProvider{
		token:        cfg.Token,
		modelURL:     modelURL,
		maxNewTokens: maxNewTokens,
		client:       client,
	}
}

// Name returns the provider name.
func (p *HuggingFaceProvider) Name() string { return ProviderHuggingFace }

// Configured reports whether an API token is set.
func (p *HuggingFaceProvider) Configured() bool { return p.token != "" }

// Generate posts a completion-style prompt to the model endpoint.
func (p *HuggingFaceProvider) Generate(ctx context.Context, req Request) (string, error) {
	if p.token == "" {
		return "", ErrNotConfigured
	}

	platform := string(req.Config.Platform)
	inputs := req.Config.CompletionPrompt(req.Content)

	body, err := json.Marshal(hfRequest{
		Inputs: inputs,
		Parameters: hfParameters{
			MaxNewTokens:   p.maxNewTokens,
			Temperature:    0.7,
			DoSample:       true,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.modelURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", &GenerationError{Provider: ProviderHuggingFace, Platform: platform, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := http.StatusText(resp.StatusCode)
		var upstream hfError
		if json.Unmarshal(raw, &upstream) == nil && upstream.Error != "" {
			msg = upstream.Error
		}
		return "", &GenerationError{Provider: ProviderHuggingFace, Platform: platform, Status: resp.StatusCode, Message: msg}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GenerationError{Provider: ProviderHuggingFace, Platform: platform, Message: "read response", Err: err}
	}

	text, err := decodeHFResponse(raw)
	if err != nil {
		return "", &GenerationError{Provider: ProviderHuggingFace, Platform: platform, Status: resp.StatusCode, Message: err.Error()}
	}

	// Some deployments ignore return_full_text and echo the prompt.
	return strings.Replace(text, inputs, "", 1), nil
}

// decodeHFResponse accepts [{generated_text}], {generated_text} or {error}.
func decodeHFResponse(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty response")
	}

	if trimmed[0] == '[' {
		var list []hfGenerated
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("malformed response: %w", err)
		}
		if len(list) == 0 {
			return "", fmt.Errorf("malformed response: empty list")
		}
		return list[0].GeneratedText, nil
	}

	var obj struct {
		hfGenerated
		hfError
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return "", fmt.Errorf("malformed response: %w", err)
	}
	if obj.Error != "" {
		return "", fmt.Errorf("%s", obj.Error)
	}
	return obj.GeneratedText, nil
}
