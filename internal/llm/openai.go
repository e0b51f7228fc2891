package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Euri OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.euron.one/api/v1/euri"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4.1-nano"
)

// ErrMissingAPIKey is returned by NewOpenAIProvider when no key is given.
var ErrMissingAPIKey = errors.New("llm: API key is required")

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIProvider calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature *float64
	client      *http.Client
}

// Option configures an OpenAIProvider.
type Option func(*OpenAIProvider)

// WithBaseURL overrides the endpoint root (without /chat/completions).
func WithBaseURL(u string) Option {
	return func(p *OpenAIProvider) {
		if u != "" {
			p.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel overrides the model name.
func WithModel(m string) Option {
	return func(p *OpenAIProvider) {
		if m != "" {
			p.model = m
		}
	}
}

// WithMaxTokens sets max_tokens on each request. Zero leaves it to the server.
func WithMaxTokens(n int) Option {
	return func(p *OpenAIProvider) { p.maxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(p *OpenAIProvider) { p.temperature = &t }
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *OpenAIProvider) { p.client = &http.Client{Timeout: d} }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *OpenAIProvider) { p.client = c }
}

// NewOpenAIProvider returns a provider authenticated with apiKey.
func NewOpenAIProvider(apiKey string, opts ...Option) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	p := &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string { return p.model }

// Generate wraps prompt in a single user message and returns the reply.
// Transport failures, non-2xx statuses and API error objects are errors; a
// 2xx body without a usable choice comes back with Content empty and Raw set.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (*Completion, error) {
	reqBody := chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("model api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	out := &Completion{Raw: string(bodyBytes)}
	var chatResp chatResponse
	if err := json.Unmarshal(bodyBytes, &chatResp); err != nil {
		return out, nil
	}
	if chatResp.Error != nil {
		return nil, fmt.Errorf("model api returned error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) > 0 {
		out.Content = chatResp.Choices[0].Message.Content
	}
	return out, nil
}
