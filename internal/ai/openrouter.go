package ai

import (
	"context"
	"net/http"
	"strings"
)

const (
	openRouterMaxTokens   = 4000
	openRouterTemperature = 0.7
)

// OpenRouterClient speaks the OpenAI-compatible chat-completion API that
// OpenRouter exposes.
type OpenRouterClient struct {
	config *ClientConfig
	http   *http.Client
}

func NewOpenRouterClient(config *ClientConfig) *OpenRouterClient {
	if config.Model == "" {
		config.Model = DefaultOpenRouterModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenRouterBaseURL
	}
	if config.Referer == "" {
		config.Referer = DefaultReferer
	}
	if config.Title == "" {
		config.Title = DefaultTitle
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &OpenRouterClient{
		config: config,
		http:   newHTTPClient(config),
	}
}

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// SendChat posts messages to {base}/chat/completions and returns the raw body.
func (c *OpenRouterClient) SendChat(ctx context.Context, messages []Message, model string) ([]byte, error) {
	if model == "" {
		model = c.config.Model
	}

	payload := openRouterRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   openRouterMaxTokens,
		Temperature: openRouterTemperature,
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	return postJSON(ctx, c.http, url, payload, c.headers())
}

func (c *OpenRouterClient) ExtractText(raw []byte) string {
	return Normalize(ProviderOpenRouter, raw)
}

func (c *OpenRouterClient) Provider() Provider { return ProviderOpenRouter }

func (c *OpenRouterClient) DefaultModel() string { return c.config.Model }

// headers sets auth and the app identification OpenRouter uses for rankings.
func (c *OpenRouterClient) headers() http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+c.config.APIKey)
	h.Set("HTTP-Referer", c.config.Referer)
	h.Set("X-Title", c.config.Title)
	return h
}
