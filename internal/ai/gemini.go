package ai

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient calls the Generative Language generateContent endpoint with an
// API key.
type GeminiClient struct {
	config *ClientConfig
	http   *http.Client
}

func NewGeminiClient(config *ClientConfig) *GeminiClient {
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultGeminiBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	return &GeminiClient{
		config: config,
		http:   newHTTPClient(config),
	}
}

type geminiRequest struct {
	Contents []*genai.Content `json:"contents"`
}

// SendChat flattens every message into a user turn, since this mapping does
// not carry a system role, and posts them to :generateContent.
func (c *GeminiClient) SendChat(ctx context.Context, messages []Message, model string) ([]byte, error) {
	if model == "" {
		model = c.config.Model
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}

	return postJSON(ctx, c.http, c.endpoint(model), geminiRequest{Contents: contents}, nil)
}

func (c *GeminiClient) ExtractText(raw []byte) string {
	return Normalize(ProviderGemini, raw)
}

func (c *GeminiClient) Provider() Provider { return ProviderGemini }

func (c *GeminiClient) DefaultModel() string { return c.config.Model }

func (c *GeminiClient) endpoint(model string) string {
	return strings.TrimRight(c.config.BaseURL, "/") +
		"/models/" + model + ":generateContent?key=" + url.QueryEscape(c.config.APIKey)
}
