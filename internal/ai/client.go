package ai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client sends a chat conversation to one LLM provider and knows how to read
// that provider's answer back out of the raw response body.
type Client interface {
	SendChat(ctx context.Context, messages []Message, model string) ([]byte, error)
	ExtractText(raw []byte) string
	Provider() Provider
	DefaultModel() string
}

// Provider is enumeration of supported AI providers
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderGemini     Provider = "gemini"
	ProviderStub       Provider = "stub"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is a role-tagged chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

const (
	DefaultTimeout           = 30 * time.Second
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "openrouter/auto"
	DefaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel       = "gemini-1.5-flash"
	DefaultReferer           = "http://localhost:8000"
	DefaultTitle             = "Test Case Generator"
)

// ErrMissingAPIKey is returned when the selected provider has no credential.
var ErrMissingAPIKey = errors.New("api key is missing")

// ClientConfig holds configuration for AI clients. It describes the selected
// provider only.
type ClientConfig struct {
	Provider      Provider
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	Referer       string
	Title         string
	SkipTLSVerify bool
}

// HTTPError is a non-2xx answer from a provider.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("provider returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, body)
}

// NewClient creates a new AI client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	// work on a copy so the caller's config is never mutated
	cfg := *config
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case ProviderOpenRouter:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY: %w", ErrMissingAPIKey)
		}
		return NewOpenRouterClient(&cfg), nil
	case ProviderGemini:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY: %w", ErrMissingAPIKey)
		}
		return NewGeminiClient(&cfg), nil
	case ProviderStub:
		return NewStubClient(cfg.Model), nil
	default:
		return nil, errors.New("unsupported provider: " + string(cfg.Provider))
	}
}

// Complete sends messages with the client's default model and returns the
// extracted answer text.
func Complete(ctx context.Context, c Client, messages []Message) (string, error) {
	raw, err := c.SendChat(ctx, messages, "")
	if err != nil {
		return "", err
	}
	return c.ExtractText(raw), nil
}

func newHTTPClient(cfg *ClientConfig) *http.Client {
	transport := &http.Transport{}
	if cfg.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// postJSON posts payload to url and returns the response body. Any status
// outside 2xx becomes an *HTTPError.
func postJSON(ctx context.Context, hc *http.Client, url string, payload any, headers http.Header) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
