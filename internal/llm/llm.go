// Package llm talks to chat completion endpoints. Every provider takes an ordered list of
// role/content messages and returns the assistant reply text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

// Provider names accepted by New
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// NoResponseText replaces an empty reply from the model
const NoResponseText = "No response from model"

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoMessages      = errors.New("no messages to send")
)

// Message is one role-tagged entry in a completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends a conversation to a model and returns the reply text
type Completer interface {
	Complete(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error)
	Name() string
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error) {
	return f(ctx, apiKey, messages, temperature)
}

func (f CompleterFunc) Name() string { return "func" }

// APIError is a non-2xx response from a completion endpoint
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.StatusCode == 0 {
		return msg
	}
	return fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
}

var authPhrases = []string{"authentication", "api key", "unauthorized"}

// IsAuthError reports whether err means the credential was missing or rejected.
// HTTP 401 always qualifies; anything else is classified by its message.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range authPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// Config selects and configures a provider
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	MaxTokens  int64 // Used by providers that require an explicit output limit
	HTTPClient *http.Client
}

// DefaultModel returns the model used when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOllama:
		return "llama3.2:latest"
	case ProviderAnthropic:
		return "claude-sonnet-4-5"
	default:
		return "gpt-4"
	}
}

// New creates the Completer for cfg.Provider. An empty provider selects OpenAI.
func New(cfg Config) (Completer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	cfg.HTTPClient = httpClientOrDefault(cfg.HTTPClient)

	logging.WithComponent("llm").Info("Creating completion client",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"base_url", cfg.BaseURL,
	)

	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderOllama:
		return NewOllama(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// RequiresKey reports whether the provider needs an API key to be configured
func RequiresKey(provider string) bool {
	return provider != ProviderOllama
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 120 * time.Second}
}

func replyOrPlaceholder(text string) string {
	if strings.TrimSpace(text) == "" {
		return NoResponseText
	}
	return text
}
