package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama is a Completer for an Ollama server's chat endpoint
type Ollama struct {
	baseURL    *url.URL
	httpClient *http.Client
	model      string
	logger     *logging.Logger
}

// NewOllama creates an Ollama provider. The API key is optional and sent as a bearer
// token when present, for servers behind an authenticating proxy.
func NewOllama(cfg Config) (*Ollama, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = defaultOllamaURL
	}
	baseURL, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL %s: %w", raw, err)
	}

	return &Ollama{
		baseURL:    baseURL,
		httpClient: httpClientOrDefault(cfg.HTTPClient),
		model:      cfg.Model,
		logger:     logging.WithComponent("llm-ollama"),
	}, nil
}

func (p *Ollama) Name() string { return ProviderOllama }

type bearerTransport struct {
	base http.RoundTripper
	key  string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.key)
	}
	return t.base.RoundTrip(req)
}

func (p *Ollama) client(apiKey string) *api.Client {
	httpClient := p.httpClient
	if apiKey != "" {
		base := http.DefaultTransport
		if httpClient.Transport != nil {
			base = httpClient.Transport
		}
		httpClient = &http.Client{
			Timeout:   httpClient.Timeout,
			Transport: &bearerTransport{base: base, key: apiKey},
		}
	}
	return api.NewClient(p.baseURL, httpClient)
}

func (p *Ollama) Complete(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	apiMessages := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		apiMessages = append(apiMessages, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: apiMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": temperature,
		},
	}

	p.logger.Debug("Sending chat request", "model", p.model, "messages", len(messages), "url", p.baseURL.String())

	var reply strings.Builder
	err := p.client(apiKey).Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			msg := statusErr.ErrorMessage
			if msg == "" {
				msg = statusErr.Status
			}
			return "", &APIError{StatusCode: statusErr.StatusCode, Message: msg}
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	return replyOrPlaceholder(reply.String()), nil
}
