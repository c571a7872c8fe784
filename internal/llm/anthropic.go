package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

const defaultAnthropicMaxTokens = 1024

// Anthropic is a Completer for the Anthropic Messages API
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *logging.Logger
}

// NewAnthropic creates an Anthropic provider with SDK retries disabled
func NewAnthropic(cfg Config) *Anthropic {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClientOrDefault(cfg.HTTPClient)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logging.WithComponent("llm-anthropic"),
	}
}

func (p *Anthropic) Name() string { return ProviderAnthropic }

// Complete joins every system message into the System field and sends the rest as
// alternating user and assistant messages
func (p *Anthropic) Complete(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	var system []string
	conversation := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(conversation) == 0 {
		return "", ErrNoMessages
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Messages:    conversation,
		Temperature: anthropic.Float(temperature),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	p.logger.Debug("Sending message request", "model", p.model, "messages", len(conversation), "system_parts", len(system))

	msg, err := p.client.Messages.New(ctx, params, option.WithAPIKey(apiKey))
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.WriteString(b.Text)
		}
	}
	return replyOrPlaceholder(reply.String()), nil
}
