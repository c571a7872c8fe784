package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kevensen/gollama-clippy/internal/logging"
)

// OpenAI is a Completer for the OpenAI Chat Completions API and compatible endpoints
type OpenAI struct {
	client openai.Client
	model  string
	logger *logging.Logger
}

// NewOpenAI creates an OpenAI provider. SDK-level retries are disabled because
// credential retries are driven by the caller.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClientOrDefault(cfg.HTTPClient)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logging.WithComponent("llm-openai"),
	}
}

func (p *OpenAI) Name() string { return ProviderOpenAI }

func (p *OpenAI) Complete(ctx context.Context, apiKey string, messages []Message, temperature float64) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	p.logger.Debug("Sending chat completion", "model", p.model, "messages", len(messages))

	resp, err := p.client.Chat.Completions.New(ctx, params, option.WithAPIKey(apiKey))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return NoResponseText, nil
	}
	return replyOrPlaceholder(resp.Choices[0].Message.Content), nil
}
