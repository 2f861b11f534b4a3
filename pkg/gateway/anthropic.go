package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// AnthropicConfig configures an AnthropicGateway.
type AnthropicConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string

	Model     string
	MaxTokens int

	// Timeout bounds a single upstream call.
	Timeout time.Duration

	// MaxRetries is the number of SDK retries on retryable failures.
	MaxRetries int
}

// AnthropicGateway completes conversations with the Anthropic Messages API.
type AnthropicGateway struct {
	config AnthropicConfig
	client anthropic.Client
	logger *zap.Logger
}

// NewAnthropicGateway creates an AnthropicGateway. A missing API key is not
// an error: the gateway is built, and every call fails with ErrMissingAPIKey.
func NewAnthropicGateway(config AnthropicConfig, logger *zap.Logger) *AnthropicGateway {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(config.MaxRetries),
		option.WithRequestTimeout(config.Timeout),
	}
	if config.BaseURL != "" {
		baseURL := config.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicGateway{
		config: config,
		client: anthropic.NewClient(opts...),
		logger: logger,
	}
}

// Name implements Gateway.
func (g *AnthropicGateway) Name() string {
	return "anthropic"
}

// Complete implements Gateway.
func (g *AnthropicGateway) Complete(ctx context.Context, turns []llm.Turn, persona string) Result {
	if g.config.APIKey == "" {
		return Failure{Cause: ErrMissingAPIKey}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		MaxTokens: int64(g.config.MaxTokens),
		Messages:  messageParams(turns),
	}
	if persona != "" {
		params.System = []anthropic.TextBlockParam{{Text: persona}}
	}

	g.logger.Debug("sending completion request",
		zap.String("model", g.config.Model),
		zap.Int("turns", len(turns)),
	)

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return Failure{StatusCode: apiErr.StatusCode, Cause: err}
		}
		return Failure{Cause: err}
	}

	text := firstText(msg)
	g.logger.Debug("received completion",
		zap.String("stop_reason", string(msg.StopReason)),
		zap.String("content_preview", logger.Truncate(text, 100)),
	)
	return Success{Text: textOrFallback(text)}
}

// messageParams maps turns onto Messages API roles. System turns never live
// in a history; they are skipped if present.
func messageParams(turns []llm.Turn) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		switch t.Role {
		case llm.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(block))
		case llm.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		}
	}
	return msgs
}

// firstText returns the text of the first content block, or "" when the
// message has no content.
func firstText(msg *anthropic.Message) string {
	if msg == nil || len(msg.Content) == 0 {
		return ""
	}
	return msg.Content[0].Text
}
