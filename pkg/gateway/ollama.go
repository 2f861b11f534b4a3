package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// OllamaConfig configures an OllamaGateway.
type OllamaConfig struct {
	// UpstreamURL is the Ollama-compatible server (e.g., "http://localhost:11434").
	UpstreamURL string

	Model     string
	MaxTokens int
	Timeout   time.Duration

	// Temperature is sent as a sampling option when set.
	Temperature *float64
}

// OllamaGateway completes conversations against an Ollama-compatible
// /api/chat endpoint.
type OllamaGateway struct {
	config     OllamaConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaGateway creates an OllamaGateway.
func NewOllamaGateway(config OllamaConfig, logger *zap.Logger) *OllamaGateway {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	config.UpstreamURL = strings.TrimRight(config.UpstreamURL, "/")

	return &OllamaGateway{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name implements Gateway.
func (g *OllamaGateway) Name() string {
	return "ollama"
}

// Complete implements Gateway.
func (g *OllamaGateway) Complete(ctx context.Context, turns []llm.Turn, persona string) Result {
	numPredict := g.config.MaxTokens
	req := llm.ChatRequest{
		Model:    g.config.Model,
		Messages: llm.MessagesFromTurns(turns, persona),
		Stream:   false,
		Options: &llm.Options{
			NumPredict:  &numPredict,
			Temperature: g.config.Temperature,
		},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return Failure{Cause: fmt.Errorf("marshal request: %w", err)}
	}

	upstreamURL := g.config.UpstreamURL + "/api/chat"
	g.logger.Debug("forwarding request to upstream",
		zap.String("url", upstreamURL),
		zap.Int("body_size", len(reqBody)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, upstreamURL, bytes.NewReader(reqBody))
	if err != nil {
		return Failure{Cause: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Failure{Cause: fmt.Errorf("do request: %w", err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Failure{Cause: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return Failure{
			StatusCode: httpResp.StatusCode,
			Cause:      fmt.Errorf("upstream error: %s", logger.Truncate(string(body), 200)),
		}
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Failure{Cause: fmt.Errorf("unmarshal response: %w", err)}
	}

	var text string
	if resp.Message != nil {
		text = resp.Message.Content
	}

	g.logger.Debug("received response from upstream",
		zap.String("model", resp.Model),
		zap.Int("eval_count", resp.EvalCount),
		zap.String("content_preview", logger.Truncate(text, 100)),
	)
	return Success{Text: textOrFallback(text)}
}
