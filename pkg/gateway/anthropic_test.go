package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/gateway"
	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// anthropicRequest is the subset of a Messages API request the tests inspect.
type anthropicRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func messageBody(content string) string {
	return `{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-haiku-20240307",
		"content": ` + content + `,
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 12, "output_tokens": 4}
	}`
}

var _ = Describe("AnthropicGateway", func() {
	var (
		server   *httptest.Server
		status   int
		body     string
		captured anthropicRequest
		header   http.Header
		calls    atomic.Int32
		turns    []llm.Turn
		ctx      context.Context
	)

	newGateway := func(apiKey string) *gateway.AnthropicGateway {
		return gateway.NewAnthropicGateway(gateway.AnthropicConfig{
			APIKey:  apiKey,
			BaseURL: server.URL,
		}, zap.NewNop())
	}

	BeforeEach(func() {
		ctx = context.Background()
		status = http.StatusOK
		body = messageBody(`[{"type": "text", "text": "Hi! 😊"}]`)
		calls.Store(0)
		turns = []llm.Turn{
			llm.UserTurn("hello"),
			llm.AssistantTurn("Hi, how can I help?"),
			llm.UserTurn("tell me a joke"),
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			calls.Add(1)
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			header = r.Header.Clone()

			raw, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			captured = anthropicRequest{}
			Expect(json.Unmarshal(raw, &captured)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, body)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns the first text block", func() {
		result := newGateway("sk-test").Complete(ctx, turns, "")
		Expect(result).To(Equal(gateway.Success{Text: "Hi! 😊"}))
	})

	It("sends the conversation, model, token budget and key", func() {
		newGateway("sk-test").Complete(ctx, turns, "")

		Expect(header.Get("X-Api-Key")).To(Equal("sk-test"))
		Expect(captured.Model).To(Equal(gateway.DefaultModel))
		Expect(captured.MaxTokens).To(Equal(gateway.DefaultMaxTokens))
		Expect(captured.System).To(BeEmpty())

		Expect(captured.Messages).To(HaveLen(3))
		roles := []string{}
		for _, m := range captured.Messages {
			roles = append(roles, m.Role)
		}
		Expect(roles).To(Equal([]string{"user", "assistant", "user"}))
		Expect(captured.Messages[2].Content[0].Text).To(Equal("tell me a joke"))
	})

	It("sends the persona as the system directive", func() {
		newGateway("sk-test").Complete(ctx, turns, "You are a cheerful assistant.")

		Expect(captured.System).To(HaveLen(1))
		Expect(captured.System[0].Text).To(Equal("You are a cheerful assistant."))
	})

	It("falls back when the reply has no content", func() {
		body = messageBody(`[]`)
		Expect(newGateway("sk-test").Complete(ctx, turns, "")).
			To(Equal(gateway.Success{Text: gateway.FallbackText}))
	})

	It("falls back when the first block has no text", func() {
		body = messageBody(`[{"type": "text", "text": ""}]`)
		Expect(newGateway("sk-test").Complete(ctx, turns, "")).
			To(Equal(gateway.Success{Text: gateway.FallbackText}))
	})

	It("reports the status of API errors", func() {
		status = http.StatusInternalServerError
		body = `{"type": "error", "error": {"type": "api_error", "message": "overloaded"}}`

		result := newGateway("sk-test").Complete(ctx, turns, "")
		failure, ok := result.(gateway.Failure)
		Expect(ok).To(BeTrue())
		Expect(failure.StatusCode).To(Equal(http.StatusInternalServerError))
		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("fails on malformed responses", func() {
		body = `this is not json`
		Expect(newGateway("sk-test").Complete(ctx, turns, "")).To(BeAssignableToTypeOf(gateway.Failure{}))
	})

	It("fails without a status when the upstream is unreachable", func() {
		server.Close()

		result := newGateway("sk-test").Complete(ctx, turns, "")
		failure, ok := result.(gateway.Failure)
		Expect(ok).To(BeTrue())
		Expect(failure.HasStatus()).To(BeFalse())
	})

	It("never calls upstream without an API key", func() {
		result := newGateway("").Complete(ctx, turns, "")
		Expect(result).To(Equal(gateway.Failure{Cause: gateway.ErrMissingAPIKey}))
		Expect(calls.Load()).To(BeZero())
	})
})
