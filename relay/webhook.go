package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/gateway"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/twiml"
)

// Replies sent when no model text is available.
const (
	ReplyUnreachable   = "Sorry, I couldn't reach the assistant service. Please try again later."
	ReplyInternalError = "Sorry, an internal error occurred. Please try again later."
)

// ReplyUpstreamStatus formats the reply for an upstream that answered with
// an error status.
func ReplyUpstreamStatus(status int) string {
	return fmt.Sprintf("Sorry, the assistant service returned an error (status %d). Please try again later.", status)
}

// handleWebhook answers one inbound message. The messaging provider gets an
// HTTP 200 with a TwiML body no matter what happens inside the pipeline.
func (r *Relay) handleWebhook(c *fiber.Ctx) error {
	startTime := time.Now()

	// Copied out of fasthttp's request buffers, which are reused.
	conversationID := utils.CopyString(c.FormValue("From"))
	body := utils.CopyString(c.FormValue("Body"))

	r.logger.Debug("received webhook",
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.String("conversation", conversationID),
		zap.String("body_preview", logger.Truncate(body, 50)),
	)

	reply, outcome := r.converse(c.UserContext(), conversationID, body)

	duration := time.Since(startTime)
	if r.metrics != nil {
		r.metrics.RecordWebhook(outcome, duration)
	}
	r.logger.Info("webhook handled",
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.String("conversation", conversationID),
		zap.String("outcome", outcome),
		zap.Duration("duration", duration),
	)

	c.Set(fiber.HeaderContentType, twiml.ContentType)
	return c.Status(fiber.StatusOK).Send(twiml.Render(reply))
}

// converse runs one message through the pipeline and returns the reply text
// and its metrics outcome. Errors and panics become ReplyInternalError.
func (r *Relay) converse(ctx context.Context, conversationID, body string) (reply, outcome string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("recovered panic in webhook pipeline",
				zap.String("conversation", conversationID),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			reply, outcome = ReplyInternalError, metrics.OutcomeInternalError
		}
	}()

	turns, err := r.builder.Build(ctx, conversationID, body)
	if err != nil {
		r.logger.Error("failed to build conversation",
			zap.String("conversation", conversationID),
			zap.Error(err),
		)
		return ReplyInternalError, metrics.OutcomeInternalError
	}

	var instruction string
	if r.persona != nil {
		instruction = r.persona.Instruction()
	}

	upstreamCtx, cancel := context.WithTimeout(ctx, r.config.UpstreamTimeout)
	defer cancel()

	upstreamStart := time.Now()
	result := r.gateway.Complete(upstreamCtx, turns, instruction)
	upstreamDuration := time.Since(upstreamStart)

	switch res := result.(type) {
	case gateway.Success:
		if r.metrics != nil {
			r.metrics.RecordUpstream(r.gateway.Name(), upstreamDuration, true, 0)
		}

		// The reply goes out even if it cannot be remembered.
		if _, err := r.store.Append(ctx, conversationID, llm.AssistantTurn(res.Text)); err != nil {
			r.logger.Error("failed to store assistant turn",
				zap.String("conversation", conversationID),
				zap.Error(err),
			)
		}

		r.logger.Debug("received reply from upstream",
			zap.String("gateway", r.gateway.Name()),
			zap.String("content_preview", logger.Truncate(res.Text, 100)),
			zap.Duration("duration", upstreamDuration),
		)
		return res.Text, metrics.OutcomeSuccess

	case gateway.Failure:
		if r.metrics != nil {
			r.metrics.RecordUpstream(r.gateway.Name(), upstreamDuration, false, res.StatusCode)
		}
		r.logger.Warn("upstream completion failed",
			zap.String("gateway", r.gateway.Name()),
			zap.String("conversation", conversationID),
			zap.Int("status", res.StatusCode),
			zap.Error(res),
		)

		if res.HasStatus() {
			return ReplyUpstreamStatus(res.StatusCode), metrics.OutcomeAdapterFailure
		}
		return ReplyUnreachable, metrics.OutcomeAdapterFailure

	default:
		r.logger.Error("unexpected gateway result", zap.Any("result", result))
		return ReplyInternalError, metrics.OutcomeInternalError
	}
}
