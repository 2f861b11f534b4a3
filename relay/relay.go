// Package relay provides the HTTP front end that turns inbound WhatsApp
// webhooks into completion requests and answers with TwiML.
package relay

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/gateway"
	"github.com/papercomputeco/chatrelay/pkg/history"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
)

// LivenessText is served on GET /.
const LivenessText = "WhatsApp Chatbot is running!"

const shutdownTimeout = 10 * time.Second

// Persona supplies the system instruction for each completion.
type Persona interface {
	Instruction() string
}

// Relay is the webhook server. It keeps per-conversation history in a
// history.Store and asks a gateway.Gateway for every reply.
type Relay struct {
	config  Config
	store   history.Store
	builder *history.TurnBuilder
	gateway gateway.Gateway
	persona Persona
	metrics *metrics.Collector
	logger  *zap.Logger
	server  *fiber.App
}

// New creates a Relay. collector may be nil to run without metrics.
func New(
	config Config,
	store history.Store,
	gw gateway.Gateway,
	persona Persona,
	collector *metrics.Collector,
	logger *zap.Logger,
) (*Relay, error) {
	if store == nil {
		return nil, errors.New("relay requires a history store")
	}
	if gw == nil {
		return nil, errors.New("relay requires a gateway")
	}
	if config.WebhookPath == "" {
		return nil, errors.New("relay requires a webhook path")
	}
	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = gateway.DefaultTimeout
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Form values become history keys and turns that outlive the request
		Immutable: true,
	})

	r := &Relay{
		config:  config,
		store:   store,
		builder: history.NewTurnBuilder(store),
		gateway: gw,
		persona: persona,
		metrics: collector,
		logger:  logger,
		server:  app,
	}

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))

	// Webhook
	app.Use(config.WebhookPath, cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
	}))
	app.Post(config.WebhookPath, r.handleWebhook)
	app.Options(config.WebhookPath, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.All(config.WebhookPath, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusMethodNotAllowed).SendString("Method Not Allowed")
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(LivenessText)
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	if collector != nil && config.MetricsPath != "" {
		app.Get(config.MetricsPath, adaptor.HTTPHandler(collector.Handler()))
	}

	// History inspection endpoints
	if config.Inspect {
		app.Get("/history/stats", r.handleHistoryStats)
		app.Get("/history/:conversation", r.handleGetHistory)
	}

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("webhook", r.config.WebhookPath),
		zap.String("gateway", r.gateway.Name()),
		zap.Bool("inspect", r.config.Inspect),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// Close shuts the server down and releases the history store.
func (r *Relay) Close() error {
	shutdownErr := r.server.ShutdownWithTimeout(shutdownTimeout)
	storeErr := r.store.Close()
	return errors.Join(shutdownErr, storeErr)
}

// HistoryResponse is the body of GET /history/:conversation.
type HistoryResponse struct {
	ConversationID string     `json:"conversation_id"`
	Turns          []llm.Turn `json:"turns"`
	Depth          int        `json:"depth"`
}

// handleGetHistory returns the stored turns of one conversation, oldest
// first. Conversation IDs carry characters such as ':' and '+', so the path
// parameter is unescaped before lookup.
func (r *Relay) handleGetHistory(c *fiber.Ctx) error {
	id, err := url.PathUnescape(c.Params("conversation"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid conversation id"})
	}

	turns, err := r.store.Get(c.UserContext(), id)
	if err != nil {
		r.logger.Error("failed to read history", zap.String("conversation", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to read history"})
	}
	if len(turns) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "conversation not found"})
	}

	return c.JSON(HistoryResponse{
		ConversationID: id,
		Turns:          turns,
		Depth:          len(turns),
	})
}

// handleHistoryStats returns statistics about stored history.
func (r *Relay) handleHistoryStats(c *fiber.Ctx) error {
	n, err := r.store.Conversations(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to count conversations"})
	}

	return c.JSON(map[string]any{
		"conversations": n,
		"gateway":       r.gateway.Name(),
	})
}
