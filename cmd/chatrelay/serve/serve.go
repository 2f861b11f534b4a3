package servecmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/gateway"
	"github.com/papercomputeco/chatrelay/pkg/history"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/persona"
	"github.com/papercomputeco/chatrelay/relay"
)

const serveLongDesc string = `Run the WhatsApp webhook relay.

Configuration is read from a TOML or YAML file when --config is given and
can be overridden with PORT, ANTHROPIC_API_KEY and CHATRELAY_* variables.

Examples:
  chatrelay serve
  chatrelay serve --config chatrelay.toml
  PORT=3000 ANTHROPIC_API_KEY=sk-... chatrelay serve --debug`

const serveShortDesc string = "Run the webhook relay server"

type serveCommander struct {
	configPath string
	listen     string
	debug      bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.configPath, "config", "c", "", "Path to a TOML or YAML configuration file")
	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (overrides configuration)")
	cmd.Flags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if c.listen != "" {
		cfg.Server.Listen = c.listen
	}
	if c.debug {
		cfg.Log.Debug = true
	}

	log := logger.NewLogger(cfg.Log.Debug, cfg.Log.Format)
	defer log.Sync()

	log.Info("chatrelay starting",
		zap.String("listen", cfg.Server.Listen),
		zap.String("provider", cfg.Provider.Name),
		zap.String("history", cfg.History.Backend),
		zap.Bool("debug", cfg.Log.Debug),
	)

	store, err := openStore(cfg.History, log)
	if err != nil {
		return err
	}

	gw := newGateway(cfg, log)

	source, err := newPersona(ctx, cfg.Persona, log)
	if err != nil {
		store.Close()
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.IsEnabled() {
		collector = metrics.NewCollector(conversationCounter(store))
	}

	sweeper := history.NewSweeper(store, cfg.History.IdleTTL, cfg.History.SweepSchedule, log)
	if collector != nil {
		sweeper.OnSweep = collector.RecordEvictions
	}
	if err := sweeper.Start(ctx); err != nil {
		store.Close()
		return err
	}
	defer sweeper.Stop()

	relayConfig := relay.Config{
		ListenAddr:      cfg.Server.Listen,
		WebhookPath:     cfg.Server.WebhookPath,
		Inspect:         cfg.Server.Inspect,
		UpstreamTimeout: cfg.Provider.UpstreamTimeout,
	}
	if collector != nil {
		relayConfig.MetricsPath = cfg.Metrics.Path
	}

	r, err := relay.New(relayConfig, store, gw, source, collector, log)
	if err != nil {
		store.Close()
		return fmt.Errorf("could not create relay: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run()
	}()

	select {
	case err := <-errCh:
		log.Error("relay server failed", zap.Error(err))
		r.Close()
		return fmt.Errorf("relay server failed: %w", err)
	case <-ctx.Done():
		log.Info("shutting down")
		sweeper.Stop()
		return r.Close()
	}
}

func openStore(cfg config.HistoryConfig, log *zap.Logger) (history.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := history.NewSQLiteStore(cfg.SQLitePath, cfg.MaxHistory)
		if err != nil {
			return nil, fmt.Errorf("could not open history database %s: %w", cfg.SQLitePath, err)
		}
		log.Info("using SQLite history", zap.String("path", cfg.SQLitePath), zap.Int("max_history", cfg.MaxHistory))
		return store, nil
	default:
		log.Info("using in-memory history", zap.Int("max_history", cfg.MaxHistory))
		return history.NewMemoryStore(cfg.MaxHistory), nil
	}
}

func newGateway(cfg *config.Config, log *zap.Logger) gateway.Gateway {
	switch cfg.Provider.Name {
	case config.ProviderOllama:
		log.Info("using ollama gateway", zap.String("url", cfg.Ollama.URL), zap.String("model", cfg.Ollama.Model))
		return gateway.NewOllamaGateway(gateway.OllamaConfig{
			UpstreamURL: cfg.Ollama.URL,
			Model:       cfg.Ollama.Model,
			MaxTokens:   cfg.Ollama.MaxTokens,
			Timeout:     cfg.Provider.UpstreamTimeout,
			Temperature: cfg.Ollama.Temperature,
		}, log)
	default:
		if cfg.Anthropic.APIKey == "" {
			log.Warn("ANTHROPIC_API_KEY is not set; every message will get the unreachable-service reply")
		}
		log.Info("using anthropic gateway", zap.String("model", cfg.Anthropic.Model))
		return gateway.NewAnthropicGateway(gateway.AnthropicConfig{
			APIKey:     cfg.Anthropic.APIKey,
			BaseURL:    cfg.Anthropic.BaseURL,
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			MaxRetries: cfg.Anthropic.MaxRetries,
			Timeout:    cfg.Provider.UpstreamTimeout,
		}, log)
	}
}

func newPersona(ctx context.Context, cfg config.PersonaConfig, log *zap.Logger) (*persona.Source, error) {
	if cfg.File == "" {
		return persona.Static(cfg.Instruction), nil
	}

	source, err := persona.FromFile(cfg.File, log)
	if err != nil {
		return nil, fmt.Errorf("could not load persona: %w", err)
	}
	if cfg.Watch {
		if err := source.Watch(ctx); err != nil {
			return nil, err
		}
		log.Info("watching persona file", zap.String("path", cfg.File))
	}
	return source, nil
}

// conversationCounter samples the store for the conversations gauge.
func conversationCounter(store history.Store) func() float64 {
	return func() float64 {
		n, err := store.Conversations(context.Background())
		if err != nil {
			return 0
		}
		return float64(n)
	}
}
