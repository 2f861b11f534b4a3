package config

import "time"

// Default values.
const (
	DefaultListen          = ":8080"
	DefaultWebhookPath     = "/whatsapp"
	DefaultProvider        = ProviderAnthropic
	DefaultAnthropicModel  = "claude-3-haiku-20240307"
	DefaultOllamaURL       = "http://localhost:11434"
	DefaultMaxTokens       = 1024
	DefaultMaxRetries      = 2
	DefaultUpstreamTimeout = 60 * time.Second
	DefaultHistoryBackend  = BackendMemory
	DefaultSQLitePath      = "chatrelay.db"
	DefaultMaxHistory      = 10
	DefaultSweepSchedule   = "@every 1m"
	DefaultMetricsPath     = "/metrics"
	DefaultLogFormat       = "console"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = DefaultWebhookPath
	}

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = DefaultProvider
	}
	if cfg.Provider.UpstreamTimeout == 0 {
		cfg.Provider.UpstreamTimeout = DefaultUpstreamTimeout
	}

	if cfg.Anthropic.Model == "" {
		cfg.Anthropic.Model = DefaultAnthropicModel
	}
	if cfg.Anthropic.MaxTokens == 0 {
		cfg.Anthropic.MaxTokens = DefaultMaxTokens
	}
	if cfg.Anthropic.MaxRetries == 0 {
		cfg.Anthropic.MaxRetries = DefaultMaxRetries
	}

	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = DefaultOllamaURL
	}
	if cfg.Ollama.MaxTokens == 0 {
		cfg.Ollama.MaxTokens = DefaultMaxTokens
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = DefaultHistoryBackend
	}
	if cfg.History.Backend == BackendSQLite && cfg.History.SQLitePath == "" {
		cfg.History.SQLitePath = DefaultSQLitePath
	}
	if cfg.History.MaxHistory == 0 {
		cfg.History.MaxHistory = DefaultMaxHistory
	}
	if cfg.History.SweepSchedule == "" {
		cfg.History.SweepSchedule = DefaultSweepSchedule
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
