// Package config loads chatrelay configuration from TOML or YAML files,
// applies defaults and environment overrides, and validates the result.
package config

import "time"

// Config is the complete chatrelay configuration.
type Config struct {
	Server    ServerConfig    `toml:"server" yaml:"server"`
	Provider  ProviderConfig  `toml:"provider" yaml:"provider"`
	Anthropic AnthropicConfig `toml:"anthropic" yaml:"anthropic"`
	Ollama    OllamaConfig    `toml:"ollama" yaml:"ollama"`
	History   HistoryConfig   `toml:"history" yaml:"history"`
	Persona   PersonaConfig   `toml:"persona" yaml:"persona"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
	Log       LogConfig       `toml:"log" yaml:"log"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	// Listen is the address to listen on (e.g., ":8080").
	Listen string `toml:"listen" yaml:"listen"`

	// WebhookPath is where the messaging provider posts inbound messages.
	WebhookPath string `toml:"webhook_path" yaml:"webhook_path"`

	// Inspect exposes GET /history/:conversation. Leave off in production:
	// it serves message content to anyone who can reach the port.
	Inspect bool `toml:"inspect" yaml:"inspect"`
}

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ProviderConfig selects the completion backend.
type ProviderConfig struct {
	Name            string        `toml:"name" yaml:"name"`
	UpstreamTimeout time.Duration `toml:"upstream_timeout" yaml:"upstream_timeout"`
}

// AnthropicConfig configures the Anthropic Messages API gateway.
type AnthropicConfig struct {
	APIKey     string `toml:"api_key" yaml:"api_key"`
	BaseURL    string `toml:"base_url" yaml:"base_url"`
	Model      string `toml:"model" yaml:"model"`
	MaxTokens  int    `toml:"max_tokens" yaml:"max_tokens"`
	MaxRetries int    `toml:"max_retries" yaml:"max_retries"`
}

// OllamaConfig configures the Ollama-compatible gateway.
type OllamaConfig struct {
	URL       string `toml:"url" yaml:"url"`
	Model     string `toml:"model" yaml:"model"`
	MaxTokens int    `toml:"max_tokens" yaml:"max_tokens"`

	// Temperature is left to the model's default when unset.
	Temperature *float64 `toml:"temperature" yaml:"temperature"`
}

// History backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// HistoryConfig configures conversation history storage.
type HistoryConfig struct {
	Backend    string `toml:"backend" yaml:"backend"`
	SQLitePath string `toml:"sqlite_path" yaml:"sqlite_path"`
	MaxHistory int    `toml:"max_history" yaml:"max_history"`

	// IdleTTL drops conversations with no activity for this long. Zero keeps
	// them for the life of the process.
	IdleTTL       time.Duration `toml:"idle_ttl" yaml:"idle_ttl"`
	SweepSchedule string        `toml:"sweep_schedule" yaml:"sweep_schedule"`
}

// PersonaConfig configures the system instruction. File wins over
// Instruction when both are set.
type PersonaConfig struct {
	Instruction string `toml:"instruction" yaml:"instruction"`
	File        string `toml:"file" yaml:"file"`
	Watch       bool   `toml:"watch" yaml:"watch"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled defaults to true when unset.
	Enabled *bool  `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// IsEnabled reports whether the metrics endpoint should be served.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// LogConfig configures logging.
type LogConfig struct {
	Debug  bool   `toml:"debug" yaml:"debug"`
	Format string `toml:"format" yaml:"format"`
}
