package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation failure for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "server.webhook_path").
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0].Error()
	}

	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid configuration (%d errors): %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Validate checks cfg and returns a ValidationError when anything is wrong.
// A missing Anthropic API key is deliberately not an error.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Server.Listen == "" {
		add("server.listen", "must not be empty")
	}
	if !strings.HasPrefix(cfg.Server.WebhookPath, "/") {
		add("server.webhook_path", "must start with /, got %q", cfg.Server.WebhookPath)
	}

	switch cfg.Provider.Name {
	case ProviderAnthropic:
		if cfg.Anthropic.MaxTokens <= 0 {
			add("anthropic.max_tokens", "must be positive, got %d", cfg.Anthropic.MaxTokens)
		}
		if cfg.Anthropic.MaxRetries < 0 {
			add("anthropic.max_retries", "must not be negative, got %d", cfg.Anthropic.MaxRetries)
		}
	case ProviderOllama:
		if cfg.Ollama.Model == "" {
			add("ollama.model", "is required for the ollama provider")
		}
		if cfg.Ollama.MaxTokens <= 0 {
			add("ollama.max_tokens", "must be positive, got %d", cfg.Ollama.MaxTokens)
		}
		if t := cfg.Ollama.Temperature; t != nil && (*t < 0 || *t > 2) {
			add("ollama.temperature", "must be between 0 and 2, got %g", *t)
		}
	default:
		add("provider.name", "must be %q or %q, got %q", ProviderAnthropic, ProviderOllama, cfg.Provider.Name)
	}
	if cfg.Provider.UpstreamTimeout <= 0 {
		add("provider.upstream_timeout", "must be positive, got %s", cfg.Provider.UpstreamTimeout)
	}

	switch cfg.History.Backend {
	case BackendMemory, BackendSQLite:
	default:
		add("history.backend", "must be %q or %q, got %q", BackendMemory, BackendSQLite, cfg.History.Backend)
	}
	if cfg.History.MaxHistory <= 0 {
		add("history.max_history", "must be positive, got %d", cfg.History.MaxHistory)
	}
	if cfg.History.IdleTTL < 0 {
		add("history.idle_ttl", "must not be negative, got %s", cfg.History.IdleTTL)
	}
	if _, err := cron.ParseStandard(cfg.History.SweepSchedule); err != nil {
		add("history.sweep_schedule", "invalid schedule %q: %v", cfg.History.SweepSchedule, err)
	}

	if cfg.Persona.Watch && cfg.Persona.File == "" {
		add("persona.watch", "requires persona.file")
	}

	if cfg.Metrics.IsEnabled() {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			add("metrics.path", "must start with /, got %q", cfg.Metrics.Path)
		}
		if cfg.Metrics.Path == cfg.Server.WebhookPath {
			add("metrics.path", "must differ from server.webhook_path")
		}
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		add("log.format", "must be \"console\" or \"json\", got %q", cfg.Log.Format)
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
