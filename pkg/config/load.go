package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration at path, applies defaults and environment
// overrides, and validates the result. The file format follows the
// extension: .toml, or .yaml/.yml. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parsing config file %q: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config file %q: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

// applyEnvOverrides applies environment variables on top of the file.
// PORT and ANTHROPIC_API_KEY are honored for compatibility with common
// hosting setups; everything else uses CHATRELAY_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("PORT"); val != "" {
		cfg.Server.Listen = ":" + val
	}
	if val := os.Getenv("CHATRELAY_SERVER_LISTEN"); val != "" {
		cfg.Server.Listen = val
	}
	if val := os.Getenv("CHATRELAY_SERVER_WEBHOOK_PATH"); val != "" {
		cfg.Server.WebhookPath = val
	}

	if val := os.Getenv("CHATRELAY_PROVIDER_NAME"); val != "" {
		cfg.Provider.Name = val
	}
	if val := os.Getenv("CHATRELAY_PROVIDER_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Provider.UpstreamTimeout = d
		}
	}

	if val := os.Getenv("ANTHROPIC_API_KEY"); val != "" {
		cfg.Anthropic.APIKey = val
	}
	if val := os.Getenv("CHATRELAY_ANTHROPIC_API_KEY"); val != "" {
		cfg.Anthropic.APIKey = val
	}
	if val := os.Getenv("CHATRELAY_ANTHROPIC_MODEL"); val != "" {
		cfg.Anthropic.Model = val
	}

	if val := os.Getenv("CHATRELAY_OLLAMA_URL"); val != "" {
		cfg.Ollama.URL = val
	}
	if val := os.Getenv("CHATRELAY_OLLAMA_MODEL"); val != "" {
		cfg.Ollama.Model = val
	}

	if val := os.Getenv("CHATRELAY_HISTORY_BACKEND"); val != "" {
		cfg.History.Backend = val
	}
	if val := os.Getenv("CHATRELAY_HISTORY_SQLITE_PATH"); val != "" {
		cfg.History.SQLitePath = val
	}
	if val := os.Getenv("CHATRELAY_HISTORY_MAX_HISTORY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.MaxHistory = i
		}
	}
	if val := os.Getenv("CHATRELAY_HISTORY_IDLE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.History.IdleTTL = d
		}
	}

	if val := os.Getenv("CHATRELAY_PERSONA_FILE"); val != "" {
		cfg.Persona.File = val
	}

	if val := os.Getenv("CHATRELAY_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv("CHATRELAY_LOG_DEBUG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Log.Debug = b
		}
	}
}
