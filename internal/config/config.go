package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported backends and providers.
var (
	StoreBackends = []string{"file", "redis", "sqlite"}
	LLMProviders  = []string{"anthropic", "venice", "ollama", "scripted"}
)

type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level

	DataDir          string `env:"DATA_DIR" envDefault:"./data"`
	StoreBackend     string `env:"STORE_BACKEND" envDefault:"file"`
	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SafetyPolicyFile string `env:"SAFETY_POLICY_FILE" envDefault:"./data/safety_policy.txt"`

	LLMProvider     string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	ModelName       string        `env:"MODEL_NAME"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	VeniceAPIKey    string        `env:"VENICE_API_KEY"`
	OllamaURL       string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	NarratorTimeout time.Duration `env:"NARRATOR_TIMEOUT" envDefault:"60s"`

	RoomGracePeriod time.Duration `env:"ROOM_GRACE_PERIOD" envDefault:"30s"`
	StaffRoles      []string      `env:"STAFF_ROLES" envSeparator:","`
	PlayerRole      string        `env:"PLAYER_ROLE"`
	ManagedRoles    []string      `env:"MANAGED_ROLES" envSeparator:","`
	// GarbleEcho is "room" to echo garbled input publicly or "none".
	GarbleEcho string `env:"GARBLE_ECHO" envDefault:"room"`

	SlackBotToken      string `env:"SLACK_BOT_TOKEN"`
	SlackAppToken      string `env:"SLACK_APP_TOKEN"`
	SlackParentChannel string `env:"SLACK_PARENT_CHANNEL"`

	modelSet bool
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.GarbleEcho = strings.ToLower(strings.TrimSpace(cfg.GarbleEcho))
	cfg.StaffRoles = compact(cfg.StaffRoles)
	cfg.ManagedRoles = compact(cfg.ManagedRoles)
	cfg.modelSet = cfg.ModelName != ""
	if !cfg.modelSet {
		cfg.ModelName = defaultModel(cfg.LLMProvider)
	}

	return cfg, nil
}

// UseProvider switches the LLM provider, picking that provider's default
// model unless MODEL_NAME was given.
func (c *Config) UseProvider(provider string) {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(provider))
	if !c.modelSet {
		c.ModelName = defaultModel(c.LLMProvider)
	}
}

// Validate checks provider credentials and enum values.
func (c *Config) Validate() error {
	if !contains(StoreBackends, c.StoreBackend) {
		return fmt.Errorf("invalid STORE_BACKEND %q, supported: %v", c.StoreBackend, StoreBackends)
	}
	if !contains(LLMProviders, c.LLMProvider) {
		return fmt.Errorf("invalid LLM_PROVIDER %q, supported: %v", c.LLMProvider, LLMProviders)
	}
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when using anthropic provider")
		}
	case "venice":
		if c.VeniceAPIKey == "" {
			return fmt.Errorf("VENICE_API_KEY is required when using venice provider")
		}
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_URL is required when using ollama provider")
		}
	}
	if c.GarbleEcho != "room" && c.GarbleEcho != "none" {
		return fmt.Errorf("invalid GARBLE_ECHO %q, supported: room, none", c.GarbleEcho)
	}
	if c.NarratorTimeout <= 0 {
		return fmt.Errorf("NARRATOR_TIMEOUT must be positive")
	}
	if c.RoomGracePeriod < 0 {
		return fmt.Errorf("ROOM_GRACE_PERIOD must not be negative")
	}
	return nil
}

// ValidateSlack checks the settings the Slack host needs.
func (c *Config) ValidateSlack() error {
	if c.SlackBotToken == "" || c.SlackAppToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
	}
	if !strings.HasPrefix(c.SlackAppToken, "xapp-") {
		return fmt.Errorf("SLACK_APP_TOKEN must be an app-level token (xapp-)")
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "venice":
		return "llama-3.3-70b"
	case "ollama":
		return "llama3.1"
	default:
		return ""
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
