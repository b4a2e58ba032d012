// ABOUTME: Configuration loading and parsing for smart-tg-bot
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete smart-tg-bot configuration
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TelegramConfig holds the bot credential and update tuning
type TelegramConfig struct {
	Token string `yaml:"token"`

	// UpdateTimeout is the long-poll timeout in seconds for getUpdates
	UpdateTimeout int `yaml:"update_timeout"`
}

// OpenAIConfig holds the remote service credential, model, and per-mode
// assistant identifiers
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	Assistants AssistantsConfig `yaml:"assistants"`

	PollInterval time.Duration `yaml:"-"`
	PollTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PollIntervalRaw string `yaml:"poll_interval"`
	PollTimeoutRaw  string `yaml:"poll_timeout"`

	Retry RetryConfig `yaml:"retry"`
}

// AssistantsConfig maps each session mode to its assistant ID
type AssistantsConfig struct {
	Fact string `yaml:"fact"`
	Chat string `yaml:"chat"`
	Quiz string `yaml:"quiz"`
}

// RetryConfig holds the backoff schedule for transient remote failures
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"-"`

	BaseDelayRaw string `yaml:"base_delay"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.OpenAI.Assistants.Fact == "" {
		return fmt.Errorf("openai.assistants.fact is required")
	}
	if c.OpenAI.Assistants.Chat == "" {
		return fmt.Errorf("openai.assistants.chat is required")
	}
	if c.OpenAI.Assistants.Quiz == "" {
		return fmt.Errorf("openai.assistants.quiz is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.OpenAI.PollIntervalRaw != "" {
		cfg.OpenAI.PollInterval, err = time.ParseDuration(cfg.OpenAI.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.OpenAI.PollIntervalRaw, err)
		}
	}

	if cfg.OpenAI.PollTimeoutRaw != "" {
		cfg.OpenAI.PollTimeout, err = time.ParseDuration(cfg.OpenAI.PollTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_timeout %q: %w", cfg.OpenAI.PollTimeoutRaw, err)
		}
	}

	if cfg.OpenAI.Retry.BaseDelayRaw != "" {
		cfg.OpenAI.Retry.BaseDelay, err = time.ParseDuration(cfg.OpenAI.Retry.BaseDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing retry.base_delay %q: %w", cfg.OpenAI.Retry.BaseDelayRaw, err)
		}
	}

	return nil
}
