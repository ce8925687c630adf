// Package config loads process configuration from an optional YAML file
// with environment-variable overrides.
//
// Environment variables override YAML values for every field that
// supports both. Secrets (API keys) carry yaml:"-" and come from the
// environment only, never from a config file.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all settings for the analysis CLIs.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Generative GenerativeConfig `yaml:"generative"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	// Mode selects the encoder: "production" (JSON) or "development"
	// (console).
	Mode string `yaml:"mode" env:"LOG_MODE" env-default:"production"`
}

// Build constructs the process logger for this config.
func (c LogConfig) Build() (*zap.Logger, error) {
	var zc zap.Config
	if c.Mode == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// GenerativeConfig holds the model-assisted recommendation settings.
// Without keys the engine runs purely rule-based.
type GenerativeConfig struct {
	// Endpoint is an OpenAI-compatible chat-completion base URL. Empty
	// means the vendor default; DeepSeek-style services work by
	// pointing this at their base URL.
	Endpoint string `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"`

	AnthropicModel string `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-haiku-20240307"`
	AnthropicKey   string `yaml:"-" env:"ANTHROPIC_API_KEY"`

	// TimeoutSeconds bounds one generative call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
}

// OpenAIAvailable reports whether the OpenAI-compatible strategy is
// configured.
func (c *GenerativeConfig) OpenAIAvailable() bool { return c.APIKey != "" }

// AnthropicAvailable reports whether the Anthropic strategy is
// configured.
func (c *GenerativeConfig) AnthropicAvailable() bool { return c.AnthropicKey != "" }

// Timeout returns the per-call timeout as a duration.
func (c *GenerativeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MetricsConfig holds the Datadog reporting settings. Disabled or
// keyless configs run with the no-op backend.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
	Site    string `yaml:"site" env:"DD_SITE" env-default:"datadoghq.com"`
	APIKey  string `yaml:"-" env:"DD_API_KEY"`
	AppKey  string `yaml:"-" env:"DD_APP_KEY"`
	// FlushSeconds is the interval between buffered submissions.
	FlushSeconds int `yaml:"flush_seconds" env:"METRICS_FLUSH_SECONDS" env-default:"10"`
}

// Available reports whether points can actually be submitted.
func (c *MetricsConfig) Available() bool { return c.Enabled && c.APIKey != "" }

// FlushInterval returns the flush cadence as a duration.
func (c *MetricsConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushSeconds) * time.Second
}

// Load reads configuration. With an empty path only the environment and
// tag defaults apply; with a path the YAML file is required and the
// environment overrides it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}
