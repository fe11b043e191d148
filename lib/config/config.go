// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/beak/lib/llm"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for beak.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment" validate:"oneof=development staging production"`

	// OpenAI configures the upstream chat completions API.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Relay configures the rate-limited relay server.
	Relay RelayConfig `yaml:"relay"`

	// Chat configures conversations run by the chat client.
	Chat ChatConfig `yaml:"chat"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty" validate:"-"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty" validate:"-"`
	Production  *ConfigOverrides `yaml:"production,omitempty" validate:"-"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Only non-zero values override.
type ConfigOverrides struct {
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Relay  *RelayConfig  `yaml:"relay,omitempty"`
	Chat   *ChatConfig   `yaml:"chat,omitempty"`
}

// OpenAIConfig configures the upstream API.
type OpenAIConfig struct {
	// APIKey authenticates requests. Default: $OPENAI_API_KEY.
	// The chat client may leave it empty when BaseURL is a relay.
	APIKey string `yaml:"api_key"`

	// BaseURL is the API root, or a relay's root.
	// Default: https://api.openai.com
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// Model is used for requests that do not name one. Must be one
	// of the supported chat models.
	// Default: gpt-4
	Model string `yaml:"model" validate:"omitempty,chat_model"`
}

// RelayConfig configures the relay server.
type RelayConfig struct {
	// Listen is the TCP address the relay serves on.
	// Default: 127.0.0.1:8080
	Listen string `yaml:"listen" validate:"required,hostname_port"`

	// MetricsPath serves Prometheus metrics. Empty disables it.
	// Default: /metrics
	MetricsPath string `yaml:"metrics_path" validate:"omitempty,startswith=/"`

	// ClientKeyHeader names the request header carrying the per-client
	// rate limiter key. Empty applies only the global limiter.
	// Default: X-Beak-Client
	ClientKeyHeader string `yaml:"client_key_header"`

	// Global limiter. Default: 10 requests per second, 2 concurrent.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	MaxConcurrent     int     `yaml:"max_concurrent" validate:"gte=1"`

	// Per-client limiter. Default: 0.5 requests per second, 1 concurrent.
	RequestsPerSecondByClient float64 `yaml:"requests_per_second_by_client" validate:"gt=0"`
	MaxConcurrentByClient     int     `yaml:"max_concurrent_by_client" validate:"gte=1"`

	// Redis moves limiter state into a shared Redis server.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// RedisConfig locates the Redis server holding limiter state.
type RedisConfig struct {
	Address   string `yaml:"address" validate:"required"`
	Port      int    `yaml:"port" validate:"omitempty,gte=1,lte=65535"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ChatConfig configures conversations.
type ChatConfig struct {
	// MaxFeedback is the number of extra model rounds allowed after
	// function results. Zero means the default of 2.
	MaxFeedback int `yaml:"max_feedback" validate:"gte=0"`

	// Instructions replaces the default system instructions when
	// non-empty.
	Instructions string `yaml:"instructions"`

	// FormattingInstructions replaces the default formatting
	// instructions. Nil keeps the default; empty disables them.
	FormattingInstructions *string `yaml:"formatting_instructions,omitempty"`

	// Temperature is sent with every request. Nil uses the client
	// default of 0.5.
	Temperature *float64 `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`

	// MaxTokens caps the prompt size. Zero uses the model's context
	// window.
	MaxTokens int `yaml:"max_tokens" validate:"gte=0"`

	// Manifest is a JSONC file of functions and info entries loaded
	// into every conversation.
	Manifest string `yaml:"manifest"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Relay: RelayConfig{
			Listen:                    "127.0.0.1:8080",
			MetricsPath:               "/metrics",
			ClientKeyHeader:           "X-Beak-Client",
			RequestsPerSecond:         10,
			MaxConcurrent:             2,
			RequestsPerSecondByClient: 0.5,
			MaxConcurrentByClient:     1,
			ShutdownTimeout:           30 * time.Second,
		},
	}
}

// Load loads configuration from the BEAK_CONFIG environment variable.
//
// There are no fallbacks: if BEAK_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("BEAK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("BEAK_CONFIG environment variable not set; " +
			"set it to the path of your beak.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, then
// applies [Config.Resolve].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.Resolve()
	return cfg, nil
}

// Resolve applies the environment-specific overrides, expands
// variables, and fills the API key from OPENAI_API_KEY when unset.
// [LoadFile] calls it; commands running without a file call it on
// [Default].
func (c *Config) Resolve() {
	c.applyEnvironmentOverrides()
	c.expandVariables()
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.OpenAI != nil {
		overrideString(&c.OpenAI.APIKey, overrides.OpenAI.APIKey)
		overrideString(&c.OpenAI.BaseURL, overrides.OpenAI.BaseURL)
		overrideString(&c.OpenAI.Model, overrides.OpenAI.Model)
	}

	if relay := overrides.Relay; relay != nil {
		overrideString(&c.Relay.Listen, relay.Listen)
		overrideString(&c.Relay.MetricsPath, relay.MetricsPath)
		overrideString(&c.Relay.ClientKeyHeader, relay.ClientKeyHeader)
		if relay.RequestsPerSecond > 0 {
			c.Relay.RequestsPerSecond = relay.RequestsPerSecond
		}
		if relay.MaxConcurrent > 0 {
			c.Relay.MaxConcurrent = relay.MaxConcurrent
		}
		if relay.RequestsPerSecondByClient > 0 {
			c.Relay.RequestsPerSecondByClient = relay.RequestsPerSecondByClient
		}
		if relay.MaxConcurrentByClient > 0 {
			c.Relay.MaxConcurrentByClient = relay.MaxConcurrentByClient
		}
		if relay.Redis != nil {
			c.Relay.Redis = relay.Redis
		}
		if relay.ShutdownTimeout > 0 {
			c.Relay.ShutdownTimeout = relay.ShutdownTimeout
		}
	}

	if chat := overrides.Chat; chat != nil {
		if chat.MaxFeedback > 0 {
			c.Chat.MaxFeedback = chat.MaxFeedback
		}
		overrideString(&c.Chat.Instructions, chat.Instructions)
		if chat.FormattingInstructions != nil {
			c.Chat.FormattingInstructions = chat.FormattingInstructions
		}
		if chat.Temperature != nil {
			c.Chat.Temperature = chat.Temperature
		}
		if chat.MaxTokens > 0 {
			c.Chat.MaxTokens = chat.MaxTokens
		}
		overrideString(&c.Chat.Manifest, chat.Manifest)
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// secrets, addresses, and paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.OpenAI.APIKey = expandVars(c.OpenAI.APIKey, vars)
	c.OpenAI.BaseURL = expandVars(c.OpenAI.BaseURL, vars)
	c.Relay.Listen = expandVars(c.Relay.Listen, vars)
	if c.Relay.Redis != nil {
		c.Relay.Redis.Address = expandVars(c.Relay.Redis.Address, vars)
		c.Relay.Redis.Password = expandVars(c.Relay.Redis.Password, vars)
	}
	c.Chat.Manifest = expandVars(c.Chat.Manifest, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("chat_model", func(field validator.FieldLevel) bool {
		return llm.SupportedModel(field.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks the configuration for errors. Every problem is
// reported, each as "<yaml path>: <rule>".
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	errs := make([]error, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		// Namespace starts with the root type name, "Config.".
		_, path, _ := strings.Cut(fieldError.Namespace(), ".")
		errs = append(errs, fmt.Errorf("%s: %s", path, describeRule(fieldError)))
	}
	return errors.Join(errs...)
}

// ValidateRelay validates the configuration for running the relay,
// which additionally needs an API key of its own.
func (c *Config) ValidateRelay() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("openai.api_key is required (or set OPENAI_API_KEY)"))
	}
	return errors.Join(errs...)
}

func describeRule(fieldError validator.FieldError) string {
	if fieldError.Param() == "" {
		return "must satisfy " + fieldError.Tag()
	}
	return fmt.Sprintf("must satisfy %s=%s", fieldError.Tag(), fieldError.Param())
}
