package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ToolImplementation selects which web tool executors back the loop.
type ToolImplementation string

const (
	ToolsCustom    ToolImplementation = "custom"
	ToolsAnthropic ToolImplementation = "anthropic"
)

// AppConfig holds all runtime configuration, loaded from an optional
// config.yaml, a .env file in local development, and environment variables.
// Environment variables win over the YAML file.
type AppConfig struct {
	Port            string
	AnthropicAPIKey string
	BraveAPIKey     string

	ModelProvider string
	Model         string
	MaxIterations int
	MaxTokens     int
	ModelTimeout  time.Duration

	ToolImplementation ToolImplementation
	ParallelTools      bool
}

type fileConfig struct {
	Port               string `yaml:"port"`
	ModelProvider      string `yaml:"model_provider"`
	Model              string `yaml:"model"`
	MaxIterations      int    `yaml:"max_iterations"`
	MaxTokens          int    `yaml:"max_tokens"`
	ModelTimeoutSecs   int    `yaml:"model_timeout_seconds"`
	ToolImplementation string `yaml:"tool_implementation"`
	ParallelTools      bool   `yaml:"parallel_tools"`
}

// LoadConfig assembles the configuration. A missing config.yaml is fine;
// a missing ANTHROPIC_API_KEY is not.
func LoadConfig() (*AppConfig, error) {
	// Only read .env in local development. Under GIN_MODE=release the
	// environment is provided by the deployment.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found, using system environment")
		}
	}

	cfg := &AppConfig{
		Port:               "8080",
		ModelProvider:      "anthropic",
		Model:              "claude-sonnet-4-20250514",
		MaxIterations:      10,
		MaxTokens:          4000,
		ModelTimeout:       2 * time.Minute,
		ToolImplementation: ToolsCustom,
	}

	if raw, err := os.ReadFile("config.yaml"); err == nil {
		var fc fileConfig
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
		applyFileConfig(cfg, fc)
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("MODEL_PROVIDER"); v != "" {
		cfg.ModelProvider = v
	}
	if v := os.Getenv("MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_ITERATIONS %q", v)
		}
		cfg.MaxIterations = n
	}
	if v := os.Getenv("MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_TOKENS %q", v)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("MODEL_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MODEL_TIMEOUT %q", v)
		}
		cfg.ModelTimeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv("TOOL_IMPLEMENTATION"); v != "" {
		cfg.ToolImplementation = ToolImplementation(v)
	}
	if v := os.Getenv("PARALLEL_TOOLS"); v != "" {
		cfg.ParallelTools = v == "true" || v == "1"
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.BraveAPIKey = os.Getenv("BRAVE_API_KEY")

	switch cfg.ToolImplementation {
	case ToolsCustom, ToolsAnthropic:
	default:
		return nil, fmt.Errorf("invalid TOOL_IMPLEMENTATION %q (want %q or %q)",
			cfg.ToolImplementation, ToolsCustom, ToolsAnthropic)
	}

	if cfg.AnthropicAPIKey == "" && cfg.ModelProvider == "anthropic" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}
	return cfg, nil
}

func applyFileConfig(cfg *AppConfig, fc fileConfig) {
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.ModelProvider != "" {
		cfg.ModelProvider = fc.ModelProvider
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.MaxIterations > 0 {
		cfg.MaxIterations = fc.MaxIterations
	}
	if fc.MaxTokens > 0 {
		cfg.MaxTokens = fc.MaxTokens
	}
	if fc.ModelTimeoutSecs > 0 {
		cfg.ModelTimeout = time.Duration(fc.ModelTimeoutSecs) * time.Second
	}
	if fc.ToolImplementation != "" {
		cfg.ToolImplementation = ToolImplementation(fc.ToolImplementation)
	}
	if fc.ParallelTools {
		cfg.ParallelTools = true
	}
}
