// Package config resolves model and pipeline configuration once at startup.
// Model-family quirks (token-limit field name, temperature support, prompt
// budget) live in a ModelProfile instead of prefix checks at call sites.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ModelProfile captures how a model family must be addressed.
type ModelProfile struct {
	Family              string // e.g. "gpt-5", "gpt-4o"
	TokenLimitField     string // "max_tokens" or "max_completion_tokens"
	SupportsTemperature bool
	PromptCharBudget    int // 0 = unlimited; longer prompts are truncated
}

// GateThresholds parameterize the post-assembly quality gate.
type GateThresholds struct {
	MinCharacters int `yaml:"min_characters"`
	MaxCharacters int `yaml:"max_characters"`
	MinCitations  int `yaml:"min_citations"`
	MinTables     int `yaml:"min_tables"`
	MinFigures    int `yaml:"min_figures"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	Provider      string
	Model         string
	Profile       ModelProfile
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffGrowth float64
	DatabaseURL   string
	QualityGate   GateThresholds
}

// fileConfig is the optional YAML override file (config/models.yaml style).
type fileConfig struct {
	Model         string         `yaml:"model"`
	MaxRetries    *int           `yaml:"max_retries"`
	BackoffBaseMS *int           `yaml:"backoff_base_ms"`
	BackoffGrowth *float64       `yaml:"backoff_growth"`
	QualityGate   GateThresholds `yaml:"quality_gate"`
}

// DefaultGate mirrors the documented gate thresholds: 4000-12000 non-space
// characters, at least 5 page citations, 1 table and 3 figures.
var DefaultGate = GateThresholds{
	MinCharacters: 4000,
	MaxCharacters: 12000,
	MinCitations:  5,
	MinTables:     1,
	MinFigures:    3,
}

// ResolveProfile derives the model profile from the model name. Constrained
// families reject a temperature override and require the
// max_completion_tokens field plus a bounded prompt size.
func ResolveProfile(model string) ModelProfile {
	if strings.HasPrefix(model, "gpt-5") {
		return ModelProfile{
			Family:              "gpt-5",
			TokenLimitField:     "max_completion_tokens",
			SupportsTemperature: false,
			PromptCharBudget:    10000,
		}
	}
	return ModelProfile{
		Family:              model,
		TokenLimitField:     "max_tokens",
		SupportsTemperature: true,
	}
}

// Load resolves configuration from environment variables and an optional
// YAML file (path from IR_CONFIG or the configPath argument). File values
// override defaults; environment variables override the file.
func Load(provider string, configPath string) (*Config, error) {
	cfg := &Config{
		Provider:      provider,
		Model:         "gpt-4o",
		MaxRetries:    3,
		BackoffBase:   time.Second,
		BackoffGrowth: 2.0,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		QualityGate:   DefaultGate,
	}

	if configPath == "" {
		configPath = os.Getenv("IR_CONFIG")
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
		}
		if fc.Model != "" {
			cfg.Model = fc.Model
		}
		if fc.MaxRetries != nil {
			cfg.MaxRetries = *fc.MaxRetries
		}
		if fc.BackoffBaseMS != nil {
			cfg.BackoffBase = time.Duration(*fc.BackoffBaseMS) * time.Millisecond
		}
		if fc.BackoffGrowth != nil {
			cfg.BackoffGrowth = *fc.BackoffGrowth
		}
		if fc.QualityGate.MinCharacters > 0 {
			cfg.QualityGate = fc.QualityGate
		}
	}

	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.Provider = provider
		cfg.Model = model
	}
	cfg.Profile = ResolveProfile(cfg.Model)
	return cfg, nil
}
