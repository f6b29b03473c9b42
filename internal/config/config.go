package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Supported llm_provider values. "llamacpp" targets any llama.cpp
// server exposing the OpenAI-compatible completions API.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderLlamaCpp = "llamacpp"
)

// ConfigError is fatal at construction time: the orchestration graph
// refuses to build on top of an invalid configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// RiskPolicy is the static constraint set the risk manager reviews
// decisions against. The zero value is fully permissive.
type RiskPolicy struct {
	// MinConfidence downgrades buy/sell decisions below this confidence
	// to hold.
	MinConfidence float64 `yaml:"min_confidence"`
	// RestrictedSymbols are always forced to hold.
	RestrictedSymbols []string `yaml:"restricted_symbols"`
}

func (p RiskPolicy) Restricted(symbol string) bool {
	for _, s := range p.RestrictedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Config is the immutable configuration threaded through the graph and
// every role constructor. There is no ambient/global lookup.
type Config struct {
	LLMProvider   string `yaml:"llm_provider"`
	BackendURL    string `yaml:"backend_url"`
	DeepThinkLLM  string `yaml:"deep_think_llm"`
	QuickThinkLLM string `yaml:"quick_think_llm"`

	// Backend tuning, passed through to the model layer unmodified.
	// ContextWindow additionally bounds prompt size client-side.
	ContextWindow int `yaml:"context_window"`
	BatchSize     int `yaml:"batch_size"`
	GPULayers     int `yaml:"gpu_layers"`

	MaxDebateRounds int  `yaml:"max_debate_rounds"`
	OnlineTools     bool `yaml:"online_tools"`
	Debug           bool `yaml:"debug"`
	// Strict makes any role failure abort the run instead of degrading.
	Strict bool `yaml:"strict"`

	MaxRetries       int           `yaml:"max_retries"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxTokensPerCall int           `yaml:"max_tokens_per_call"`
	// MaxTurnRunes bounds a single debate turn; longer turns are
	// truncated and flagged, not failed.
	MaxTurnRunes int `yaml:"max_turn_runes"`

	MemoryDBPath string `yaml:"memory_db_path"`
	ResultsDir   string `yaml:"results_dir"`
	DataCacheDir string `yaml:"data_cache_dir"`
	CacheEnabled bool   `yaml:"cache_enabled"`

	Risk RiskPolicy `yaml:"risk"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	return &Config{
		LLMProvider:   ProviderOpenAI,
		BackendURL:    "https://api.openai.com/v1",
		DeepThinkLLM:  "o4-mini",
		QuickThinkLLM: "gpt-4o-mini",

		ContextWindow: 131072,
		BatchSize:     1024,
		GPULayers:     0,

		MaxDebateRounds: 1,
		OnlineTools:     true,
		Debug:           false,
		Strict:          false,

		MaxRetries:       3,
		RequestTimeout:   120 * time.Second,
		MaxTokensPerCall: 4096,
		MaxTurnRunes:     16384,

		MemoryDBPath: filepath.Join(currentDir, "data", "council.db"),
		ResultsDir:   filepath.Join(currentDir, "results"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),
		CacheEnabled: true,
	}
}

// Load reads a yaml file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderDeepSeek, ProviderLlamaCpp:
	case "":
		return &ConfigError{Field: "llm_provider", Reason: "must not be empty"}
	default:
		return &ConfigError{Field: "llm_provider", Reason: fmt.Sprintf("unknown provider %q", c.LLMProvider)}
	}
	if c.BackendURL == "" {
		return &ConfigError{Field: "backend_url", Reason: "must not be empty"}
	}
	if c.DeepThinkLLM == "" {
		return &ConfigError{Field: "deep_think_llm", Reason: "must not be empty"}
	}
	if c.QuickThinkLLM == "" {
		return &ConfigError{Field: "quick_think_llm", Reason: "must not be empty"}
	}
	if c.MaxDebateRounds < 0 {
		return &ConfigError{Field: "max_debate_rounds", Reason: "must not be negative"}
	}
	if c.MaxRetries < 1 {
		return &ConfigError{Field: "max_retries", Reason: "must be at least 1"}
	}
	if c.RequestTimeout <= 0 {
		return &ConfigError{Field: "request_timeout", Reason: "must be positive"}
	}
	if c.ContextWindow <= 0 {
		return &ConfigError{Field: "context_window", Reason: "must be positive"}
	}
	if c.MaxTokensPerCall <= 0 {
		return &ConfigError{Field: "max_tokens_per_call", Reason: "must be positive"}
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 1 {
		return &ConfigError{Field: "risk.min_confidence", Reason: "must be in [0, 1]"}
	}
	return nil
}

// EnsureDirectories creates the writable directories a run needs.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ResultsDir, c.DataCacheDir, filepath.Dir(c.MemoryDBPath)}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
