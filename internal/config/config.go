// Package config holds the immutable configuration passed into each
// planner component at construction. Ranking weights, top-k defaults,
// and model names live here; there is no ambient lookup inside ranking
// logic.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Agent     AgentConfig     `yaml:"agent"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the chat-completion provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // openai or genai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`

	// Chunks in the catalog carry the embedding model name and chunker
	// version they were built with; queries are scoped to the same pair.
	IndexModelName string `yaml:"index_model_name"`
	ChunkerVersion string `yaml:"chunker_version"`
}

// CatalogConfig configures the catalog store.
type CatalogConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RetrievalConfig holds the deterministic retrieval parameters.
type RetrievalConfig struct {
	ComputeTopK int `yaml:"compute_top_k"`
	K8sTopK     int `yaml:"k8s_top_k"`
	HFTopK      int `yaml:"hf_top_k"`

	// ChunkOversample is how many chunks the vector stage retrieves
	// before aggregation and filtering shrink the candidate set.
	ChunkOversample int `yaml:"chunk_oversample"`

	RelevanceWeight  float64 `yaml:"relevance_weight"`
	PopularityWeight float64 `yaml:"popularity_weight"`
}

// AgentConfig holds conversation and orchestration parameters.
type AgentConfig struct {
	// HistoryWindow is the number of recent turns given to the agents.
	HistoryWindow int `yaml:"history_window"`

	// ExternalCallTimeout bounds every catalog/embedding/LLM call.
	ExternalCallTimeout string `yaml:"external_call_timeout"`

	// SynthesisRetries is the number of retries after an unparseable
	// synthesis response (spec requires exactly one).
	SynthesisRetries int `yaml:"synthesis_retries"`

	// GPURecommendationCap / ModelRecommendationCap bound the plan.
	GPURecommendationCap   int `yaml:"gpu_recommendation_cap"`
	ModelRecommendationCap int `yaml:"model_recommendation_cap"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Directory  string          `yaml:"directory"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "stack8s",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			BaseURL:        "https://api.openai.com/v1",
			IndexModelName: "text-embedding-3-small",
			ChunkerVersion: "hf_chunker_v1",
		},

		Catalog: CatalogConfig{
			DatabasePath: "data/catalog.db",
		},

		Retrieval: RetrievalConfig{
			ComputeTopK:      10,
			K8sTopK:          15,
			HFTopK:           5,
			ChunkOversample:  50,
			RelevanceWeight:  0.6,
			PopularityWeight: 0.4,
		},

		Agent: AgentConfig{
			HistoryWindow:          10,
			ExternalCallTimeout:    "60s",
			SynthesisRetries:       1,
			GPURecommendationCap:   3,
			ModelRecommendationCap: 5,
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Directory: ".stack8s/logs",
		},
	}
}

// Load reads a YAML config file, applying defaults for absent fields
// and environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyEnvOverrides(cfg)
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets API keys come from the environment so they
// stay out of config files.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STACK8S_OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
	}
	if v := os.Getenv("STACK8S_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("STACK8S_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("STACK8S_DB_PATH"); v != "" {
		cfg.Catalog.DatabasePath = v
	}
}

// LLMTimeout parses the configured LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	return parseDurationOr(c.LLM.Timeout, 120*time.Second)
}

// ExternalCallTimeout parses the per-call timeout for external I/O.
func (c *Config) ExternalCallTimeout() time.Duration {
	return parseDurationOr(c.Agent.ExternalCallTimeout, 60*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
