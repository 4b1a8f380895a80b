package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_RetrievalDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Retrieval.ComputeTopK)
	assert.Equal(t, 15, cfg.Retrieval.K8sTopK)
	assert.Equal(t, 5, cfg.Retrieval.HFTopK)
	assert.Equal(t, 50, cfg.Retrieval.ChunkOversample)
	assert.InDelta(t, 0.6, cfg.Retrieval.RelevanceWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Retrieval.PopularityWeight, 1e-9)
	assert.Equal(t, 10, cfg.Agent.HistoryWindow)
	assert.Equal(t, 3, cfg.Agent.GPURecommendationCap)
	assert.Equal(t, 5, cfg.Agent.ModelRecommendationCap)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "stack8s", cfg.Name)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("retrieval:\n  compute_top_k: 3\nllm:\n  model: gpt-4o-mini\n  timeout: 30s\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retrieval.ComputeTopK)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
	// Untouched sections keep defaults.
	assert.Equal(t, 15, cfg.Retrieval.K8sTopK)
}

func TestLoad_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("STACK8S_OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestTimeoutFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "garbage"
	assert.Equal(t, 120*time.Second, cfg.LLMTimeout())

	cfg.Agent.ExternalCallTimeout = ""
	assert.Equal(t, 60*time.Second, cfg.ExternalCallTimeout())
}
