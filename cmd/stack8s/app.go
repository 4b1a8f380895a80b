package main

import (
	"fmt"

	"go.uber.org/zap"

	"stack8s/internal/agents"
	"stack8s/internal/catalog"
	"stack8s/internal/conversation"
	"stack8s/internal/embedding"
	"stack8s/internal/llm"
	"stack8s/internal/tools"
)

// app holds the wired planner components for one CLI invocation.
type app struct {
	store      *catalog.SQLiteStore
	engine     embedding.EmbeddingEngine
	compute    *tools.ComputeTool
	k8s        *tools.K8sTool
	hf         *tools.HFTool
	controller *conversation.Controller
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// openStore opens the catalog database alone, for commands that do not
// need the full agent stack.
func openStore() (*catalog.SQLiteStore, error) {
	return catalog.NewSQLiteStore(
		cfg.Catalog.DatabasePath,
		cfg.Embedding.IndexModelName,
		cfg.Embedding.ChunkerVersion,
	)
}

func newEmbeddingEngine() (embedding.EmbeddingEngine, error) {
	return embedding.NewEngine(embedding.Config{
		Provider:    cfg.Embedding.Provider,
		APIKey:      cfg.Embedding.APIKey,
		Model:       cfg.Embedding.Model,
		BaseURL:     cfg.Embedding.BaseURL,
		GenAIAPIKey: cfg.Embedding.APIKey,
		GenAIModel:  cfg.Embedding.Model,
	})
}

// buildApp wires the full stack from the loaded config.
func buildApp() (*app, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}

	engine, err := newEmbeddingEngine()
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.LLM.APIKey == "" {
		store.Close()
		return nil, fmt.Errorf("no LLM API key configured (set STACK8S_OPENAI_API_KEY or llm.api_key)")
	}
	client := llm.NewOpenAIClientWithConfig(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	})

	computeTool := tools.NewComputeTool(store, cfg.Retrieval.ComputeTopK)
	k8sTool := tools.NewK8sTool(store, cfg.Retrieval.K8sTopK)
	hfTool := tools.NewHFTool(store, engine,
		cfg.Retrieval.RelevanceWeight, cfg.Retrieval.PopularityWeight,
		cfg.Retrieval.ChunkOversample, cfg.Retrieval.HFTopK)

	extractor := agents.NewRequirementsExtractor(client, cfg.Agent.HistoryWindow)
	architect := agents.NewArchitectOrchestrator(client, computeTool, k8sTool, hfTool,
		tools.StubProbe{}, agents.ArchitectConfig{
			ExternalCallTimeout: cfg.ExternalCallTimeout(),
			SynthesisRetries:    cfg.Agent.SynthesisRetries,
			GPUCap:              cfg.Agent.GPURecommendationCap,
			ModelCap:            cfg.Agent.ModelRecommendationCap,
		})

	controller := conversation.NewController(conversation.NewMemoryHistoryStore(), extractor, architect)

	logger.Debug("Planner wired",
		zap.String("db", cfg.Catalog.DatabasePath),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("embedding", engine.Name()))

	return &app{
		store:      store,
		engine:     engine,
		compute:    computeTool,
		k8s:        k8sTool,
		hf:         hfTool,
		controller: controller,
	}, nil
}
