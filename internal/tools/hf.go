package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"stack8s/internal/catalog"
	"stack8s/internal/embedding"
	"stack8s/internal/logging"
	"stack8s/internal/ranking"
	"stack8s/internal/types"
)

// =============================================================================
// HUGGINGFACE MODEL SEARCH TOOL
// =============================================================================

// HFQuery is a typed model search request.
type HFQuery struct {
	Query        string   `json:"query"`
	PipelineTag  string   `json:"pipeline_tag,omitempty"`
	LicenseAllow []string `json:"license_allow,omitempty"`
	TopK         int      `json:"top_k,omitempty"`
}

// HFMetadata describes what a model search did.
type HFMetadata struct {
	TotalFound     int                    `json:"total_found"`
	TopK           int                    `json:"top_k"`
	Query          string                 `json:"query"`
	FiltersApplied map[string]interface{} `json:"filters_applied"`
}

// HFResult is the model search envelope.
type HFResult struct {
	Results  types.Ranked[ranking.ScoredModel] `json:"results"`
	Metadata HFMetadata                        `json:"metadata"`
}

// HFTool searches the model catalog: embed the query, retrieve nearby
// card chunks, aggregate to models, and rerank by relevance and
// popularity. Only the query embedding call is non-deterministic
// infrastructure; everything after it is a pure function of the chunks.
type HFTool struct {
	chunks      catalog.ChunkStore
	engine      embedding.EmbeddingEngine
	aggregator  *ranking.VectorAggregator
	oversample  int
	defaultTopK int
}

// NewHFTool creates a model search tool. oversample is how many chunks
// to retrieve before aggregation (50 when <=0).
func NewHFTool(chunks catalog.ChunkStore, engine embedding.EmbeddingEngine, relevanceWeight, popularityWeight float64, oversample, defaultTopK int) *HFTool {
	if oversample <= 0 {
		oversample = 50
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &HFTool{
		chunks:      chunks,
		engine:      engine,
		aggregator:  ranking.NewVectorAggregator(relevanceWeight, popularityWeight, defaultTopK),
		oversample:  oversample,
		defaultTopK: defaultTopK,
	}
}

// Search runs a model query end to end.
func (t *HFTool) Search(ctx context.Context, q HFQuery) (HFResult, error) {
	timer := logging.StartTimer(logging.CategoryTools, "HFTool.Search")
	defer timer.Stop()

	query := strings.TrimSpace(q.Query)
	if query == "" {
		return HFResult{}, &types.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if q.TopK < 0 {
		return HFResult{}, &types.ValidationError{Field: "top_k", Reason: "must not be negative"}
	}

	topK := q.TopK
	if topK <= 0 {
		topK = t.defaultTopK
	}
	metadata := HFMetadata{
		TopK:           topK,
		Query:          query,
		FiltersApplied: q.appliedFilters(),
	}

	queryEmbedding, err := t.engine.Embed(ctx, query)
	if err != nil {
		return HFResult{}, &types.RetrievalError{Source: "embedding", Err: err}
	}

	chunks, err := t.chunks.NearestChunks(ctx, queryEmbedding, t.oversample)
	if err != nil {
		return HFResult{}, &types.RetrievalError{Source: "hf", Err: err}
	}
	if len(chunks) == 0 {
		logging.Tools("HF search %q: no chunks in index", query)
		return HFResult{Metadata: metadata}, nil
	}

	hashes := uniqueCardHashes(chunks)
	models, err := t.chunks.ModelsForCards(ctx, hashes)
	if err != nil {
		return HFResult{}, &types.RetrievalError{Source: "hf", Err: err}
	}

	filters := ranking.ModelFilters{
		PipelineTag:  q.PipelineTag,
		LicenseAllow: q.LicenseAllow,
	}
	full := t.aggregator.Aggregate(chunks, models, filters, len(models))
	logging.Tools("HF search %q: %d chunks, %d cards, %d models ranked, top_k=%d",
		query, len(chunks), len(hashes), full.Len(), topK)

	metadata.TotalFound = full.Len()
	return HFResult{
		Results:  full.Truncate(topK),
		Metadata: metadata,
	}, nil
}

func (q HFQuery) appliedFilters() map[string]interface{} {
	out := make(map[string]interface{})
	if q.PipelineTag != "" {
		out["pipeline_tag"] = q.PipelineTag
	}
	if len(q.LicenseAllow) > 0 {
		out["license_allow"] = q.LicenseAllow
	}
	return out
}

// uniqueCardHashes preserves first-seen order, which follows chunk
// similarity order.
func uniqueCardHashes(chunks []types.ScoredChunk) []string {
	seen := make(map[string]bool, len(chunks))
	var out []string
	for _, c := range chunks {
		if !seen[c.CardHash] {
			seen[c.CardHash] = true
			out = append(out, c.CardHash)
		}
	}
	return out
}

// RenderForLLM renders the result deterministically for prompt assembly.
func (r HFResult) RenderForLLM() string {
	if r.Results.Len() == 0 {
		return "No HuggingFace models found matching the query."
	}

	lines := []string{"Found HuggingFace models (ranked by relevance + popularity):"}
	for _, item := range r.Results.Items() {
		m := item.Value

		license := m.License
		if license == "" {
			license = "Unknown"
		}
		task := m.PipelineTag
		if task == "" {
			task = "N/A"
		}

		lines = append(lines, fmt.Sprintf(
			"%d. %s | Task: %s | License: %s | %s downloads, %s likes | Relevance: %.2f",
			item.Rank, m.ModelID, task, license,
			groupThousands(m.Downloads), groupThousands(m.Likes), m.CombinedScore,
		))
	}
	return strings.Join(lines, "\n")
}

// groupThousands formats 1234567 as "1,234,567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	out := b.String()
	if neg {
		out = "-" + out
	}
	return out
}
