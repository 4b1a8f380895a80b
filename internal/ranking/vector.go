package ranking

import (
	"math"
	"sort"

	"stack8s/internal/types"
)

// =============================================================================
// VECTOR AGGREGATOR (model-card RAG reranking)
// =============================================================================

// ScoredModel is a model with its reranking signals attached.
// CombinedScore always lies in [0,1].
type ScoredModel struct {
	types.ModelRecord
	RelevanceScore  float64 `json:"relevance_score"`
	PopularityScore float64 `json:"popularity_score"`
	CombinedScore   float64 `json:"combined_score"`
}

// ModelFilters are applied after scoring so they never distort the
// relative ranking of the surviving set.
type ModelFilters struct {
	PipelineTag  string
	LicenseAllow []string
}

// VectorAggregator merges chunk-level similarity scores into
// model-level scores and reranks by a fixed linear combination with a
// popularity signal. Weights are fixed at construction; popularity is
// normalized over the current candidate pool, not a global scale.
type VectorAggregator struct {
	relevanceWeight  float64
	popularityWeight float64
	defaultTopK      int
}

// NewVectorAggregator creates an aggregator with the given weights and
// default top-k. Zero weights fall back to 0.6/0.4.
func NewVectorAggregator(relevanceWeight, popularityWeight float64, defaultTopK int) *VectorAggregator {
	if relevanceWeight <= 0 && popularityWeight <= 0 {
		relevanceWeight, popularityWeight = 0.6, 0.4
	}
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &VectorAggregator{
		relevanceWeight:  relevanceWeight,
		popularityWeight: popularityWeight,
		defaultTopK:      defaultTopK,
	}
}

// Aggregate rolls chunk similarities up to models and reranks:
//
//  1. Max-aggregate chunk similarity per card hash (the single
//     best-matching chunk represents the card).
//  2. Attach each model's card score; a model whose card produced no
//     chunk hit is dropped.
//  3. Rescale relevance to [0,1] over the candidate pool.
//  4. Popularity per model: log(downloads+1) and log(likes+1), each
//     min-max rescaled over the pool, averaged.
//  5. Combined = relevanceWeight*relevance + popularityWeight*popularity.
//  6. Apply pipeline/license filters after scoring.
//  7. Sort combined descending, tie-break model_id ascending, cap topK.
//
// Zero chunks or a fully filtered pool yield an empty result.
func (v *VectorAggregator) Aggregate(chunks []types.ScoredChunk, models []types.ModelRecord, filters ModelFilters, topK int) types.Ranked[ScoredModel] {
	if topK <= 0 {
		topK = v.defaultTopK
	}
	if len(chunks) == 0 || len(models) == 0 {
		return types.NewRanked[ScoredModel](nil)
	}

	// 1. Max-aggregation per card.
	cardScore := make(map[string]float64)
	for _, c := range chunks {
		if existing, ok := cardScore[c.CardHash]; !ok || c.Similarity > existing {
			cardScore[c.CardHash] = c.Similarity
		}
	}

	// 2. Resolve models against card scores.
	pool := make([]ScoredModel, 0, len(models))
	for _, m := range models {
		score, ok := cardScore[m.CardHash]
		if !ok {
			continue
		}
		pool = append(pool, ScoredModel{ModelRecord: m, RelevanceScore: score})
	}
	if len(pool) == 0 {
		return types.NewRanked[ScoredModel](nil)
	}

	// 3. Normalize relevance over the pool.
	rel := make([]float64, len(pool))
	for i := range pool {
		rel[i] = pool[i].RelevanceScore
	}
	rel = rescale(rel)

	// 4. Popularity components, independently rescaled.
	logDownloads := make([]float64, len(pool))
	logLikes := make([]float64, len(pool))
	for i := range pool {
		logDownloads[i] = math.Log(float64(pool[i].Downloads) + 1)
		logLikes[i] = math.Log(float64(pool[i].Likes) + 1)
	}
	logDownloads = rescale(logDownloads)
	logLikes = rescale(logLikes)

	// 5. Combined score.
	for i := range pool {
		popularity := (logDownloads[i] + logLikes[i]) / 2
		pool[i].RelevanceScore = rel[i]
		pool[i].PopularityScore = popularity
		pool[i].CombinedScore = v.relevanceWeight*rel[i] + v.popularityWeight*popularity
	}

	// 6. Post-scoring filters.
	filtered := make([]ScoredModel, 0, len(pool))
	for _, m := range pool {
		if filters.PipelineTag != "" && m.PipelineTag != filters.PipelineTag {
			continue
		}
		if len(filters.LicenseAllow) > 0 && !containsFold(filters.LicenseAllow, m.License) {
			continue
		}
		filtered = append(filtered, m)
	}

	// 7. Deterministic order.
	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].CombinedScore != filtered[j].CombinedScore {
			return filtered[i].CombinedScore > filtered[j].CombinedScore
		}
		return filtered[i].ModelID < filtered[j].ModelID
	})

	return types.NewRanked(filtered).Truncate(topK)
}

// rescale min-max normalizes values to [0,1] over the slice. When all
// values are equal, a positive value maps to 1 and zero maps to 0.
func rescale(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(values))
	if maxV == minV {
		for i := range values {
			if maxV > 0 {
				out[i] = 1
			}
		}
		return out
	}
	for i, v := range values {
		out[i] = (v - minV) / (maxV - minV)
	}
	return out
}
