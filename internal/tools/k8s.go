package tools

import (
	"context"
	"fmt"
	"strings"

	"stack8s/internal/catalog"
	"stack8s/internal/logging"
	"stack8s/internal/ranking"
	"stack8s/internal/types"
)

// =============================================================================
// KUBERNETES PACKAGE SEARCH TOOL
// =============================================================================

// K8sQuery is a typed package search request.
type K8sQuery struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// K8sMetadata describes what a package search did.
type K8sMetadata struct {
	TotalFound int    `json:"total_found"`
	TopK       int    `json:"top_k"`
	Query      string `json:"query"`
}

// K8sResult is the package search envelope.
type K8sResult struct {
	Results  types.Ranked[ranking.ScoredPackage] `json:"results"`
	Metadata K8sMetadata                         `json:"metadata"`
}

// K8sTool searches the package catalog with tiered keyword matching
// and full-text relevance.
type K8sTool struct {
	store       catalog.Store
	ranker      *ranking.LexicalRanker
	defaultTopK int
}

// NewK8sTool creates a package search tool.
func NewK8sTool(store catalog.Store, defaultTopK int) *K8sTool {
	if defaultTopK <= 0 {
		defaultTopK = 15
	}
	return &K8sTool{
		store:       store,
		ranker:      ranking.NewLexicalRanker(defaultTopK),
		defaultTopK: defaultTopK,
	}
}

// Search runs a package query. Blank queries are rejected; a query that
// matches nothing yields an empty result, not an error.
func (t *K8sTool) Search(ctx context.Context, q K8sQuery) (K8sResult, error) {
	timer := logging.StartTimer(logging.CategoryTools, "K8sTool.Search")
	defer timer.Stop()

	query := strings.TrimSpace(q.Query)
	if query == "" {
		return K8sResult{}, &types.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if q.TopK < 0 {
		return K8sResult{}, &types.ValidationError{Field: "top_k", Reason: "must not be negative"}
	}

	topK := q.TopK
	if topK <= 0 {
		topK = t.defaultTopK
	}

	candidates, err := t.store.QueryPackages(ctx, query)
	if err != nil {
		return K8sResult{}, &types.RetrievalError{Source: "k8s", Err: err}
	}

	full := t.ranker.Rank(candidates, query, len(candidates))
	logging.Tools("K8s search %q: %d candidates, %d scored, top_k=%d", query, len(candidates), full.Len(), topK)

	return K8sResult{
		Results: full.Truncate(topK),
		Metadata: K8sMetadata{
			TotalFound: full.Len(),
			TopK:       topK,
			Query:      query,
		},
	}, nil
}

// RenderForLLM renders the result deterministically for prompt assembly.
func (r K8sResult) RenderForLLM() string {
	if r.Results.Len() == 0 {
		return "No Kubernetes packages found matching the query."
	}

	lines := []string{"Found Kubernetes packages (Helm charts):"}
	for _, item := range r.Results.Items() {
		pkg := item.Value

		badge := ""
		if pkg.Official {
			badge = " [OFFICIAL]"
		}
		stars := ""
		if pkg.Stars > 0 {
			stars = fmt.Sprintf(" ⭐%d", pkg.Stars)
		}

		desc := pkg.Description
		if runes := []rune(desc); len(runes) > 100 {
			desc = string(runes[:97]) + "..."
		}
		version := pkg.Version
		if version == "" {
			version = "N/A"
		}

		lines = append(lines, fmt.Sprintf(
			"%d. %s%s%s | v%s | %s",
			item.Rank, pkg.Name, badge, stars, version, desc,
		))
	}
	return strings.Join(lines, "\n")
}
