// Package tools implements the retrieval tools the architect calls
// during plan synthesis: compute instance search, Kubernetes package
// search, HuggingFace model search, and the local cluster probe. Every
// tool returns a result envelope carrying ranked entries plus metadata
// about what was searched, and renders to a deterministic text block
// for prompt assembly.
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
// COMPUTE SEARCH TOOL
// =============================================================================

// ComputeQuery is a typed compute search request. Nil pointer fields
// impose no constraint.
type ComputeQuery struct {
	GPUNeeded       *bool    `json:"gpu_needed,omitempty"`
	MinVRAMGB       *int     `json:"min_vram_gb,omitempty"`
	GPUModel        string   `json:"gpu_model,omitempty"`
	MaxPriceMonthly *float64 `json:"max_price_monthly,omitempty"`
	Provider        string   `json:"provider,omitempty"`
	Region          string   `json:"region,omitempty"`
	MinVCPU         *int     `json:"min_vcpu,omitempty"`
	MinRAMGB        *float64 `json:"min_ram_gb,omitempty"`
	TopK            int      `json:"top_k,omitempty"`
}

// ComputeMetadata describes what a compute search did.
type ComputeMetadata struct {
	TotalFound     int                    `json:"total_found"`
	TopK           int                    `json:"top_k"`
	FiltersApplied map[string]interface{} `json:"filters_applied"`
}

// ComputeResult is the compute search envelope.
type ComputeResult struct {
	Results  types.Ranked[types.ComputeRecord] `json:"results"`
	Metadata ComputeMetadata                   `json:"metadata"`
}

// ComputeTool searches the compute catalog with structured filters and
// deterministic ranking.
type ComputeTool struct {
	store       catalog.Store
	ranker      *ranking.StructuredRanker
	defaultTopK int
}

// NewComputeTool creates a compute search tool.
func NewComputeTool(store catalog.Store, defaultTopK int) *ComputeTool {
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &ComputeTool{
		store:       store,
		ranker:      ranking.NewStructuredRanker(defaultTopK),
		defaultTopK: defaultTopK,
	}
}

// Search runs a compute query. An empty result set is a valid outcome;
// only invalid queries and store failures produce errors.
func (t *ComputeTool) Search(ctx context.Context, q ComputeQuery) (ComputeResult, error) {
	timer := logging.StartTimer(logging.CategoryTools, "ComputeTool.Search")
	defer timer.Stop()

	if err := q.validate(); err != nil {
		return ComputeResult{}, err
	}

	topK := q.TopK
	if topK <= 0 {
		topK = t.defaultTopK
	}
	filter := q.filter()

	candidates, err := t.store.QueryInstances(ctx, filter)
	if err != nil {
		return ComputeResult{}, &types.RetrievalError{Source: "compute", Err: err}
	}

	full := t.ranker.Rank(candidates, filter, len(candidates))
	logging.Tools("Compute search: %d candidates, %d matched, top_k=%d", len(candidates), full.Len(), topK)

	return ComputeResult{
		Results: full.Truncate(topK),
		Metadata: ComputeMetadata{
			TotalFound:     full.Len(),
			TopK:           topK,
			FiltersApplied: q.appliedFilters(),
		},
	}, nil
}

func (q ComputeQuery) validate() error {
	if q.MinVRAMGB != nil && *q.MinVRAMGB < 0 {
		return &types.ValidationError{Field: "min_vram_gb", Reason: "must not be negative"}
	}
	if q.MaxPriceMonthly != nil && *q.MaxPriceMonthly < 0 {
		return &types.ValidationError{Field: "max_price_monthly", Reason: "must not be negative"}
	}
	if q.MinVCPU != nil && *q.MinVCPU < 0 {
		return &types.ValidationError{Field: "min_vcpu", Reason: "must not be negative"}
	}
	if q.MinRAMGB != nil && *q.MinRAMGB < 0 {
		return &types.ValidationError{Field: "min_ram_gb", Reason: "must not be negative"}
	}
	if q.TopK < 0 {
		return &types.ValidationError{Field: "top_k", Reason: "must not be negative"}
	}
	return nil
}

func (q ComputeQuery) filter() ranking.ComputeFilter {
	return ranking.ComputeFilter{
		GPUNeeded:       q.GPUNeeded,
		MinVRAMGB:       q.MinVRAMGB,
		GPUModel:        q.GPUModel,
		MaxPriceMonthly: q.MaxPriceMonthly,
		Provider:        q.Provider,
		Region:          q.Region,
		MinVCPU:         q.MinVCPU,
		MinRAMGB:        q.MinRAMGB,
	}
}

// appliedFilters echoes only the constraints that were actually set.
func (q ComputeQuery) appliedFilters() map[string]interface{} {
	out := make(map[string]interface{})
	if q.GPUNeeded != nil {
		out["gpu_needed"] = *q.GPUNeeded
	}
	if q.MinVRAMGB != nil {
		out["min_vram_gb"] = *q.MinVRAMGB
	}
	if q.GPUModel != "" {
		out["gpu_model"] = q.GPUModel
	}
	if q.MaxPriceMonthly != nil {
		out["max_price_monthly"] = *q.MaxPriceMonthly
	}
	if q.Provider != "" {
		out["provider"] = q.Provider
	}
	if q.Region != "" {
		out["region"] = q.Region
	}
	if q.MinVCPU != nil {
		out["min_vcpu"] = *q.MinVCPU
	}
	if q.MinRAMGB != nil {
		out["min_ram_gb"] = *q.MinRAMGB
	}
	return out
}

// RenderForLLM renders the result deterministically for prompt
// assembly. The same result always renders to the same bytes.
func (r ComputeResult) RenderForLLM() string {
	if r.Results.Len() == 0 {
		return "No compute instances found matching the criteria."
	}

	lines := []string{"Found compute instances (ranked by best fit):"}
	for _, item := range r.Results.Items() {
		rec := item.Value

		gpuInfo := "No GPU"
		if rec.GPUCount > 0 {
			model := rec.GPUModel
			if model == "" {
				model = "GPU"
			}
			gpuInfo = fmt.Sprintf("%dx %s (%dGB VRAM each)", rec.GPUCount, model, rec.VRAMPerGPUGB)
		}

		lines = append(lines, fmt.Sprintf(
			"%d. %s - %s | %s | %d vCPU, %.1fGB RAM | $%.2f/mo",
			item.Rank, rec.Provider, rec.Name, gpuInfo, rec.VCPU, rec.RAMGB, rec.PriceMonthly,
		))
	}
	return strings.Join(lines, "\n")
}
