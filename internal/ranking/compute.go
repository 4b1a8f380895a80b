// Package ranking implements the three deterministic rankers behind the
// retrieval tools: the structured compute ranker, the lexical package
// ranker, and the vector aggregator for model-card RAG. All three are
// pure functions of their inputs so retries against an unchanged
// catalog reproduce byte-identical output.
package ranking

import (
	"math"
	"sort"
	"strings"

	"stack8s/internal/types"
)

// =============================================================================
// STRUCTURED COMPUTE RANKER
// =============================================================================

// ComputeFilter is the predicate set for compute instance search.
// Nil pointer fields impose no constraint.
type ComputeFilter struct {
	GPUNeeded       *bool
	MinVRAMGB       *int
	GPUModel        string
	MaxPriceMonthly *float64
	Provider        string
	Region          string
	MinVCPU         *int
	MinRAMGB        *float64
}

// StructuredRanker ranks compute instances deterministically.
//
// Ranking criteria (in order):
//  1. Price ascending (cheaper first)
//  2. Total VRAM descending
//  3. GPU count descending
//  4. Provider name ascending (case-insensitive)
//  5. Instance name ascending (case-insensitive)
//
// Ties after all five keys retain original catalog order.
type StructuredRanker struct {
	defaultTopK int
}

// NewStructuredRanker creates a ranker with the given default top-k.
func NewStructuredRanker(defaultTopK int) *StructuredRanker {
	if defaultTopK <= 0 {
		defaultTopK = 10
	}
	return &StructuredRanker{defaultTopK: defaultTopK}
}

// Rank filters and orders candidates, capped to topK (<=0 uses the
// default). An empty result is a valid "no match" outcome, not an error.
func (r *StructuredRanker) Rank(candidates []types.ComputeRecord, filter ComputeFilter, topK int) types.Ranked[types.ComputeRecord] {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	matched := make([]types.ComputeRecord, 0, len(candidates))
	for _, rec := range candidates {
		if MatchesComputeFilter(rec, filter) {
			matched = append(matched, rec)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return computeLess(matched[i], matched[j])
	})

	return types.NewRanked(matched).Truncate(topK)
}

// MatchesComputeFilter reports whether a record satisfies every
// provided predicate. Absent predicates impose no constraint.
func MatchesComputeFilter(rec types.ComputeRecord, f ComputeFilter) bool {
	if f.GPUNeeded != nil {
		if *f.GPUNeeded && rec.GPUCount < 1 {
			return false
		}
		if !*f.GPUNeeded && rec.GPUCount != 0 {
			return false
		}
	}
	if f.MinVRAMGB != nil && rec.VRAMPerGPUGB < *f.MinVRAMGB {
		return false
	}
	if f.GPUModel != "" && !strings.Contains(strings.ToLower(rec.GPUModel), strings.ToLower(f.GPUModel)) {
		return false
	}
	if f.MaxPriceMonthly != nil && rec.PriceMonthly > *f.MaxPriceMonthly {
		return false
	}
	if f.Provider != "" && !strings.EqualFold(rec.Provider, f.Provider) {
		return false
	}
	if f.Region != "" && !containsFold(rec.Regions, f.Region) {
		return false
	}
	if f.MinVCPU != nil && rec.VCPU < *f.MinVCPU {
		return false
	}
	if f.MinRAMGB != nil && rec.RAMGB < *f.MinRAMGB {
		return false
	}
	return true
}

// computeLess is the strict 5-key comparator; the first differing key
// decides.
func computeLess(a, b types.ComputeRecord) bool {
	pa, pb := effectivePrice(a), effectivePrice(b)
	if pa != pb {
		return pa < pb
	}
	if a.TotalVRAMGB() != b.TotalVRAMGB() {
		return a.TotalVRAMGB() > b.TotalVRAMGB()
	}
	if a.GPUCount != b.GPUCount {
		return a.GPUCount > b.GPUCount
	}
	ap, bp := strings.ToLower(a.Provider), strings.ToLower(b.Provider)
	if ap != bp {
		return ap < bp
	}
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	return an < bn
}

// effectivePrice sorts unpriced records last.
func effectivePrice(r types.ComputeRecord) float64 {
	if r.PriceMonthly <= 0 {
		return math.MaxFloat64
	}
	return r.PriceMonthly
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}
