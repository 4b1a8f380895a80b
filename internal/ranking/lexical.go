package ranking

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"stack8s/internal/types"
)

// =============================================================================
// LEXICAL PACKAGE RANKER
// =============================================================================

// Keyword match tiers, strongest first. Tier dominates the sort:
// an exact name match is a stronger signal of intent than any
// statistical text relevance.
const (
	TierExactName  = 4
	TierNamePrefix = 3
	TierNameSubstr = 2
	TierDescSubstr = 1
	TierNone       = 0
)

// ScoredPackage is a package with its lexical signals attached.
type ScoredPackage struct {
	types.PackageRecord
	Tier      int     `json:"tier"`
	Relevance float64 `json:"relevance"`
}

// LexicalRanker ranks packages by keyword tier, then a
// document-frequency-weighted full-text relevance over the searchable
// text, then stars, official flag, and name.
type LexicalRanker struct {
	defaultTopK int
}

// NewLexicalRanker creates a ranker with the given default top-k.
func NewLexicalRanker(defaultTopK int) *LexicalRanker {
	if defaultTopK <= 0 {
		defaultTopK = 15
	}
	return &LexicalRanker{defaultTopK: defaultTopK}
}

// Rank scores and orders candidates for the query, capped to topK
// (<=0 uses the default). Records with zero keyword tier and zero
// full-text relevance are excluded.
func (r *LexicalRanker) Rank(candidates []types.PackageRecord, query string, topK int) types.Ranked[ScoredPackage] {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTerms := tokenize(queryLower)

	// Document frequency across the candidate pool.
	df := make(map[string]int, len(queryTerms))
	docTerms := make([]map[string]int, len(candidates))
	for i, pkg := range candidates {
		counts := termCounts(searchableText(pkg))
		docTerms[i] = counts
		for _, term := range queryTerms {
			if counts[term] > 0 {
				df[term]++
			}
		}
	}

	n := float64(len(candidates))
	scored := make([]ScoredPackage, 0, len(candidates))
	for i, pkg := range candidates {
		tier := keywordTier(pkg, queryLower)

		var relevance float64
		for _, term := range queryTerms {
			tf := docTerms[i][term]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + n/float64(1+df[term]))
			relevance += idf * (1 + math.Log(float64(tf)))
		}

		if tier == TierNone && relevance == 0 {
			continue
		}
		scored = append(scored, ScoredPackage{PackageRecord: pkg, Tier: tier, Relevance: relevance})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return lexicalLess(scored[i], scored[j])
	})

	return types.NewRanked(scored).Truncate(topK)
}

// keywordTier classifies the substring match into exactly one tier,
// evaluated in precedence order.
func keywordTier(pkg types.PackageRecord, queryLower string) int {
	if queryLower == "" {
		return TierNone
	}
	nameLower := strings.ToLower(pkg.Name)
	switch {
	case nameLower == queryLower:
		return TierExactName
	case strings.HasPrefix(nameLower, queryLower):
		return TierNamePrefix
	case strings.Contains(nameLower, queryLower):
		return TierNameSubstr
	case strings.Contains(strings.ToLower(pkg.Description), queryLower):
		return TierDescSubstr
	default:
		return TierNone
	}
}

// lexicalLess: tier desc, relevance desc, stars desc, official first,
// name ascending.
func lexicalLess(a, b ScoredPackage) bool {
	if a.Tier != b.Tier {
		return a.Tier > b.Tier
	}
	if a.Relevance != b.Relevance {
		return a.Relevance > b.Relevance
	}
	if a.Stars != b.Stars {
		return a.Stars > b.Stars
	}
	if a.Official != b.Official {
		return a.Official
	}
	return strings.ToLower(a.Name) < strings.ToLower(b.Name)
}

// searchableText returns the precomputed searchable representation,
// falling back to name + description for catalogs without one.
func searchableText(pkg types.PackageRecord) string {
	if pkg.SearchText != "" {
		return pkg.SearchText
	}
	return pkg.Name + " " + pkg.Description
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termCounts(s string) map[string]int {
	counts := make(map[string]int)
	for _, term := range tokenize(s) {
		counts[term]++
	}
	return counts
}
