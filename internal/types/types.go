// Package types defines the domain records shared across the planner:
// catalog rows, the extracted workload specification, ranked results,
// and the deployment plan produced by the architect stage.
package types

import (
	"encoding/json"
	"time"
)

// =============================================================================
// CATALOG RECORDS
// =============================================================================

// ComputeRecord is a cloud compute instance row from the catalog.
type ComputeRecord struct {
	ID           string   `json:"id"`
	Provider     string   `json:"provider"`
	Name         string   `json:"name"`
	InstanceType string   `json:"instance_type"`
	VCPU         int      `json:"vcpu"`
	RAMGB        float64  `json:"ram_gb"`
	GPUCount     int      `json:"gpu_count"`
	GPUModel     string   `json:"gpu_model"`
	VRAMPerGPUGB int      `json:"vram_per_gpu_gb"`
	PriceMonthly float64  `json:"price_monthly"`
	PriceHourly  float64  `json:"price_hourly"`
	Regions      []string `json:"regions"`
	Description  string   `json:"description,omitempty"`
}

// TotalVRAMGB returns the aggregate VRAM across all GPUs.
func (r ComputeRecord) TotalVRAMGB() int {
	return r.GPUCount * r.VRAMPerGPUGB
}

// PackageRecord is a Kubernetes/Helm package row from the catalog.
// Name is unique within the catalog. SearchText is the precomputed
// searchable representation used for full-text relevance scoring.
type PackageRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Category    string `json:"category"`
	Official    bool   `json:"official"`
	Deprecated  bool   `json:"deprecated"`
	Stars       int    `json:"stars"`
	SearchText  string `json:"search_text"`
}

// ModelRecord is a HuggingFace model row from the catalog. It relates
// to documentation chunks through CardHash; several model ids can share
// one card.
type ModelRecord struct {
	ModelID     string `json:"model_id"`
	PipelineTag string `json:"pipeline_tag"`
	License     string `json:"license"`
	Downloads   int64  `json:"downloads"`
	Likes       int64  `json:"likes"`
	CardHash    string `json:"card_hash"`
}

// ScoredChunk is a model-card chunk with its query-dependent cosine
// similarity. The similarity is never persisted.
type ScoredChunk struct {
	CardHash   string  `json:"card_hash"`
	ChunkText  string  `json:"chunk_text"`
	Similarity float64 `json:"similarity"`
}

// =============================================================================
// RANKED RESULTS
// =============================================================================

// RankedItem pairs an entry with its 1-based rank position.
type RankedItem[T any] struct {
	Rank  int `json:"rank"`
	Value T   `json:"value"`
}

// Ranked is the ordered output of a ranking pipeline. Insertion order
// is the ranking; an empty Ranked is a valid "no match" outcome.
type Ranked[T any] struct {
	items []T
}

// NewRanked builds a ranked result from an already-ordered slice.
func NewRanked[T any](ordered []T) Ranked[T] {
	return Ranked[T]{items: ordered}
}

// Len returns the number of ranked entries.
func (r Ranked[T]) Len() int { return len(r.items) }

// Values returns the entries in rank order.
func (r Ranked[T]) Values() []T { return r.items }

// Items returns rank-annotated entries (rank starts at 1).
func (r Ranked[T]) Items() []RankedItem[T] {
	out := make([]RankedItem[T], len(r.items))
	for i, v := range r.items {
		out[i] = RankedItem[T]{Rank: i + 1, Value: v}
	}
	return out
}

// MarshalJSON emits the rank-annotated entries.
func (r Ranked[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Items())
}

// Truncate returns a copy capped to at most n entries.
func (r Ranked[T]) Truncate(n int) Ranked[T] {
	if n < 0 || n >= len(r.items) {
		return r
	}
	return Ranked[T]{items: r.items[:n]}
}

// =============================================================================
// WORKLOAD SPECIFICATION
// =============================================================================

// Confidence is the extractor's self-reported confidence level. It is
// model-provided and treated as opaque; values outside the known set
// normalize to low.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// NormalizeConfidence maps arbitrary model output onto the known set.
func NormalizeConfidence(s string) Confidence {
	switch Confidence(s) {
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceHigh:
		return ConfidenceHigh
	default:
		return ConfidenceLow
	}
}

// WorkloadSpec is the structured extraction of a user's deployment
// requirements. Pointer fields distinguish "unset" from zero values;
// the extractor's gating logic depends on that distinction for the
// critical fields (TaskType, Domain, GPUNeeded).
type WorkloadSpec struct {
	TaskType           string     `json:"task_type,omitempty"`
	Domain             string     `json:"domain,omitempty"`
	GPUNeeded          *bool      `json:"gpu_needed,omitempty"`
	MinVRAMGB          *int       `json:"min_vram_gb,omitempty"`
	GPUModelPreference []string   `json:"gpu_model_preference,omitempty"`
	BudgetMonthly      *float64   `json:"budget_monthly,omitempty"`
	BudgetConstraint   string     `json:"budget_constraint,omitempty"`
	RegionPreference   []string   `json:"region_preference,omitempty"`
	ProviderPreference []string   `json:"provider_preference,omitempty"`
	ModelNeeds         string     `json:"model_needs,omitempty"`
	KubernetesNeeds    []string   `json:"kubernetes_needs,omitempty"`
	ScaleRequirements  string     `json:"scale_requirements,omitempty"`
	Confidence         Confidence `json:"confidence_level,omitempty"`
	MissingFields      []string   `json:"missing_fields,omitempty"`
}

// CriticalFieldsSet reports whether task_type, domain and gpu_needed
// are all present. The extractor may not emit a spec without them.
func (s WorkloadSpec) CriticalFieldsSet() bool {
	return s.TaskType != "" && s.Domain != "" && s.GPUNeeded != nil
}

// ClarificationQuestion asks the user for one missing detail.
type ClarificationQuestion struct {
	Question  string `json:"question"`
	Field     string `json:"field"`
	WhyNeeded string `json:"why_needed,omitempty"`
}

// =============================================================================
// DEPLOYMENT PLAN
// =============================================================================

// GPURecommendation is one ranked compute pick inside a plan.
type GPURecommendation struct {
	Rank         int      `json:"rank"`
	Provider     string   `json:"provider"`
	InstanceName string   `json:"instance_name"`
	GPUModel     string   `json:"gpu_model"`
	GPUCount     int      `json:"gpu_count"`
	VRAMPerGPUGB int      `json:"vram_per_gpu_gb"`
	TotalVRAMGB  int      `json:"total_vram_gb"`
	VCPU         int      `json:"vcpu"`
	RAMGB        float64  `json:"ram_gb"`
	PriceMonthly float64  `json:"price_monthly"`
	PriceHourly  float64  `json:"price_hourly"`
	Regions      []string `json:"regions,omitempty"`
	Reasoning    string   `json:"reasoning,omitempty"`
}

// ModelRecommendation is one ranked HuggingFace model pick.
type ModelRecommendation struct {
	Rank           int     `json:"rank"`
	ModelID        string  `json:"model_id"`
	PipelineTag    string  `json:"pipeline_tag,omitempty"`
	License        string  `json:"license,omitempty"`
	Downloads      int64   `json:"downloads"`
	Likes          int64   `json:"likes"`
	RelevanceScore float64 `json:"relevance_score"`
	Reasoning      string  `json:"reasoning,omitempty"`
}

// K8sPackagePick is one recommended Kubernetes package.
type K8sPackagePick struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Category    string `json:"category,omitempty"`
	Official    bool   `json:"official"`
	Stars       int    `json:"stars"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// DeploymentPlan is the architect's structured output. It is created
// once per successful architect turn and never mutated afterwards; a
// later turn supersedes it with a new plan.
type DeploymentPlan struct {
	Understanding         string                 `json:"understanding"`
	Assumptions           []string               `json:"assumptions"`
	GPURecommendations    []GPURecommendation    `json:"gpu_recommendations"`
	ModelRecommendations  []ModelRecommendation  `json:"model_recommendations"`
	KubernetesStack       []K8sPackagePick       `json:"kubernetes_stack"`
	DeploymentSteps       []string               `json:"deployment_steps"`
	CostEstimate          map[string]interface{} `json:"cost_estimate,omitempty"`
	Tradeoffs             []string               `json:"tradeoffs,omitempty"`
	LocalClusterAvailable bool                   `json:"local_cluster_available"`
}

// =============================================================================
// CONVERSATION
// =============================================================================

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is one ordered message in a conversation. Ordinal
// positions are assigned by the history store.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Ordinal   int       `json:"ordinal"`
	CreatedAt time.Time `json:"created_at"`
}

// ResponseType classifies an assistant turn at the core boundary.
type ResponseType string

const (
	ResponseClarification  ResponseType = "clarification"
	ResponseDeploymentPlan ResponseType = "deployment_plan"
	ResponseError          ResponseType = "error"
)

// TurnResponse is what HandleTurn hands back to the transport layer.
type TurnResponse struct {
	ConversationID string          `json:"conversation_id"`
	ResponseText   string          `json:"response_text"`
	ResponseType   ResponseType    `json:"response_type"`
	DeploymentPlan *DeploymentPlan `json:"deployment_plan,omitempty"`
}
