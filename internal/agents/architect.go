package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"stack8s/internal/llm"
	"stack8s/internal/logging"
	"stack8s/internal/tools"
	"stack8s/internal/types"
)

// =============================================================================
// ARCHITECT ORCHESTRATOR
// =============================================================================

// ComputeSearcher, K8sSearcher and HFSearcher are the retrieval
// surfaces the architect depends on.
type ComputeSearcher interface {
	Search(ctx context.Context, q tools.ComputeQuery) (tools.ComputeResult, error)
}

type K8sSearcher interface {
	Search(ctx context.Context, q tools.K8sQuery) (tools.K8sResult, error)
}

type HFSearcher interface {
	Search(ctx context.Context, q tools.HFQuery) (tools.HFResult, error)
}

// ArchitectConfig bounds the architect's external calls and output.
type ArchitectConfig struct {
	ExternalCallTimeout time.Duration
	SynthesisRetries    int
	GPUCap              int
	ModelCap            int
}

// ArchitectOrchestrator turns a READY workload specification into a
// deployment plan: probe the local cluster, fan retrieval out across
// the catalogs, then make a single synthesis call over the results.
type ArchitectOrchestrator struct {
	client  llm.LLMClient
	compute ComputeSearcher
	k8s     K8sSearcher
	hf      HFSearcher
	probe   tools.ClusterProbe
	cfg     ArchitectConfig
}

// NewArchitectOrchestrator wires the architect.
func NewArchitectOrchestrator(client llm.LLMClient, compute ComputeSearcher, k8s K8sSearcher, hf HFSearcher, probe tools.ClusterProbe, cfg ArchitectConfig) *ArchitectOrchestrator {
	if cfg.ExternalCallTimeout <= 0 {
		cfg.ExternalCallTimeout = 60 * time.Second
	}
	if cfg.SynthesisRetries < 0 {
		cfg.SynthesisRetries = 0
	}
	if cfg.GPUCap <= 0 {
		cfg.GPUCap = 3
	}
	if cfg.ModelCap <= 0 {
		cfg.ModelCap = 5
	}
	return &ArchitectOrchestrator{
		client:  client,
		compute: compute,
		k8s:     k8s,
		hf:      hf,
		probe:   probe,
		cfg:     cfg,
	}
}

// retrieval holds the fan-out results handed to synthesis.
type retrieval struct {
	cluster tools.ClusterStatus
	compute tools.ComputeResult
	hf      tools.HFResult
	hfRan   bool
	k8s     []tools.K8sResult
}

func (r retrieval) allEmpty() bool {
	if r.compute.Results.Len() > 0 || r.hf.Results.Len() > 0 {
		return false
	}
	for _, kr := range r.k8s {
		if kr.Results.Len() > 0 {
			return false
		}
	}
	return true
}

// Plan produces a deployment plan for a READY specification.
func (a *ArchitectOrchestrator) Plan(ctx context.Context, spec types.WorkloadSpec) (*types.DeploymentPlan, error) {
	timer := logging.StartTimer(logging.CategoryAgents, "ArchitectOrchestrator.Plan")
	defer timer.Stop()

	ret, err := a.retrieve(ctx, spec)
	if err != nil {
		return nil, err
	}

	if ret.allEmpty() {
		logging.Agents("All retrievals empty, emitting gap plan")
		return a.gapPlan(spec, ret.cluster), nil
	}

	plan, err := a.synthesize(ctx, spec, ret)
	if err != nil {
		return nil, err
	}

	a.enforce(plan, ret)
	return plan, nil
}

// retrieve runs the probe and then fans retrieval out. Compute always
// runs; HF only when the spec names model needs; K8s queries come from
// the spec or the task-type defaults. A tool that fails recovers to an
// empty result so synthesis can still ground on the others; only a
// total failure, every tool erroring, propagates.
func (a *ArchitectOrchestrator) retrieve(ctx context.Context, spec types.WorkloadSpec) (retrieval, error) {
	var ret retrieval

	probeCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
	ret.cluster = a.probe.Check(probeCtx)
	cancel()

	k8sQueries := spec.KubernetesNeeds
	if len(k8sQueries) == 0 {
		k8sQueries = k8sQueriesFor(spec.TaskType)
	}
	ret.k8s = make([]tools.K8sResult, len(k8sQueries))
	ret.hfRan = spec.ModelNeeds != ""

	var (
		computeErr error
		hfErr      error
		k8sErrs    = make([]error, len(k8sQueries))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		callCtx, cancel := context.WithTimeout(gctx, a.cfg.ExternalCallTimeout)
		defer cancel()
		res, err := a.compute.Search(callCtx, computeQueryFrom(spec))
		if err != nil {
			computeErr = err
			return nil
		}
		ret.compute = res
		return nil
	})

	if ret.hfRan {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.cfg.ExternalCallTimeout)
			defer cancel()
			res, err := a.hf.Search(callCtx, tools.HFQuery{Query: spec.ModelNeeds})
			if err != nil {
				hfErr = err
				return nil
			}
			ret.hf = res
			return nil
		})
	}

	for i, query := range k8sQueries {
		i, query := i, query
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.cfg.ExternalCallTimeout)
			defer cancel()
			res, err := a.k8s.Search(callCtx, tools.K8sQuery{Query: query})
			if err != nil {
				k8sErrs[i] = err
				return nil
			}
			ret.k8s[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return ret, err
	}

	searches := 1 + len(k8sQueries)
	if ret.hfRan {
		searches++
	}
	var failed []error
	for _, err := range append([]error{computeErr, hfErr}, k8sErrs...) {
		if err != nil {
			failed = append(failed, err)
			logging.AgentsError("Retrieval tool failed, continuing with empty results: %v", err)
		}
	}
	if len(failed) == searches {
		return ret, failed[0]
	}

	logging.Agents("Retrieval done: compute=%d hf=%d (ran=%v) k8s_queries=%d failures=%d",
		ret.compute.Results.Len(), ret.hf.Results.Len(), ret.hfRan, len(k8sQueries), len(failed))
	return ret, nil
}

// computeQueryFrom maps the spec's constraint fields onto a compute
// query. Preference lists carry only their first entry; the catalogs
// are searched per provider and region, not across sets.
func computeQueryFrom(spec types.WorkloadSpec) tools.ComputeQuery {
	q := tools.ComputeQuery{
		GPUNeeded:       spec.GPUNeeded,
		MinVRAMGB:       spec.MinVRAMGB,
		MaxPriceMonthly: spec.BudgetMonthly,
	}
	if len(spec.GPUModelPreference) > 0 {
		q.GPUModel = spec.GPUModelPreference[0]
	}
	if len(spec.ProviderPreference) > 0 {
		q.Provider = spec.ProviderPreference[0]
	}
	if len(spec.RegionPreference) > 0 {
		q.Region = spec.RegionPreference[0]
	}
	return q
}

// synthesize makes the single LLM call, with a bounded retry when the
// output fails to parse as a plan.
func (a *ArchitectOrchestrator) synthesize(ctx context.Context, spec types.WorkloadSpec, ret retrieval) (*types.DeploymentPlan, error) {
	prompt := synthesisPrompt(spec, ret)

	var lastErr error
	for attempt := 0; attempt <= a.cfg.SynthesisRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.ExternalCallTimeout)
		raw, err := a.client.CompleteWithSystem(callCtx, architectSystemPrompt, prompt)
		cancel()
		if err != nil {
			return nil, &types.SynthesisError{Stage: "synthesize", Err: err}
		}

		obj, err := types.ExtractJSON(raw)
		if err != nil {
			lastErr = err
			logging.AgentsError("Synthesis output had no JSON object (attempt %d): %v", attempt+1, err)
			continue
		}
		var plan types.DeploymentPlan
		if err := json.Unmarshal([]byte(obj), &plan); err != nil {
			lastErr = fmt.Errorf("failed to decode plan: %w", err)
			logging.AgentsError("Synthesis output undecodable (attempt %d): %v", attempt+1, err)
			continue
		}
		return &plan, nil
	}

	return nil, &types.SynthesisError{Stage: "synthesize", Err: lastErr}
}

// synthesisPrompt assembles the spec and every retrieval block in a
// fixed order so identical inputs produce identical prompts.
func synthesisPrompt(spec types.WorkloadSpec, ret retrieval) string {
	specJSON, _ := json.MarshalIndent(spec, "", "  ")

	var b strings.Builder
	b.WriteString("Workload specification:\n")
	b.Write(specJSON)
	b.WriteString("\n\nLocal cluster:\n")
	b.WriteString(ret.cluster.RenderForLLM())
	b.WriteString("\n\nCompute search results:\n")
	b.WriteString(ret.compute.RenderForLLM())
	if ret.hfRan {
		b.WriteString("\n\nHuggingFace model search results:\n")
		b.WriteString(ret.hf.RenderForLLM())
	}
	for _, kr := range ret.k8s {
		b.WriteString("\n\nKubernetes package search results for \"")
		b.WriteString(kr.Metadata.Query)
		b.WriteString("\":\n")
		b.WriteString(kr.RenderForLLM())
	}
	b.WriteString("\n\nProduce the deployment plan JSON now.")
	return b.String()
}

// enforce applies the output contract the model cannot be trusted
// with: recommendation caps, sequential ranks, backfilled lists when
// the model returned none despite matching retrievals, and the probe's
// cluster flag.
func (a *ArchitectOrchestrator) enforce(plan *types.DeploymentPlan, ret retrieval) {
	if len(plan.GPURecommendations) == 0 && ret.compute.Results.Len() > 0 {
		plan.GPURecommendations = gpuRecommendationsFrom(ret.compute, a.cfg.GPUCap)
	}
	if len(plan.GPURecommendations) > a.cfg.GPUCap {
		plan.GPURecommendations = plan.GPURecommendations[:a.cfg.GPUCap]
	}
	for i := range plan.GPURecommendations {
		plan.GPURecommendations[i].Rank = i + 1
	}

	if len(plan.ModelRecommendations) == 0 && ret.hf.Results.Len() > 0 {
		plan.ModelRecommendations = modelRecommendationsFrom(ret.hf, a.cfg.ModelCap)
	}
	if len(plan.ModelRecommendations) > a.cfg.ModelCap {
		plan.ModelRecommendations = plan.ModelRecommendations[:a.cfg.ModelCap]
	}
	for i := range plan.ModelRecommendations {
		plan.ModelRecommendations[i].Rank = i + 1
	}

	plan.LocalClusterAvailable = ret.cluster.Connected
}

func gpuRecommendationsFrom(res tools.ComputeResult, limit int) []types.GPURecommendation {
	var out []types.GPURecommendation
	for _, item := range res.Results.Items() {
		if len(out) == limit {
			break
		}
		rec := item.Value
		out = append(out, types.GPURecommendation{
			Rank:         item.Rank,
			Provider:     rec.Provider,
			InstanceName: rec.Name,
			GPUModel:     rec.GPUModel,
			GPUCount:     rec.GPUCount,
			VRAMPerGPUGB: rec.VRAMPerGPUGB,
			TotalVRAMGB:  rec.TotalVRAMGB(),
			VCPU:         rec.VCPU,
			RAMGB:        rec.RAMGB,
			PriceMonthly: rec.PriceMonthly,
			PriceHourly:  rec.PriceHourly,
			Regions:      rec.Regions,
		})
	}
	return out
}

func modelRecommendationsFrom(res tools.HFResult, limit int) []types.ModelRecommendation {
	var out []types.ModelRecommendation
	for _, item := range res.Results.Items() {
		if len(out) == limit {
			break
		}
		m := item.Value
		out = append(out, types.ModelRecommendation{
			Rank:           item.Rank,
			ModelID:        m.ModelID,
			PipelineTag:    m.PipelineTag,
			License:        m.License,
			Downloads:      m.Downloads,
			Likes:          m.Likes,
			RelevanceScore: m.CombinedScore,
		})
	}
	return out
}

// gapPlan is the deterministic response when every catalog came back
// empty: no LLM call, no invented recommendations, just an explicit
// statement of what is missing.
func (a *ArchitectOrchestrator) gapPlan(spec types.WorkloadSpec, cluster tools.ClusterStatus) *types.DeploymentPlan {
	understanding := fmt.Sprintf("You want to deploy a %s workload", spec.TaskType)
	if spec.Domain != "" {
		understanding += fmt.Sprintf(" for %s", spec.Domain)
	}
	understanding += "."

	return &types.DeploymentPlan{
		Understanding: understanding,
		Assumptions: []string{
			"No matching compute instances, models, or Kubernetes packages were found in the catalogs.",
		},
		DeploymentSteps: []string{
			"Review the catalog coverage for this workload's requirements.",
			"Relax the most restrictive constraints (budget, VRAM, provider, region) and try again.",
		},
		Tradeoffs: []string{
			"No concrete recommendations can be made until the catalogs return candidates.",
		},
		LocalClusterAvailable: cluster.Connected,
	}
}
