package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"stack8s/internal/agents"
	"stack8s/internal/types"
)

func TestMain(m *testing.M) {
	// opencensus starts a background stats worker at init via the genai
	// dependency chain; it never exits.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// scriptedExtractor returns its extractions in sequence.
type scriptedExtractor struct {
	extractions []agents.Extraction
	err         error
	calls       int
}

func (s *scriptedExtractor) Extract(ctx context.Context, history []types.ConversationTurn) (agents.Extraction, error) {
	s.calls++
	if s.err != nil {
		return agents.Extraction{}, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.extractions) {
		idx = len(s.extractions) - 1
	}
	return s.extractions[idx], nil
}

type scriptedPlanner struct {
	plan  *types.DeploymentPlan
	err   error
	calls int
	panic bool
}

func (s *scriptedPlanner) Plan(ctx context.Context, spec types.WorkloadSpec) (*types.DeploymentPlan, error) {
	s.calls++
	if s.panic {
		panic("planner exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}

func gatheringExtraction(questions ...string) agents.Extraction {
	qs := make([]types.ClarificationQuestion, len(questions))
	for i, q := range questions {
		qs[i] = types.ClarificationQuestion{Question: q}
	}
	return agents.Extraction{State: agents.StateGathering, Questions: qs}
}

func readyExtraction() agents.Extraction {
	gpu := true
	return agents.Extraction{
		State: agents.StateReady,
		Spec: types.WorkloadSpec{
			TaskType:   "llm-inference",
			Domain:     "chatbot",
			GPUNeeded:  &gpu,
			Confidence: types.ConfidenceHigh,
		},
	}
}

func samplePlan() *types.DeploymentPlan {
	return &types.DeploymentPlan{
		Understanding: "Serve a chatbot.",
		GPURecommendations: []types.GPURecommendation{
			{Rank: 1, Provider: "aws", InstanceName: "g5.xlarge", GPUModel: "A10G", GPUCount: 1, VRAMPerGPUGB: 24, TotalVRAMGB: 24, VCPU: 4, RAMGB: 16, PriceMonthly: 730},
		},
		DeploymentSteps: []string{"Provision the instance"},
	}
}

func TestController_ClarificationTurn(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{extractions: []agents.Extraction{
		gatheringExtraction("What are you deploying?", "Do you need GPUs?"),
	}}
	planner := &scriptedPlanner{plan: samplePlan()}
	ctrl := NewController(store, extractor, planner)

	id := ctrl.StartConversation()
	resp, err := ctrl.HandleTurn(context.Background(), id, "hi there")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.ResponseType != types.ResponseClarification {
		t.Fatalf("response type = %q, want clarification", resp.ResponseType)
	}
	if !strings.Contains(resp.ResponseText, "What are you deploying?") {
		t.Fatalf("response missing question: %q", resp.ResponseText)
	}
	if planner.calls != 0 {
		t.Fatalf("planner calls = %d, want 0 while gathering", planner.calls)
	}
}

func TestController_PlanTurn(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{extractions: []agents.Extraction{readyExtraction()}}
	planner := &scriptedPlanner{plan: samplePlan()}
	ctrl := NewController(store, extractor, planner)

	id := ctrl.StartConversation()
	resp, err := ctrl.HandleTurn(context.Background(), id, "llm inference chatbot on gpu")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.ResponseType != types.ResponseDeploymentPlan {
		t.Fatalf("response type = %q, want deployment_plan", resp.ResponseType)
	}
	if resp.DeploymentPlan == nil || len(resp.DeploymentPlan.GPURecommendations) != 1 {
		t.Fatalf("response missing structured plan: %+v", resp.DeploymentPlan)
	}
	if !strings.Contains(resp.ResponseText, "g5.xlarge") {
		t.Fatalf("rendered plan missing instance: %q", resp.ResponseText)
	}
}

func TestController_BothTurnsRecorded(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{extractions: []agents.Extraction{gatheringExtraction("q?")}}
	ctrl := NewController(store, extractor, &scriptedPlanner{})

	id := ctrl.StartConversation()
	if _, err := ctrl.HandleTurn(context.Background(), id, "first message"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	history, err := store.History(id)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d turns, want user + assistant", len(history))
	}
	if history[0].Role != types.RoleUser || history[1].Role != types.RoleAssistant {
		t.Fatalf("roles = %q, %q", history[0].Role, history[1].Role)
	}
	if history[0].Ordinal != 0 || history[1].Ordinal != 1 {
		t.Fatalf("ordinals = %d, %d", history[0].Ordinal, history[1].Ordinal)
	}
}

func TestController_UnknownConversation(t *testing.T) {
	ctrl := NewController(NewMemoryHistoryStore(), &scriptedExtractor{}, &scriptedPlanner{})

	_, err := ctrl.HandleTurn(context.Background(), "no-such-id", "hello")
	var serr *types.StateError
	if !errors.As(err, &serr) || serr.ConversationID != "no-such-id" {
		t.Fatalf("error = %v, want StateError with the id", err)
	}
}

func TestController_ExtractorFailureBecomesErrorTurn(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{err: &types.SynthesisError{Stage: "extract", Err: errors.New("boom")}}
	ctrl := NewController(store, extractor, &scriptedPlanner{})

	id := ctrl.StartConversation()
	resp, err := ctrl.HandleTurn(context.Background(), id, "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, internal failures must not surface", err)
	}
	if resp.ResponseType != types.ResponseError {
		t.Fatalf("response type = %q, want error", resp.ResponseType)
	}
	if strings.Contains(resp.ResponseText, "boom") {
		t.Fatalf("user-facing text leaks internals: %q", resp.ResponseText)
	}

	history, _ := store.History(id)
	if len(history) != 2 {
		t.Fatalf("history = %d turns, error replies must be recorded too", len(history))
	}
}

func TestController_RetrievalFailureNamesTheSource(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{extractions: []agents.Extraction{readyExtraction()}}
	planner := &scriptedPlanner{err: &types.RetrievalError{Source: "compute", Err: errors.New("db locked")}}
	ctrl := NewController(store, extractor, planner)

	id := ctrl.StartConversation()
	resp, err := ctrl.HandleTurn(context.Background(), id, "plan it")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.ResponseType != types.ResponseError {
		t.Fatalf("response type = %q, want error", resp.ResponseType)
	}
	if !strings.Contains(resp.ResponseText, "compute") {
		t.Fatalf("error reply should name the failing catalog: %q", resp.ResponseText)
	}
}

func TestController_PanicRecoveredAsErrorTurn(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{extractions: []agents.Extraction{readyExtraction()}}
	ctrl := NewController(store, extractor, &scriptedPlanner{panic: true})

	id := ctrl.StartConversation()
	resp, err := ctrl.HandleTurn(context.Background(), id, "plan it")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, panics must be recovered", err)
	}
	if resp.ResponseType != types.ResponseError {
		t.Fatalf("response type = %q, want error", resp.ResponseType)
	}

	// The conversation must remain usable after the panic.
	extractor.extractions = []agents.Extraction{gatheringExtraction("still here?")}
	resp, err = ctrl.HandleTurn(context.Background(), id, "are you ok?")
	if err != nil || resp.ResponseType != types.ResponseClarification {
		t.Fatalf("follow-up turn = (%v, %q), want clarification", err, resp.ResponseType)
	}
}

func TestController_ConversationsAreIsolated(t *testing.T) {
	store := NewMemoryHistoryStore()
	extractor := &scriptedExtractor{extractions: []agents.Extraction{gatheringExtraction("q?")}}
	ctrl := NewController(store, extractor, &scriptedPlanner{})

	a := ctrl.StartConversation()
	b := ctrl.StartConversation()
	if a == b {
		t.Fatal("conversation ids must be unique")
	}

	if _, err := ctrl.HandleTurn(context.Background(), a, "only in a"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	historyB, err := store.History(b)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(historyB) != 0 {
		t.Fatalf("conversation b has %d turns, want 0", len(historyB))
	}
}

func TestRenderPlan_CoversSections(t *testing.T) {
	plan := samplePlan()
	plan.Assumptions = []string{"single region"}
	plan.ModelRecommendations = []types.ModelRecommendation{{Rank: 1, ModelID: "org/llama", License: "apache-2.0"}}
	plan.KubernetesStack = []types.K8sPackagePick{{Name: "kserve", Official: true, Description: "model serving"}}
	plan.CostEstimate = map[string]interface{}{"monthly_usd": 730.0}
	plan.Tradeoffs = []string{"tight VRAM"}

	text := RenderPlan(plan)
	for _, want := range []string{
		"# Deployment Plan", "Serve a chatbot.",
		"single region", "g5.xlarge", "org/llama", "kserve", "[official]",
		"Provision the instance", "730", "tight VRAM",
		"No local Kubernetes cluster was detected",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("rendered plan missing %q:\n%s", want, text)
		}
	}
}

func TestMemoryHistoryStore_AppendUnknownID(t *testing.T) {
	store := NewMemoryHistoryStore()
	err := store.Append("ghost", types.RoleUser, "hi")
	var serr *types.StateError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want StateError", err)
	}
}
