package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stack8s/internal/types"
)

// mockLLM replays scripted responses in order.
type mockLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

func (m *mockLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	m.prompts = append(m.prompts, userPrompt)
	if m.err != nil {
		return "", m.err
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func userTurn(content string) types.ConversationTurn {
	return types.ConversationTurn{Role: types.RoleUser, Content: content}
}

func TestExtractor_VagueMessageStaysGathering(t *testing.T) {
	client := &mockLLM{responses: []string{`{
		"spec": {"confidence_level": "low", "missing_fields": ["task_type", "gpu_needed"]},
		"questions": [
			{"question": "What are you deploying?", "field": "task_type"},
			{"question": "Do you need GPUs?", "field": "gpu_needed"}
		]
	}`}}
	extractor := NewRequirementsExtractor(client, 10)

	got, err := extractor.Extract(context.Background(), []types.ConversationTurn{userTurn("hi, I need some help")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.State != StateGathering {
		t.Fatalf("State = %q, want gathering", got.State)
	}
	if n := len(got.Questions); n < 1 || n > 3 {
		t.Fatalf("questions = %d, want 1..3", n)
	}
}

func TestExtractor_CompleteSpecIsReady(t *testing.T) {
	client := &mockLLM{responses: []string{"Here is the extraction:\n```json\n" + `{
		"spec": {
			"task_type": "llm-inference",
			"domain": "customer support chatbot",
			"gpu_needed": true,
			"min_vram_gb": 40,
			"budget_monthly": 1000,
			"model_needs": "llama chat model",
			"confidence_level": "high"
		},
		"questions": []
	}` + "\n```"}}
	extractor := NewRequirementsExtractor(client, 10)

	got, err := extractor.Extract(context.Background(), []types.ConversationTurn{
		userTurn("I want to serve a llama chatbot for customer support on a GPU, 40GB VRAM, $1000/mo budget"),
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.State != StateReady {
		t.Fatalf("State = %q, want ready", got.State)
	}
	if got.Spec.TaskType != "llm-inference" || got.Spec.GPUNeeded == nil || !*got.Spec.GPUNeeded {
		t.Fatalf("spec = %+v", got.Spec)
	}
	if got.Spec.Confidence != types.ConfidenceHigh {
		t.Fatalf("confidence = %q, want high", got.Spec.Confidence)
	}
}

func TestExtractor_HighConfidenceWithoutCriticalFieldsStaysGathering(t *testing.T) {
	client := &mockLLM{responses: []string{`{
		"spec": {"task_type": "llm-inference", "domain": "chat", "confidence_level": "high"},
		"questions": [{"question": "GPU or CPU?", "field": "gpu_needed"}]
	}`}}
	extractor := NewRequirementsExtractor(client, 10)

	got, err := extractor.Extract(context.Background(), []types.ConversationTurn{userTurn("serving chat")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.State != StateGathering {
		t.Fatalf("State = %q, want gathering (gpu_needed unset)", got.State)
	}
}

func TestExtractor_UnknownConfidenceTreatedAsLow(t *testing.T) {
	client := &mockLLM{responses: []string{`{
		"spec": {"task_type": "llm-inference", "domain": "chat", "gpu_needed": true, "confidence_level": "very sure"},
		"questions": []
	}`}}
	extractor := NewRequirementsExtractor(client, 10)

	got, err := extractor.Extract(context.Background(), []types.ConversationTurn{userTurn("serving chat on gpu")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.State != StateGathering {
		t.Fatalf("State = %q, want gathering (opaque confidence normalizes to low)", got.State)
	}
}

func TestExtractor_UnparseableOutputFallsBackToDefaults(t *testing.T) {
	client := &mockLLM{responses: []string{"I think you should use GPUs for this."}}
	extractor := NewRequirementsExtractor(client, 10)

	got, err := extractor.Extract(context.Background(), []types.ConversationTurn{userTurn("help")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got.State != StateGathering {
		t.Fatalf("State = %q, want gathering", got.State)
	}
	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d, want 3 defaults", len(got.Questions))
	}
}

func TestExtractor_ClampsQuestionCount(t *testing.T) {
	client := &mockLLM{responses: []string{`{
		"spec": {"confidence_level": "low"},
		"questions": [
			{"question": "q1"}, {"question": "q2"}, {"question": "q3"},
			{"question": "q4"}, {"question": "q5"}
		]
	}`}}
	extractor := NewRequirementsExtractor(client, 10)

	got, err := extractor.Extract(context.Background(), []types.ConversationTurn{userTurn("hello")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(got.Questions))
	}
	if got.Questions[0].Question != "q1" {
		t.Fatalf("first question = %q, want q1", got.Questions[0].Question)
	}
}

func TestExtractor_LLMFailure(t *testing.T) {
	client := &mockLLM{err: errors.New("upstream down")}
	extractor := NewRequirementsExtractor(client, 10)

	_, err := extractor.Extract(context.Background(), []types.ConversationTurn{userTurn("hello")})
	var serr *types.SynthesisError
	if !errors.As(err, &serr) || serr.Stage != "extract" {
		t.Fatalf("error = %v, want SynthesisError from extract stage", err)
	}
}

func TestExtractor_HistoryWindowBounded(t *testing.T) {
	client := &mockLLM{responses: []string{`{"spec": {"confidence_level": "low"}, "questions": [{"question": "q"}]}`}}
	extractor := NewRequirementsExtractor(client, 3)

	var history []types.ConversationTurn
	for i := 0; i < 20; i++ {
		history = append(history, userTurn("old message"))
	}
	history = append(history, userTurn("newest message"))

	if _, err := extractor.Extract(context.Background(), history); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	prompt := client.prompts[0]
	if !strings.Contains(prompt, "newest message") {
		t.Fatalf("prompt missing newest turn")
	}
	if strings.Count(prompt, "old message") > 2 {
		t.Fatalf("prompt includes more than the trailing window")
	}
}
