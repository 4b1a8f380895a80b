// Package agents implements the two-stage conversational pipeline: the
// requirements extractor that decides between asking questions and
// emitting a workload specification, and the architect that turns a
// specification plus retrieval results into a deployment plan.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stack8s/internal/llm"
	"stack8s/internal/logging"
	"stack8s/internal/types"
)

// =============================================================================
// REQUIREMENTS EXTRACTOR
// =============================================================================

// ExtractorState is the per-turn gathering state. It is derived from
// the current history on every turn, never carried forward, so a turn
// that introduces ambiguity can regress READY back to GATHERING.
type ExtractorState string

const (
	StateGathering ExtractorState = "gathering"
	StateReady     ExtractorState = "ready"
)

// Extraction is the extractor's per-turn output. Questions is populated
// only in GATHERING; Spec is meaningful only in READY.
type Extraction struct {
	State     ExtractorState
	Spec      types.WorkloadSpec
	Questions []types.ClarificationQuestion
}

// RequirementsExtractor turns conversation history into either a
// workload specification or clarifying questions.
type RequirementsExtractor struct {
	client        llm.LLMClient
	historyWindow int
}

// NewRequirementsExtractor creates an extractor. historyWindow bounds
// how many trailing turns the model sees (10 when <=0).
func NewRequirementsExtractor(client llm.LLMClient, historyWindow int) *RequirementsExtractor {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	return &RequirementsExtractor{client: client, historyWindow: historyWindow}
}

type extractorResponse struct {
	Spec      types.WorkloadSpec            `json:"spec"`
	Questions []types.ClarificationQuestion `json:"questions"`
}

// Extract re-evaluates the conversation and gates on confidence: READY
// requires medium-or-better confidence and all critical fields set,
// anything less stays GATHERING with one to three questions.
func (e *RequirementsExtractor) Extract(ctx context.Context, history []types.ConversationTurn) (Extraction, error) {
	timer := logging.StartTimer(logging.CategoryAgents, "RequirementsExtractor.Extract")
	defer timer.Stop()

	transcript := renderTranscript(history, e.historyWindow)

	raw, err := e.client.CompleteWithSystem(ctx, extractorSystemPrompt, transcript)
	if err != nil {
		return Extraction{}, &types.SynthesisError{Stage: "extract", Err: err}
	}

	parsed, perr := parseExtractorResponse(raw)
	if perr != nil {
		// An unparseable extraction is not fatal to the conversation:
		// stay in GATHERING and ask the default questions.
		logging.AgentsError("Extractor output unparseable, falling back to gathering: %v", perr)
		return Extraction{
			State:     StateGathering,
			Questions: clampQuestions(nil),
		}, nil
	}

	spec := parsed.Spec
	spec.Confidence = types.NormalizeConfidence(string(spec.Confidence))

	ready := spec.Confidence != types.ConfidenceLow && spec.CriticalFieldsSet()
	if ready {
		logging.Agents("Extractor READY: task=%s domain=%s confidence=%s", spec.TaskType, spec.Domain, spec.Confidence)
		return Extraction{State: StateReady, Spec: spec}, nil
	}

	questions := clampQuestions(parsed.Questions)
	logging.Agents("Extractor GATHERING: confidence=%s critical_set=%v questions=%d",
		spec.Confidence, spec.CriticalFieldsSet(), len(questions))
	return Extraction{State: StateGathering, Spec: spec, Questions: questions}, nil
}

func parseExtractorResponse(raw string) (extractorResponse, error) {
	var parsed extractorResponse

	obj, err := types.ExtractJSON(raw)
	if err != nil {
		return parsed, err
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return parsed, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return parsed, nil
}

// clampQuestions enforces the 1..3 question contract: empty input gets
// the defaults, oversized input keeps the first three.
func clampQuestions(qs []types.ClarificationQuestion) []types.ClarificationQuestion {
	kept := make([]types.ClarificationQuestion, 0, 3)
	for _, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		kept = append(kept, q)
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) > 0 {
		return kept
	}

	out := make([]types.ClarificationQuestion, len(defaultClarifyingQuestions))
	for i, q := range defaultClarifyingQuestions {
		out[i] = types.ClarificationQuestion{Question: q}
	}
	return out
}

// renderTranscript formats the last window turns for the model.
func renderTranscript(history []types.ConversationTurn, window int) string {
	if len(history) > window {
		history = history[len(history)-window:]
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range history {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}
