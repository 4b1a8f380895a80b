package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stack8s/internal/agents"
	"stack8s/internal/logging"
	"stack8s/internal/types"
)

// =============================================================================
// CONVERSATION CONTROLLER
// =============================================================================

// Extractor is the gathering stage the controller routes through.
type Extractor interface {
	Extract(ctx context.Context, history []types.ConversationTurn) (agents.Extraction, error)
}

// Planner is the planning stage invoked once the extraction is READY.
type Planner interface {
	Plan(ctx context.Context, spec types.WorkloadSpec) (*types.DeploymentPlan, error)
}

// Controller drives one conversation turn at a time. Each turn is
// re-evaluated from the stored history, so there is no per-conversation
// state machine beyond the history itself.
type Controller struct {
	store     HistoryStore
	extractor Extractor
	planner   Planner
}

// NewController wires the turn loop.
func NewController(store HistoryStore, extractor Extractor, planner Planner) *Controller {
	return &Controller{store: store, extractor: extractor, planner: planner}
}

// StartConversation opens a new conversation and returns its id.
func (c *Controller) StartConversation() string {
	id := c.store.Create()
	logging.Session("Conversation started: %s", id)
	return id
}

// HandleTurn processes one user message. Unknown conversation ids
// surface as a StateError; every other failure becomes an error turn so
// the conversation can continue. Both the user message and the
// assistant reply are always recorded.
func (c *Controller) HandleTurn(ctx context.Context, conversationID, message string) (resp types.TurnResponse, err error) {
	timer := logging.StartTimer(logging.CategorySession, "Controller.HandleTurn")
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategorySession).Error("Panic in HandleTurn: %v", r)
			resp, err = c.errorTurn(conversationID, fmt.Errorf("internal error: %v", r)), nil
		}
	}()

	if err := c.store.Append(conversationID, types.RoleUser, message); err != nil {
		return types.TurnResponse{}, err
	}
	history, err := c.store.History(conversationID)
	if err != nil {
		return types.TurnResponse{}, err
	}

	extraction, err := c.extractor.Extract(ctx, history)
	if err != nil {
		return c.errorTurn(conversationID, err), nil
	}

	if extraction.State == agents.StateGathering {
		text := renderQuestions(extraction.Questions)
		c.recordAssistant(conversationID, text)
		logging.Session("Turn answered with clarification (%d questions)", len(extraction.Questions))
		return types.TurnResponse{
			ConversationID: conversationID,
			ResponseText:   text,
			ResponseType:   types.ResponseClarification,
		}, nil
	}

	plan, err := c.planner.Plan(ctx, extraction.Spec)
	if err != nil {
		return c.errorTurn(conversationID, err), nil
	}

	text := RenderPlan(plan)
	c.recordAssistant(conversationID, text)
	logging.Session("Turn answered with deployment plan (%d gpu, %d model, %d k8s)",
		len(plan.GPURecommendations), len(plan.ModelRecommendations), len(plan.KubernetesStack))
	return types.TurnResponse{
		ConversationID: conversationID,
		ResponseText:   text,
		ResponseType:   types.ResponseDeploymentPlan,
		DeploymentPlan: plan,
	}, nil
}

// errorTurn records a user-safe error reply and returns it. The
// conversation stays usable afterwards.
func (c *Controller) errorTurn(conversationID string, cause error) types.TurnResponse {
	logging.Get(logging.CategorySession).Error("Turn failed: %v", cause)
	text := userSafeMessage(cause)
	c.recordAssistant(conversationID, text)
	return types.TurnResponse{
		ConversationID: conversationID,
		ResponseText:   text,
		ResponseType:   types.ResponseError,
	}
}

func (c *Controller) recordAssistant(conversationID, text string) {
	if err := c.store.Append(conversationID, types.RoleAssistant, text); err != nil {
		logging.Get(logging.CategorySession).Error("Failed to record assistant turn: %v", err)
	}
}

// userSafeMessage maps the error taxonomy onto a reply that names the
// failing stage without leaking internals.
func userSafeMessage(err error) string {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return fmt.Sprintf("I couldn't run that search: invalid %s (%s). Please rephrase and try again.", verr.Field, verr.Reason)
	}
	var rerr *types.RetrievalError
	if errors.As(err, &rerr) {
		return fmt.Sprintf("I couldn't reach the %s catalog just now. Please try again in a moment.", rerr.Source)
	}
	var serr *types.SynthesisError
	if errors.As(err, &serr) {
		if serr.Stage == "extract" {
			return "I had trouble understanding the requirements this turn. Could you restate what you want to deploy?"
		}
		return "I gathered the catalog results but couldn't assemble a plan this turn. Please try again."
	}
	return "Something went wrong processing that message. Please try again."
}

// =============================================================================
// RENDERING
// =============================================================================

// renderQuestions formats clarifying questions as the assistant reply.
func renderQuestions(questions []types.ClarificationQuestion) string {
	var b strings.Builder
	b.WriteString("I need a few more details before I can recommend a setup:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, q.Question)
	}
	return b.String()
}

// RenderPlan formats a deployment plan as markdown. The CLI pipes this
// through its terminal renderer; other transports can use it as-is.
func RenderPlan(plan *types.DeploymentPlan) string {
	var b strings.Builder

	b.WriteString("# Deployment Plan\n\n")
	b.WriteString(plan.Understanding)
	b.WriteString("\n")

	if len(plan.Assumptions) > 0 {
		b.WriteString("\n## Assumptions\n\n")
		for _, a := range plan.Assumptions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	if len(plan.GPURecommendations) > 0 {
		b.WriteString("\n## Compute\n\n")
		for _, rec := range plan.GPURecommendations {
			gpu := "CPU only"
			if rec.GPUCount > 0 {
				gpu = fmt.Sprintf("%dx %s (%dGB VRAM each, %dGB total)",
					rec.GPUCount, rec.GPUModel, rec.VRAMPerGPUGB, rec.TotalVRAMGB)
			}
			fmt.Fprintf(&b, "%d. **%s %s** - %s, %d vCPU, %.0fGB RAM, $%.2f/mo\n",
				rec.Rank, rec.Provider, rec.InstanceName, gpu, rec.VCPU, rec.RAMGB, rec.PriceMonthly)
			if rec.Reasoning != "" {
				fmt.Fprintf(&b, "   %s\n", rec.Reasoning)
			}
		}
	}

	if len(plan.ModelRecommendations) > 0 {
		b.WriteString("\n## Models\n\n")
		for _, rec := range plan.ModelRecommendations {
			fmt.Fprintf(&b, "%d. **%s**", rec.Rank, rec.ModelID)
			if rec.License != "" {
				fmt.Fprintf(&b, " (%s)", rec.License)
			}
			b.WriteString("\n")
			if rec.Reasoning != "" {
				fmt.Fprintf(&b, "   %s\n", rec.Reasoning)
			}
		}
	}

	if len(plan.KubernetesStack) > 0 {
		b.WriteString("\n## Kubernetes Stack\n\n")
		for _, pkg := range plan.KubernetesStack {
			fmt.Fprintf(&b, "- **%s**", pkg.Name)
			if pkg.Official {
				b.WriteString(" [official]")
			}
			if pkg.Description != "" {
				fmt.Fprintf(&b, " - %s", pkg.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(plan.DeploymentSteps) > 0 {
		b.WriteString("\n## Steps\n\n")
		for i, step := range plan.DeploymentSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}

	if len(plan.CostEstimate) > 0 {
		b.WriteString("\n## Cost\n\n")
		if v, ok := plan.CostEstimate["monthly_usd"]; ok {
			fmt.Fprintf(&b, "Estimated monthly cost: $%v\n", v)
		}
		if v, ok := plan.CostEstimate["notes"]; ok {
			fmt.Fprintf(&b, "%v\n", v)
		}
	}

	if len(plan.Tradeoffs) > 0 {
		b.WriteString("\n## Tradeoffs\n\n")
		for _, tr := range plan.Tradeoffs {
			fmt.Fprintf(&b, "- %s\n", tr)
		}
	}

	if plan.LocalClusterAvailable {
		b.WriteString("\nA local Kubernetes cluster was detected; the stack above can be installed there.\n")
	} else {
		b.WriteString("\nNo local Kubernetes cluster was detected; provision one on the recommended compute first.\n")
	}

	return b.String()
}
