// Package llm provides the chat-completion client used by the extractor
// and architect agents.
package llm

import "context"

// LLMClient is the minimal completion interface the agents depend on.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
