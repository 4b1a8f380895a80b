package types

import "fmt"

// Error taxonomy for the planner core. Ranking and filtering code never
// raises for "no matches" - an empty ranked result is a value. These
// types classify the failures that do occur so the conversation
// controller can map them to a user-safe error turn.

// ValidationError marks malformed query parameters, rejected before
// any ranker runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RetrievalError marks a catalog, embedding, or provider failure during
// retrieval. Partial failures recover to empty results; a total failure
// carries this error to the boundary.
type RetrievalError struct {
	Source string // "catalog", "embedding", "chunks"
	Err    error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval via %s failed: %v", e.Source, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// SynthesisError marks a failed or unparseable language-model call
// after the bounded retry has been exhausted.
type SynthesisError struct {
	Stage string // "extract" or "synthesize"
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("%s synthesis failed: %v", e.Stage, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// StateError marks an unknown conversation id. It is surfaced to the
// transport boundary rather than masked as an error turn.
type StateError struct {
	ConversationID string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("unknown conversation: %s", e.ConversationID)
}
