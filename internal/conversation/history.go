// Package conversation owns the turn loop: per-conversation history,
// routing between the gathering and planning stages, and the mapping of
// internal failures onto user-safe error turns.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"stack8s/internal/types"
)

// =============================================================================
// HISTORY STORE
// =============================================================================

// HistoryStore persists ordered conversation turns. Implementations
// must assign ordinals in append order and return turns sorted by
// ordinal.
type HistoryStore interface {
	// Create starts a new conversation and returns its id.
	Create() string

	// Append adds a turn to an existing conversation. Returns a
	// StateError for unknown ids.
	Append(conversationID string, role types.Role, content string) error

	// History returns all turns in ordinal order. Returns a StateError
	// for unknown ids.
	History(conversationID string) ([]types.ConversationTurn, error)
}

// MemoryHistoryStore keeps conversations in process memory. Suitable
// for the CLI, where one process owns one user's conversations.
type MemoryHistoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]types.ConversationTurn
}

// NewMemoryHistoryStore creates an empty in-memory store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{conversations: make(map[string][]types.ConversationTurn)}
}

// Create implements HistoryStore.
func (s *MemoryHistoryStore) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.conversations[id] = nil
	s.mu.Unlock()
	return id
}

// Append implements HistoryStore.
func (s *MemoryHistoryStore) Append(conversationID string, role types.Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.conversations[conversationID]
	if !ok {
		return &types.StateError{ConversationID: conversationID}
	}
	s.conversations[conversationID] = append(turns, types.ConversationTurn{
		Role:      role,
		Content:   content,
		Ordinal:   len(turns),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// History implements HistoryStore.
func (s *MemoryHistoryStore) History(conversationID string) ([]types.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.conversations[conversationID]
	if !ok {
		return nil, &types.StateError{ConversationID: conversationID}
	}
	out := make([]types.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}
