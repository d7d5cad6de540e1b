package memory

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
)

// ============================================================================
// Extended Memory Entity (premium tier)
// ============================================================================

// ExtendedMemory is one summarized conversation enriched for semantic
// lookup. Records are only ever created whole (no upsert); the backend
// assigns MemoryID and CreatedAt. A record without an embedding is
// excluded from similarity search but still listed chronologically.
// TTL, when set, is the Unix-millisecond instant after which the record
// is eligible for reclamation by an external sweeper.
type ExtendedMemory struct {
	MemoryID            kernel.MemoryID `json:"memoryId"`
	UserID              kernel.UserID   `json:"userId"`
	ConversationSummary string          `json:"conversationSummary"`
	Embedding           []float32       `json:"embedding,omitempty"`
	LearnedPatterns     map[string]any  `json:"learnedPatterns,omitempty"`
	EmotionalContext    *string         `json:"emotionalContext,omitempty"`
	Topics              []string        `json:"topics,omitempty"`
	CreatedAt           int64           `json:"createdAt"`
	TTL                 *int64          `json:"ttl,omitempty"`
}

// Validate rejects malformed records before any I/O
func (m *ExtendedMemory) Validate() error {
	if m.UserID.IsZero() {
		return ErrInvalidRecord("userId is required")
	}
	if m.ConversationSummary == "" {
		return ErrInvalidRecord("conversationSummary is required")
	}
	return nil
}

// ExtendedMemoryFilter selects extended memories for one user, ordered by
// createdAt.
type ExtendedMemoryFilter struct {
	UserID    kernel.UserID `json:"userId"`
	SortOrder SortOrder     `json:"sortOrder,omitempty"`
	Limit     int           `json:"limit,omitempty"`
}

func (f *ExtendedMemoryFilter) Validate() error {
	if f.UserID.IsZero() {
		return ErrInvalidFilter("userId is required")
	}
	if f.SortOrder != "" && !f.SortOrder.IsValid() {
		return ErrInvalidFilter("sortOrder must be asc or desc")
	}
	if f.Limit < 0 {
		return ErrInvalidFilter("limit must be >= 0")
	}
	return nil
}

// Order returns the effective sort order (newest first by default)
func (f *ExtendedMemoryFilter) Order() SortOrder {
	if f.SortOrder == "" {
		return SortDesc
	}
	return f.SortOrder
}

// MemoryMatch is one similarity-search result. Score is cosine similarity
// in [-1, 1], higher is closer.
type MemoryMatch struct {
	ExtendedMemory
	Score float64 `json:"score"`
}
