// Package memorysrv holds the business services on top of the storage
// contract: conversation lifecycle, the two memory tiers, and OAuth
// credential management.
package memorysrv

import (
	"context"
	"sync"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/logx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
)

const (
	// DefaultListLimit caps chronological listings when the caller does
	// not ask for a count.
	DefaultListLimit = 10

	// DefaultSearchLimit caps similarity search results
	DefaultSearchLimit = 5
)

// Embedder turns text into a vector for semantic search. Enrichment is
// best-effort: a failing embedder must never block a memory write.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// MemoryService owns both memory tiers. Core memory read-modify-write
// sequences (milestones, stage changes) serialize per user behind a
// keyed mutex; within a single process two concurrent writers cannot
// interleave. Across processes the relational and key-value backends
// still guarantee each individual update is atomic, so the worst case
// is last-writer-wins between whole updates, never a torn record.
//
// Lock entries are never evicted; resident locks grow with the number of
// distinct users seen by the process. One mutex per user is small enough
// that eviction only matters at a user cardinality this service is not
// sized for.
type MemoryService struct {
	provider memory.Provider
	embedder Embedder

	mu    sync.Mutex
	locks map[kernel.UserID]*sync.Mutex
}

// NewMemoryService builds the service. embedder may be nil; memories are
// then stored without vectors and excluded from similarity search.
func NewMemoryService(provider memory.Provider, embedder Embedder) *MemoryService {
	return &MemoryService{
		provider: provider,
		embedder: embedder,
		locks:    make(map[kernel.UserID]*sync.Mutex),
	}
}

// userLock returns the mutex serializing core-memory writes for one user
func (s *MemoryService) userLock(userID kernel.UserID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// ============================================================================
// Core memory (always available)
// ============================================================================

// GetCoreMemory returns the user's profile, or nil when the user has
// never written one.
func (s *MemoryService) GetCoreMemory(ctx context.Context, userID kernel.UserID) (*memory.CoreMemory, error) {
	return s.provider.GetCoreMemory(ctx, userID)
}

// UpdateCoreMemory merges a partial update into the profile, creating it
// on first write. Fields the update does not name are untouched.
func (s *MemoryService) UpdateCoreMemory(ctx context.Context, userID kernel.UserID, update memory.CoreMemoryUpdate) (*memory.CoreMemory, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	return s.provider.UpsertCoreMemory(ctx, userID, update)
}

// AddMilestone appends one event to the relationship history. The read
// and write happen under the user's lock so concurrent appends cannot
// drop each other.
func (s *MemoryService) AddMilestone(ctx context.Context, userID kernel.UserID, milestone memory.Milestone) (*memory.CoreMemory, error) {
	if milestone.Type == "" {
		return nil, memory.ErrInvalidRecord("milestone type is required")
	}
	if milestone.Timestamp == 0 {
		milestone.Timestamp = memory.NowMillis()
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	current, err := s.provider.GetCoreMemory(ctx, userID)
	if err != nil {
		return nil, err
	}

	var milestones []memory.Milestone
	if current != nil {
		milestones = append(milestones, current.KeyMilestones...)
	}
	milestones = append(milestones, milestone)

	return s.provider.UpsertCoreMemory(ctx, userID, memory.CoreMemoryUpdate{
		KeyMilestones: &milestones,
	})
}

// UpdateRelationshipStage sets the rapport stage. Any valid stage is
// reachable from any other; the vocabulary itself is fixed.
func (s *MemoryService) UpdateRelationshipStage(ctx context.Context, userID kernel.UserID, stage memory.RelationshipStage) (*memory.CoreMemory, error) {
	if !stage.IsValid() {
		return nil, memory.ErrInvalidStage(string(stage))
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	updated, err := s.provider.UpsertCoreMemory(ctx, userID, memory.CoreMemoryUpdate{
		RelationshipStage: &stage,
	})
	if err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id": userID.String(),
		"stage":   string(stage),
	}).Infof("🤝 Relationship stage updated")
	return updated, nil
}

// ForgetUser erases the user's core profile
func (s *MemoryService) ForgetUser(ctx context.Context, userID kernel.UserID) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	return s.provider.DeleteCoreMemory(ctx, userID)
}

// ============================================================================
// Extended memory (premium tier)
// ============================================================================

// AddExtendedMemory stores one summarized conversation. When an embedder
// is configured and the record arrives without a vector, the summary is
// embedded first; embedding failure downgrades the record to
// list-only instead of failing the write.
func (s *MemoryService) AddExtendedMemory(ctx context.Context, m memory.ExtendedMemory) (*memory.ExtendedMemory, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	if len(m.Embedding) == 0 && s.embedder != nil {
		vector, err := s.embedder.EmbedText(ctx, m.ConversationSummary)
		if err != nil {
			logx.WithFields(logx.Fields{
				"user_id": m.UserID.String(),
				"error":   err.Error(),
			}).Warnf("Embedding enrichment failed, storing without vector")
		} else {
			m.Embedding = vector
		}
	}

	return s.provider.CreateExtendedMemory(ctx, m)
}

func (s *MemoryService) GetExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) (*memory.ExtendedMemory, error) {
	m, err := s.provider.GetExtendedMemory(ctx, userID, memoryID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, memory.ErrRecordNotFound("extended_memory", memoryID.String())
	}
	return m, nil
}

// ListExtendedMemories returns the user's memories newest first, capped
// at DefaultListLimit unless the filter sets its own limit.
func (s *MemoryService) ListExtendedMemories(ctx context.Context, filter memory.ExtendedMemoryFilter) ([]memory.ExtendedMemory, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	return s.provider.ListExtendedMemories(ctx, filter)
}

func (s *MemoryService) DeleteExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) error {
	return s.provider.DeleteExtendedMemory(ctx, userID, memoryID)
}

// DeleteExtendedMemories wipes the user's whole extended tier
func (s *MemoryService) DeleteExtendedMemories(ctx context.Context, userID kernel.UserID) error {
	return s.provider.DeleteExtendedMemories(ctx, userID)
}

// SearchMemories ranks the user's memories by cosine similarity against
// the query vector, capped at DefaultSearchLimit when limit is zero.
func (s *MemoryService) SearchMemories(ctx context.Context, userID kernel.UserID, embedding []float32, limit int) ([]memory.MemoryMatch, error) {
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	return s.provider.SearchMemories(ctx, userID, embedding, limit)
}

// SearchMemoriesByText embeds the query first, then searches. Requires a
// configured embedder.
func (s *MemoryService) SearchMemoriesByText(ctx context.Context, userID kernel.UserID, query string, limit int) ([]memory.MemoryMatch, error) {
	if s.embedder == nil {
		return nil, memory.ErrInvalidEmbedding("no embedder configured for text search")
	}
	if query == "" {
		return nil, memory.ErrInvalidEmbedding("query text is empty")
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, memory.WrapBackend(err, "embed_query")
	}
	return s.SearchMemories(ctx, userID, vector, limit)
}
