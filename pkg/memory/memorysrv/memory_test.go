package memorysrv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memoryinfra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) memory.Provider {
	t.Helper()
	p := memoryinfra.NewSQLiteProvider(config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, p.Connect(context.Background()))
	t.Cleanup(func() { p.Disconnect(context.Background()) })
	return p
}

// stubEmbedder returns a fixed vector, or an error when broken
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func TestAddMilestoneAppends(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newBackend(t), nil)
	userID := kernel.NewUserID("u1")

	first, err := svc.AddMilestone(ctx, userID, memory.Milestone{
		Type:        "first_conversation",
		Description: "met the assistant",
	})
	require.NoError(t, err)
	require.Len(t, first.KeyMilestones, 1)
	assert.NotZero(t, first.KeyMilestones[0].Timestamp)

	second, err := svc.AddMilestone(ctx, userID, memory.Milestone{
		Type:      "first_invoice_sent",
		Timestamp: 12345,
	})
	require.NoError(t, err)
	require.Len(t, second.KeyMilestones, 2)
	assert.Equal(t, "first_conversation", second.KeyMilestones[0].Type)
	assert.Equal(t, int64(12345), second.KeyMilestones[1].Timestamp)

	_, err = svc.AddMilestone(ctx, userID, memory.Milestone{Description: "typeless"})
	assert.Error(t, err)
}

func TestAddMilestoneConcurrent(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newBackend(t), nil)
	userID := kernel.NewUserID("u1")

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.AddMilestone(ctx, userID, memory.Milestone{
				Type: fmt.Sprintf("event_%d", n),
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Appends serialize per user, so none may be dropped
	final, err := svc.GetCoreMemory(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Len(t, final.KeyMilestones, writers)
}

func TestUpdateRelationshipStage(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newBackend(t), nil)
	userID := kernel.NewUserID("u1")

	updated, err := svc.UpdateRelationshipStage(ctx, userID, memory.StageFriend)
	require.NoError(t, err)
	assert.Equal(t, memory.StageFriend, updated.RelationshipStage)

	// Regression is a legal transition
	back, err := svc.UpdateRelationshipStage(ctx, userID, memory.StageColleague)
	require.NoError(t, err)
	assert.Equal(t, memory.StageColleague, back.RelationshipStage)

	_, err = svc.UpdateRelationshipStage(ctx, userID, "bestie")
	assert.Error(t, err)
}

func TestAddExtendedMemoryEnrichment(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vector: []float32{0.5, 0.5}}
	svc := NewMemoryService(newBackend(t), embedder)
	userID := kernel.NewUserID("u1")

	created, err := svc.AddExtendedMemory(ctx, memory.ExtendedMemory{
		UserID:              userID,
		ConversationSummary: "quarterly BAS lodged",
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, created.Embedding)
	assert.Equal(t, 1, embedder.calls)

	// A caller-provided vector is never overwritten
	own, err := svc.AddExtendedMemory(ctx, memory.ExtendedMemory{
		UserID:              userID,
		ConversationSummary: "payroll run",
		Embedding:           []float32{1, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, own.Embedding)
	assert.Equal(t, 1, embedder.calls)
}

func TestAddExtendedMemoryEmbedderFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{err: errors.New("rate limited")}
	svc := NewMemoryService(newBackend(t), embedder)

	created, err := svc.AddExtendedMemory(ctx, memory.ExtendedMemory{
		UserID:              kernel.NewUserID("u1"),
		ConversationSummary: "stored despite embedding outage",
	})
	require.NoError(t, err)
	assert.Empty(t, created.Embedding)
}

func TestListAndSearchDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newBackend(t), nil)
	userID := kernel.NewUserID("u1")

	for i := 0; i < DefaultListLimit+3; i++ {
		_, err := svc.AddExtendedMemory(ctx, memory.ExtendedMemory{
			UserID:              userID,
			ConversationSummary: fmt.Sprintf("memory %d", i),
			Embedding:           []float32{float32(i), 1},
		})
		require.NoError(t, err)
	}

	listed, err := svc.ListExtendedMemories(ctx, memory.ExtendedMemoryFilter{UserID: userID})
	require.NoError(t, err)
	assert.Len(t, listed, DefaultListLimit)

	matches, err := svc.SearchMemories(ctx, userID, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, matches, DefaultSearchLimit)
}

func TestSearchMemoriesByText(t *testing.T) {
	ctx := context.Background()
	embedder := &stubEmbedder{vector: []float32{1, 0}}
	svc := NewMemoryService(newBackend(t), embedder)
	userID := kernel.NewUserID("u1")

	_, err := svc.AddExtendedMemory(ctx, memory.ExtendedMemory{
		UserID:              userID,
		ConversationSummary: "chased an overdue invoice",
	})
	require.NoError(t, err)

	matches, err := svc.SearchMemoriesByText(ctx, userID, "overdue invoices", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "chased an overdue invoice", matches[0].ConversationSummary)

	_, err = svc.SearchMemoriesByText(ctx, userID, "", 5)
	assert.Error(t, err)

	bare := NewMemoryService(newBackend(t), nil)
	_, err = bare.SearchMemoriesByText(ctx, userID, "anything", 5)
	assert.Error(t, err)
}

func TestForgetUser(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(newBackend(t), nil)
	userID := kernel.NewUserID("u1")

	_, err := svc.UpdateCoreMemory(ctx, userID, memory.CoreMemoryUpdate{
		Preferences: map[string]any{"currency": "AUD"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ForgetUser(ctx, userID))

	gone, err := svc.GetCoreMemory(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
