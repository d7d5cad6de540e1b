package memorysrv

import (
	"context"
	"fmt"
	"testing"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndGetSession(t *testing.T) {
	ctx := context.Background()
	svc := NewConversationService(newBackend(t))
	userID := kernel.NewUserID("u1")
	sessionID := kernel.NewSessionID("s1")

	started, err := svc.StartSession(ctx, memory.Session{
		UserID:    userID,
		SessionID: sessionID,
		Messages:  []memory.Message{{Role: memory.RoleUser, Text: "g'day"}},
	})
	require.NoError(t, err)
	assert.Equal(t, started.CreatedAt+memory.DefaultSessionTTL.Milliseconds(), started.ExpiresAt)

	got, err := svc.GetSession(ctx, userID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, started.Messages, got.Messages)

	// Service surfaces a missing session as an error, unlike the raw backend
	_, err = svc.GetSession(ctx, userID, kernel.NewSessionID("nope"))
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, memory.CodeRecordNotFound))
}

func TestAppendMessages(t *testing.T) {
	ctx := context.Background()
	svc := NewConversationService(newBackend(t))
	userID := kernel.NewUserID("u1")
	sessionID := kernel.NewSessionID("s1")

	_, err := svc.StartSession(ctx, memory.Session{
		UserID:    userID,
		SessionID: sessionID,
		Messages:  []memory.Message{{Role: memory.RoleUser, Text: "one"}},
	})
	require.NoError(t, err)

	updated, err := svc.AppendMessages(ctx, userID, sessionID, []memory.Message{
		{Role: memory.RoleAgent, Text: "two"},
		{Role: memory.RoleUser, Text: "three"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 3)
	assert.Equal(t, "one", updated.Messages[0].Text)
	assert.Equal(t, "three", updated.Messages[2].Text)

	_, err = svc.AppendMessages(ctx, userID, sessionID, []memory.Message{
		{Role: "system", Text: "nope"},
	})
	assert.Error(t, err)
}

func TestEndSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewConversationService(newBackend(t))
	userID := kernel.NewUserID("u1")
	sessionID := kernel.NewSessionID("s1")

	_, err := svc.StartSession(ctx, memory.Session{UserID: userID, SessionID: sessionID})
	require.NoError(t, err)

	require.NoError(t, svc.EndSession(ctx, userID, sessionID))
	require.NoError(t, svc.EndSession(ctx, userID, sessionID))
}

func TestListSessionsDefaultLimit(t *testing.T) {
	ctx := context.Background()
	svc := NewConversationService(newBackend(t))
	userID := kernel.NewUserID("u1")

	base := memory.NowMillis()
	for i := 0; i < DefaultListLimit+5; i++ {
		_, err := svc.StartSession(ctx, memory.Session{
			UserID:    userID,
			SessionID: kernel.NewSessionID(fmt.Sprintf("s%02d", i)),
			CreatedAt: base + int64(i*1000),
		})
		require.NoError(t, err)
	}

	listed, err := svc.ListSessions(ctx, memory.SessionFilter{UserID: userID})
	require.NoError(t, err)
	require.Len(t, listed, DefaultListLimit)
	// Newest first by default
	assert.Equal(t, "s14", listed[0].SessionID.String())
}
