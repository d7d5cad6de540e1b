package memorysrv

import (
	"context"
	"testing"
	"time"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokens(t *testing.T) {
	ctx := context.Background()
	svc := NewCredentialService(newBackend(t))
	userID := kernel.NewUserID("u1")

	_, err := svc.SaveTokens(ctx, memory.OAuthTokens{
		UserID:       userID,
		Provider:     "xero",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    memory.NowMillis() + time.Hour.Milliseconds(),
	})
	require.NoError(t, err)

	// Refresh without a new refresh token keeps the old one
	newExpiry := memory.NowMillis() + 2*time.Hour.Milliseconds()
	refreshed, err := svc.RefreshTokens(ctx, userID, "xero", "at-2", newExpiry, nil)
	require.NoError(t, err)
	assert.Equal(t, "at-2", refreshed.AccessToken)
	assert.Equal(t, newExpiry, refreshed.ExpiresAt)
	assert.Equal(t, "rt-1", refreshed.RefreshToken)

	// Providers that rotate refresh tokens send a replacement
	rotated, err := svc.RefreshTokens(ctx, userID, "xero", "at-3", newExpiry, ptrx.String("rt-2"))
	require.NoError(t, err)
	assert.Equal(t, "rt-2", rotated.RefreshToken)

	// An empty replacement string is treated as absent
	kept, err := svc.RefreshTokens(ctx, userID, "xero", "at-4", newExpiry, ptrx.String(""))
	require.NoError(t, err)
	assert.Equal(t, "rt-2", kept.RefreshToken)

	_, err = svc.RefreshTokens(ctx, userID, "xero", "", newExpiry, nil)
	assert.Error(t, err)
}

func TestDisconnectProvider(t *testing.T) {
	ctx := context.Background()
	svc := NewCredentialService(newBackend(t))
	userID := kernel.NewUserID("u1")

	_, err := svc.SaveTokens(ctx, memory.OAuthTokens{
		UserID:      userID,
		Provider:    "xero",
		AccessToken: "at-1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DisconnectProvider(ctx, userID, "xero"))
	require.NoError(t, svc.DisconnectProvider(ctx, userID, "xero"))

	gone, err := svc.GetTokens(ctx, userID, "xero")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
