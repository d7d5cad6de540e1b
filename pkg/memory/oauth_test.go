package memory

import (
	"testing"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/ptrx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthTokensValidate(t *testing.T) {
	valid := OAuthTokens{
		UserID:      kernel.NewUserID("u1"),
		Provider:    "xero",
		AccessToken: "at-1",
	}
	require.NoError(t, valid.Validate())

	for name, tokens := range map[string]OAuthTokens{
		"missing user":     {Provider: "xero", AccessToken: "at"},
		"missing provider": {UserID: kernel.NewUserID("u1"), AccessToken: "at"},
		"missing token":    {UserID: kernel.NewUserID("u1"), Provider: "xero"},
	} {
		assert.Error(t, tokens.Validate(), name)
	}
}

func TestOAuthTokensApplyPartial(t *testing.T) {
	tokens := OAuthTokens{
		UserID:       kernel.NewUserID("u1"),
		Provider:     "xero",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    1000,
		Scopes:       []string{"accounting.transactions"},
	}

	// Refresh replaces token and expiry together, leaving the rest
	tokens.Apply(OAuthTokensUpdate{
		AccessToken: ptrx.String("at-2"),
		ExpiresAt:   ptrx.Int64(2000),
	}, 1500)

	assert.Equal(t, "at-2", tokens.AccessToken)
	assert.Equal(t, int64(2000), tokens.ExpiresAt)
	assert.Equal(t, "rt-1", tokens.RefreshToken)
	assert.Equal(t, []string{"accounting.transactions"}, tokens.Scopes)
	assert.Equal(t, int64(1500), tokens.UpdatedAt)

	// Scopes replace wholesale when the pointer is set
	tokens.Apply(OAuthTokensUpdate{Scopes: &[]string{"accounting.settings"}}, 1600)
	assert.Equal(t, []string{"accounting.settings"}, tokens.Scopes)
}

func TestOAuthTokensIsExpired(t *testing.T) {
	tokens := OAuthTokens{ExpiresAt: 1000}
	assert.False(t, tokens.IsExpired(999))
	assert.True(t, tokens.IsExpired(1000))

	// Zero expiry never expires
	forever := OAuthTokens{}
	assert.False(t, forever.IsExpired(NowMillis()))
}

func TestExtendedMemoryValidate(t *testing.T) {
	valid := ExtendedMemory{
		UserID:              kernel.NewUserID("u1"),
		ConversationSummary: "summary",
	}
	require.NoError(t, valid.Validate())

	noUser := ExtendedMemory{ConversationSummary: "summary"}
	assert.Error(t, noUser.Validate())

	noSummary := ExtendedMemory{UserID: kernel.NewUserID("u1")}
	assert.Error(t, noSummary.Validate())
}
