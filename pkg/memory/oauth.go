package memory

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
)

// ============================================================================
// OAuth Token Record
// ============================================================================

// OAuthTokens is the credential record stored on behalf of the accounting
// integration, one live record per (userId, provider). The authorization
// flow itself lives outside this service; we only guarantee safe storage
// and atomic refresh-replace: a reader never observes a new access token
// paired with a stale expiresAt.
type OAuthTokens struct {
	UserID       kernel.UserID `json:"userId"`
	Provider     string        `json:"provider"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	TokenType    string        `json:"tokenType,omitempty"`
	ExpiresAt    int64         `json:"expiresAt"`
	Scopes       []string      `json:"scopes,omitempty"`
	TenantID     *string       `json:"tenantId,omitempty"`
	TenantName   *string       `json:"tenantName,omitempty"`
	CreatedAt    int64         `json:"createdAt"`
	UpdatedAt    int64         `json:"updatedAt"`
}

func (t *OAuthTokens) Validate() error {
	if t.UserID.IsZero() {
		return ErrInvalidRecord("userId is required")
	}
	if t.Provider == "" {
		return ErrInvalidRecord("provider is required")
	}
	if t.AccessToken == "" {
		return ErrInvalidRecord("accessToken is required")
	}
	return nil
}

func (t *OAuthTokens) IsExpired(now int64) bool {
	return t.ExpiresAt > 0 && t.ExpiresAt <= now
}

// OAuthTokensUpdate is a partial merge applied atomically by every
// backend: either all named fields land or none do.
type OAuthTokensUpdate struct {
	AccessToken  *string   `json:"accessToken,omitempty"`
	RefreshToken *string   `json:"refreshToken,omitempty"`
	TokenType    *string   `json:"tokenType,omitempty"`
	ExpiresAt    *int64    `json:"expiresAt,omitempty"`
	Scopes       *[]string `json:"scopes,omitempty"`
	TenantID     *string   `json:"tenantId,omitempty"`
	TenantName   *string   `json:"tenantName,omitempty"`
}

// Apply merges the update into the record
func (t *OAuthTokens) Apply(u OAuthTokensUpdate, now int64) {
	if u.AccessToken != nil {
		t.AccessToken = *u.AccessToken
	}
	if u.RefreshToken != nil {
		t.RefreshToken = *u.RefreshToken
	}
	if u.TokenType != nil {
		t.TokenType = *u.TokenType
	}
	if u.ExpiresAt != nil {
		t.ExpiresAt = *u.ExpiresAt
	}
	if u.Scopes != nil {
		t.Scopes = append([]string(nil), (*u.Scopes)...)
	}
	if u.TenantID != nil {
		t.TenantID = u.TenantID
	}
	if u.TenantName != nil {
		t.TenantName = u.TenantName
	}
	t.UpdatedAt = now
}
