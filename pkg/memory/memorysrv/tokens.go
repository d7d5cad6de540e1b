package memorysrv

import (
	"context"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/logx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/ptrx"
)

// CredentialService stores OAuth tokens on behalf of the accounting
// integration. One live record exists per (user, provider); the
// authorization code flow itself happens outside this service.
type CredentialService struct {
	provider memory.Provider
}

func NewCredentialService(provider memory.Provider) *CredentialService {
	return &CredentialService{provider: provider}
}

// SaveTokens stores a fresh credential record, replacing any prior one
// for the same provider.
func (s *CredentialService) SaveTokens(ctx context.Context, t memory.OAuthTokens) (*memory.OAuthTokens, error) {
	saved, err := s.provider.SaveOAuthTokens(ctx, t)
	if err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id":  saved.UserID.String(),
		"provider": saved.Provider,
	}).Infof("🔑 OAuth tokens saved")
	return saved, nil
}

// GetTokens returns the live record, or nil when the user never
// connected this provider.
func (s *CredentialService) GetTokens(ctx context.Context, userID kernel.UserID, provider string) (*memory.OAuthTokens, error) {
	return s.provider.GetOAuthTokens(ctx, userID, provider)
}

// RefreshTokens atomically replaces the access token, expiry, and
// optionally the refresh token after a provider refresh. Readers never
// observe the new access token paired with the old expiresAt.
func (s *CredentialService) RefreshTokens(ctx context.Context, userID kernel.UserID, provider string, accessToken string, expiresAt int64, refreshToken *string) (*memory.OAuthTokens, error) {
	if accessToken == "" {
		return nil, memory.ErrInvalidRecord("accessToken is required")
	}

	update := memory.OAuthTokensUpdate{
		AccessToken: ptrx.String(accessToken),
		ExpiresAt:   ptrx.Int64(expiresAt),
	}
	if refreshToken != nil && *refreshToken != "" {
		update.RefreshToken = refreshToken
	}

	return s.provider.UpdateOAuthTokens(ctx, userID, provider, update)
}

// UpdateTokens applies an arbitrary partial update atomically
func (s *CredentialService) UpdateTokens(ctx context.Context, userID kernel.UserID, provider string, update memory.OAuthTokensUpdate) (*memory.OAuthTokens, error) {
	return s.provider.UpdateOAuthTokens(ctx, userID, provider, update)
}

// DisconnectProvider removes the stored credentials. Idempotent.
func (s *CredentialService) DisconnectProvider(ctx context.Context, userID kernel.UserID, provider string) error {
	if err := s.provider.DeleteOAuthTokens(ctx, userID, provider); err != nil {
		return err
	}

	logx.WithFields(logx.Fields{
		"user_id":  userID.String(),
		"provider": provider,
	}).Infof("🔌 OAuth provider disconnected")
	return nil
}
