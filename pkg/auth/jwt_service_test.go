package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTServiceFromConfig(&config.JWTConfig{
		SecretKey:      "test-secret-key-at-least-32-chars!!",
		AccessTokenTTL: time.Hour,
		Issuer:         "zero-agent-test",
		Audience:       []string{"zero-agent-api"},
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService()
	userID := kernel.NewUserID("u1")

	token, err := svc.GenerateAccessToken(userID, map[string]any{
		"email":  "sam@example.com",
		"scopes": []string{"memory:read", "memory:write"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "sam@example.com", claims.Email)
	assert.Contains(t, claims.Scopes, "memory:write")
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateTokenRejectsBadInput(t *testing.T) {
	svc := newTestJWTService()

	_, err := svc.ValidateAccessToken("not-a-jwt")
	assert.Error(t, err)

	// A token signed with a different secret must not validate
	other := NewJWTServiceFromConfig(&config.JWTConfig{
		SecretKey:      "a-completely-different-secret-key!!",
		AccessTokenTTL: time.Hour,
		Issuer:         "zero-agent-test",
	})
	forged, err := other.GenerateAccessToken(kernel.NewUserID("u1"), nil)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(forged)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	expired := NewJWTServiceFromConfig(&config.JWTConfig{
		SecretKey:      "test-secret-key-at-least-32-chars!!",
		AccessTokenTTL: -time.Minute,
		Issuer:         "zero-agent-test",
	})

	token, err := expired.GenerateAccessToken(kernel.NewUserID("u1"), nil)
	require.NoError(t, err)

	_, err = expired.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestAuthenticateMiddleware(t *testing.T) {
	svc := newTestJWTService()
	mw := NewTokenMiddleware(svc)

	app := fiber.New()
	app.Get("/protected", mw.Authenticate(), func(c *fiber.Ctx) error {
		authCtx, ok := GetAuthContext(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{"userId": authCtx.UserID.String()})
	})

	// No header
	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Garbage token
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Valid token passes through with the auth context populated
	token, err := svc.GenerateAccessToken(kernel.NewUserID("u1"), nil)
	require.NoError(t, err)

	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireScope(t *testing.T) {
	svc := newTestJWTService()
	mw := NewTokenMiddleware(svc)

	app := fiber.New()
	app.Delete("/admin", mw.Authenticate(), mw.RequireScope("memory:admin"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	readOnly, err := svc.GenerateAccessToken(kernel.NewUserID("u1"), map[string]any{
		"scopes": []string{"memory:read"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("DELETE", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+readOnly)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// Wildcard scope grants everything
	admin, err := svc.GenerateAccessToken(kernel.NewUserID("u1"), map[string]any{
		"scopes": []string{"*"},
	})
	require.NoError(t, err)

	req = httptest.NewRequest("DELETE", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
