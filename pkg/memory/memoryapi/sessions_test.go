package memoryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/auth"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memoryinfra"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memorysrv"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAPI wires the full HTTP stack over an embedded backend
type testAPI struct {
	app   *fiber.App
	token string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	provider := memoryinfra.NewSQLiteProvider(config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, provider.Connect(context.Background()))
	t.Cleanup(func() { provider.Disconnect(context.Background()) })

	tokenService := auth.NewJWTServiceFromConfig(&config.JWTConfig{
		SecretKey:      "test-secret-key-at-least-32-chars!!",
		AccessTokenTTL: time.Hour,
		Issuer:         "zero-agent-test",
	})
	mw := auth.NewTokenMiddleware(tokenService)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*errx.Error); ok {
				return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": e.Message, "code": e.Code})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	api := app.Group("/api/v1")

	NewSessionHandlers(memorysrv.NewConversationService(provider)).RegisterRoutes(api, mw)
	NewMemoryHandlers(memorysrv.NewMemoryService(provider, nil)).RegisterRoutes(api, mw)
	NewConnectionHandlers(memorysrv.NewCredentialService(provider)).RegisterRoutes(api, mw)

	token, err := tokenService.GenerateAccessToken(kernel.NewUserID("u1"), nil)
	require.NoError(t, err)

	return &testAPI{app: app, token: token}
}

func (a *testAPI) request(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestSessionEndpoints(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.request(t, "POST", "/api/v1/sessions/", fiber.Map{
		"sessionId": "s1",
		"messages":  []fiber.Map{{"role": "user", "text": "g'day"}},
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "s1", body["sessionId"])
	assert.NotZero(t, body["expiresAt"])

	status, body = api.request(t, "GET", "/api/v1/sessions/s1", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body["userId"])

	status, body = api.request(t, "POST", "/api/v1/sessions/s1/messages", fiber.Map{
		"messages": []fiber.Map{{"role": "agent", "text": "hello"}},
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["messages"], 2)

	status, body = api.request(t, "GET", "/api/v1/sessions/", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, _ = api.request(t, "DELETE", "/api/v1/sessions/s1", nil)
	require.Equal(t, fiber.StatusOK, status)

	// Deleted sessions read as 404 through the API
	status, _ = api.request(t, "GET", "/api/v1/sessions/s1", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSessionEndpointsRequireAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("GET", "/api/v1/sessions/", nil)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCoreMemoryEndpoints(t *testing.T) {
	api := newTestAPI(t)

	// A fresh user has no profile, and that is not an error
	status, body := api.request(t, "GET", "/api/v1/memory/core", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["coreMemory"])

	status, body = api.request(t, "PATCH", "/api/v1/memory/core", fiber.Map{
		"preferences": fiber.Map{"currency": "AUD"},
	})
	require.Equal(t, fiber.StatusOK, status)
	core := body["coreMemory"].(map[string]any)
	prefs := core["preferences"].(map[string]any)
	assert.Equal(t, "AUD", prefs["currency"])

	status, _ = api.request(t, "POST", "/api/v1/memory/core/milestones", fiber.Map{
		"type":        "first_conversation",
		"description": "met the assistant",
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, body = api.request(t, "PUT", "/api/v1/memory/core/stage", fiber.Map{
		"stage": "partner",
	})
	require.Equal(t, fiber.StatusOK, status)
	core = body["coreMemory"].(map[string]any)
	assert.Equal(t, "partner", core["relationshipStage"])

	// The stage vocabulary is closed
	status, _ = api.request(t, "PUT", "/api/v1/memory/core/stage", fiber.Map{
		"stage": "bestie",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestExtendedMemoryEndpoints(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.request(t, "POST", "/api/v1/memory/extended", fiber.Map{
		"conversationSummary": "lodged the quarterly BAS",
		"embedding":           []float32{1, 0, 0},
		"topics":              []string{"tax"},
	})
	require.Equal(t, fiber.StatusCreated, status)
	memoryID := body["memoryId"].(string)
	require.NotEmpty(t, memoryID)

	status, body = api.request(t, "POST", "/api/v1/memory/search", fiber.Map{
		"embedding": []float32{1, 0, 0},
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, _ = api.request(t, "DELETE", "/api/v1/memory/extended/"+memoryID, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = api.request(t, "GET", "/api/v1/memory/extended/"+memoryID, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestConnectionEndpoints(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.request(t, "PUT", "/api/v1/connections/xero", fiber.Map{
		"accessToken":  "at-1",
		"refreshToken": "rt-1",
		"expiresAt":    time.Now().Add(time.Hour).UnixMilli(),
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, body := api.request(t, "POST", "/api/v1/connections/xero/refresh", fiber.Map{
		"accessToken": "at-2",
		"expiresAt":   time.Now().Add(2 * time.Hour).UnixMilli(),
	})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "at-2", body["accessToken"])
	assert.Equal(t, "rt-1", body["refreshToken"])

	status, _ = api.request(t, "DELETE", "/api/v1/connections/xero", nil)
	require.Equal(t, fiber.StatusOK, status)
}
