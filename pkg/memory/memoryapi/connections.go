package memoryapi

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/auth"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memorysrv"
	"github.com/gofiber/fiber/v2"
)

// ConnectionHandlers maneja las credenciales OAuth de proveedores
// contables (Xero, QuickBooks, etc). Solo el dueño del token puede leer
// sus credenciales; el provider viene siempre de la ruta.
type ConnectionHandlers struct {
	service *memorysrv.CredentialService
}

func NewConnectionHandlers(service *memorysrv.CredentialService) *ConnectionHandlers {
	return &ConnectionHandlers{service: service}
}

func (h *ConnectionHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.TokenMiddleware) {
	connections := router.Group("/connections", authMiddleware.Authenticate())

	connections.Put("/:provider", h.SaveTokens)
	connections.Get("/:provider", h.GetTokens)
	connections.Post("/:provider/refresh", h.RefreshTokens)
	connections.Delete("/:provider", h.DisconnectProvider)
}

func (h *ConnectionHandlers) SaveTokens(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req SaveTokensRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	saved, err := h.service.SaveTokens(c.Context(), memory.OAuthTokens{
		UserID:       authContext.UserID,
		Provider:     c.Params("provider"),
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		ExpiresAt:    req.ExpiresAt,
		Scopes:       req.Scopes,
		TenantID:     req.TenantID,
		TenantName:   req.TenantName,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *ConnectionHandlers) GetTokens(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	tokens, err := h.service.GetTokens(c.Context(), authContext.UserID, c.Params("provider"))
	if err != nil {
		return err
	}
	if tokens == nil {
		return memory.ErrRecordNotFound("oauth_tokens", c.Params("provider"))
	}

	return c.JSON(tokens)
}

func (h *ConnectionHandlers) RefreshTokens(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req RefreshTokensRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	tokens, err := h.service.RefreshTokens(c.Context(), authContext.UserID, c.Params("provider"),
		req.AccessToken, req.ExpiresAt, req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(tokens)
}

func (h *ConnectionHandlers) DisconnectProvider(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	if err := h.service.DisconnectProvider(c.Context(), authContext.UserID, c.Params("provider")); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Provider disconnected successfully"})
}
