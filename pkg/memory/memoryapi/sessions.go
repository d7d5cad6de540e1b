package memoryapi

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/auth"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memorysrv"
	"github.com/gofiber/fiber/v2"
)

type SessionHandlers struct {
	service *memorysrv.ConversationService
}

func NewSessionHandlers(service *memorysrv.ConversationService) *SessionHandlers {
	return &SessionHandlers{service: service}
}

func (h *SessionHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.TokenMiddleware) {
	sessions := router.Group("/sessions", authMiddleware.Authenticate())

	sessions.Post("/", h.CreateSession)
	sessions.Get("/", h.ListSessions)
	sessions.Get("/:id", h.GetSession)
	sessions.Patch("/:id", h.UpdateSession)
	sessions.Post("/:id/messages", h.AppendMessages)
	sessions.Delete("/:id", h.DeleteSession)
}

func (h *SessionHandlers) CreateSession(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session := memory.Session{
		UserID:    authContext.UserID,
		SessionID: kernel.NewSessionID(req.SessionID),
		Messages:  req.Messages,
		Context:   req.Context,
	}
	if req.ExpiresAt != nil {
		session.ExpiresAt = *req.ExpiresAt
	}

	created, err := h.service.StartSession(c.Context(), session)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *SessionHandlers) ListSessions(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	filter := memory.SessionFilter{
		UserID:    authContext.UserID,
		SortOrder: memory.SortOrder(c.Query("order")),
		Limit:     c.QueryInt("limit"),
	}

	sessions, err := h.service.ListSessions(c.Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (h *SessionHandlers) GetSession(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	sessionID := kernel.NewSessionID(c.Params("id"))
	session, err := h.service.GetSession(c.Context(), authContext.UserID, sessionID)
	if err != nil {
		return err
	}

	return c.JSON(session)
}

func (h *SessionHandlers) UpdateSession(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	sessionID := kernel.NewSessionID(c.Params("id"))
	session, err := h.service.UpdateSession(c.Context(), authContext.UserID, sessionID, memory.SessionUpdate{
		Messages:       req.Messages,
		AppendMessages: req.AppendMessages,
		Context:        req.Context,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		return err
	}

	return c.JSON(session)
}

func (h *SessionHandlers) AppendMessages(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req AppendMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	sessionID := kernel.NewSessionID(c.Params("id"))
	session, err := h.service.AppendMessages(c.Context(), authContext.UserID, sessionID, req.Messages)
	if err != nil {
		return err
	}

	return c.JSON(session)
}

func (h *SessionHandlers) DeleteSession(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	sessionID := kernel.NewSessionID(c.Params("id"))
	if err := h.service.EndSession(c.Context(), authContext.UserID, sessionID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Session deleted successfully"})
}
