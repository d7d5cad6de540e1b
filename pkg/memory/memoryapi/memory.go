// Package memoryapi expone las operaciones de memoria por HTTP. La
// identidad del usuario siempre viene del token; ningún endpoint acepta
// un userId ajeno.
package memoryapi

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/auth"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memorysrv"
	"github.com/gofiber/fiber/v2"
)

type MemoryHandlers struct {
	service *memorysrv.MemoryService
}

func NewMemoryHandlers(service *memorysrv.MemoryService) *MemoryHandlers {
	return &MemoryHandlers{service: service}
}

func (h *MemoryHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.TokenMiddleware) {
	mem := router.Group("/memory", authMiddleware.Authenticate())

	mem.Get("/core", h.GetCoreMemory)
	mem.Patch("/core", h.UpdateCoreMemory)
	mem.Delete("/core", h.DeleteCoreMemory)
	mem.Post("/core/milestones", h.AddMilestone)
	mem.Put("/core/stage", h.UpdateStage)

	mem.Post("/extended", h.AddExtendedMemory)
	mem.Get("/extended", h.ListExtendedMemories)
	mem.Get("/extended/:id", h.GetExtendedMemory)
	mem.Delete("/extended/:id", h.DeleteExtendedMemory)
	mem.Delete("/extended", h.DeleteExtendedMemories)

	mem.Post("/search", h.SearchMemories)
}

func (h *MemoryHandlers) GetCoreMemory(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	core, err := h.service.GetCoreMemory(c.Context(), authContext.UserID)
	if err != nil {
		return err
	}
	if core == nil {
		// Un usuario sin perfil no es un error; el agente empieza de cero
		return c.JSON(fiber.Map{"coreMemory": nil})
	}

	return c.JSON(fiber.Map{"coreMemory": core})
}

func (h *MemoryHandlers) UpdateCoreMemory(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var update memory.CoreMemoryUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	core, err := h.service.UpdateCoreMemory(c.Context(), authContext.UserID, update)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"coreMemory": core})
}

func (h *MemoryHandlers) DeleteCoreMemory(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	if err := h.service.ForgetUser(c.Context(), authContext.UserID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Core memory deleted successfully"})
}

func (h *MemoryHandlers) AddMilestone(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req AddMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	core, err := h.service.AddMilestone(c.Context(), authContext.UserID, memory.Milestone{
		Type:        req.Type,
		Description: req.Description,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"coreMemory": core})
}

func (h *MemoryHandlers) UpdateStage(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req UpdateStageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	core, err := h.service.UpdateRelationshipStage(c.Context(), authContext.UserID, memory.RelationshipStage(req.Stage))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"coreMemory": core})
}

func (h *MemoryHandlers) AddExtendedMemory(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req AddExtendedMemoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	created, err := h.service.AddExtendedMemory(c.Context(), memory.ExtendedMemory{
		UserID:              authContext.UserID,
		ConversationSummary: req.ConversationSummary,
		Embedding:           req.Embedding,
		LearnedPatterns:     req.LearnedPatterns,
		EmotionalContext:    req.EmotionalContext,
		Topics:              req.Topics,
		TTL:                 req.TTL,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *MemoryHandlers) ListExtendedMemories(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	memories, err := h.service.ListExtendedMemories(c.Context(), memory.ExtendedMemoryFilter{
		UserID:    authContext.UserID,
		SortOrder: memory.SortOrder(c.Query("order")),
		Limit:     c.QueryInt("limit"),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"memories": memories,
		"total":    len(memories),
	})
}

func (h *MemoryHandlers) GetExtendedMemory(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	memoryID := kernel.NewMemoryID(c.Params("id"))
	m, err := h.service.GetExtendedMemory(c.Context(), authContext.UserID, memoryID)
	if err != nil {
		return err
	}

	return c.JSON(m)
}

func (h *MemoryHandlers) DeleteExtendedMemory(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	memoryID := kernel.NewMemoryID(c.Params("id"))
	if err := h.service.DeleteExtendedMemory(c.Context(), authContext.UserID, memoryID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Memory deleted successfully"})
}

func (h *MemoryHandlers) DeleteExtendedMemories(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	if err := h.service.DeleteExtendedMemories(c.Context(), authContext.UserID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "All memories deleted successfully"})
}

func (h *MemoryHandlers) SearchMemories(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	var req SearchMemoriesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var matches []memory.MemoryMatch
	var err error
	if len(req.Embedding) > 0 {
		matches, err = h.service.SearchMemories(c.Context(), authContext.UserID, req.Embedding, req.Limit)
	} else {
		matches, err = h.service.SearchMemoriesByText(c.Context(), authContext.UserID, req.Query, req.Limit)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"matches": matches,
		"total":   len(matches),
	})
}
