package docsapi

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/auth"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/docs"
	"github.com/gofiber/fiber/v2"
)

type DocumentHandlers struct {
	service *docs.Service
}

func NewDocumentHandlers(service *docs.Service) *DocumentHandlers {
	return &DocumentHandlers{service: service}
}

func (h *DocumentHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.TokenMiddleware) {
	documents := router.Group("/documents", authMiddleware.Authenticate())

	documents.Post("/", h.Upload)
	documents.Get("/", h.List)
	documents.Get("/:name", h.Download)
	documents.Delete("/:name", h.Delete)
}

func (h *DocumentHandlers) Upload(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing file in form data"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Could not read uploaded file"})
	}
	defer f.Close()

	info, err := h.service.Upload(c.Context(), authContext.UserID, fileHeader.Filename, f, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(info)
}

func (h *DocumentHandlers) List(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	files, err := h.service.List(c.Context(), authContext.UserID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"documents": files,
		"total":     len(files),
	})
}

func (h *DocumentHandlers) Download(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	r, err := h.service.Download(c.Context(), authContext.UserID, c.Params("name"))
	if err != nil {
		return err
	}

	c.Set("Content-Disposition", "attachment; filename=\""+c.Params("name")+"\"")
	return c.SendStream(r)
}

func (h *DocumentHandlers) Delete(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return auth.ErrUnauthorized()
	}

	if err := h.service.Delete(c.Context(), authContext.UserID, c.Params("name")); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Document deleted successfully"})
}
