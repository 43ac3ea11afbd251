package app

import (
	"vehicle_marketplace_chat/internal/conversation/domain"
	"vehicle_marketplace_chat/internal/gateway/repository"
	"vehicle_marketplace_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ChatHTTPHandler serves the REST surface: history replay, the non-realtime
// message fallback, watermarks, the viewer's conversation directory and
// profile lookup.
type ChatHTTPHandler struct {
	messageUC *MessageUseCase
	directory repository.DirectoryRepository
}

// NewChatHTTPHandler create ChatHTTPHandler
func NewChatHTTPHandler(messageUC *MessageUseCase, directory repository.DirectoryRepository) *ChatHTTPHandler {
	return &ChatHTTPHandler{
		messageUC: messageUC,
		directory: directory,
	}
}

func viewerFromLocals(c *fiber.Ctx) (string, domain.Role) {
	viewerID, _ := c.Locals(middlewares.TokenViewerID).(string)
	role, _ := c.Locals(middlewares.TokenRole).(string)
	return viewerID, domain.Role(role)
}

// GetHistory GET /api/v1/rooms/:room/history
func (h *ChatHTTPHandler) GetHistory(c *fiber.Ctx) error {
	room := c.Params("room")
	msgs, err := h.messageUC.History(c.Context(), room)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"room": room, "messages": msgs})
}

// PostMessage POST /api/v1/rooms/:room/messages - fallback path while the
// caller has no socket; the appended message still fans out to joined ones.
func (h *ChatHTTPHandler) PostMessage(c *fiber.Ctx) error {
	room := c.Params("room")
	viewerID, role := viewerFromLocals(c)

	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}

	msg, err := h.messageUC.Append(c.Context(), room, viewerID, role, req.Body)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(msg)
}

// GetWatermark GET /api/v1/rooms/:room/read?role=
func (h *ChatHTTPHandler) GetWatermark(c *fiber.Ctx) error {
	room := c.Params("room")
	role := domain.Role(c.Query("role"))
	if role == "" {
		_, role = viewerFromLocals(c)
	}
	at, err := h.messageUC.Watermark(c.Context(), room, role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"last_read_at": at})
}

// MarkRead POST /api/v1/rooms/:room/read
func (h *ChatHTTPHandler) MarkRead(c *fiber.Ctx) error {
	room := c.Params("room")
	_, viewerRole := viewerFromLocals(c)

	var req struct {
		Role string `json:"role"`
		At   int64  `json:"at"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	role := domain.Role(req.Role)
	if role == "" {
		role = viewerRole
	}

	at, err := h.messageUC.MarkRead(c.Context(), room, role, req.At)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"last_read_at": at})
}

// ListConversations GET /api/v1/conversations
func (h *ChatHTTPHandler) ListConversations(c *fiber.Ctx) error {
	viewerID, role := viewerFromLocals(c)
	entries, err := h.directory.ListForViewer(c.Context(), viewerID, role)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"conversations": entries})
}

// GetProfile GET /api/v1/profiles/:id
func (h *ChatHTTPHandler) GetProfile(c *fiber.Ctx) error {
	id := c.Params("id")
	label, err := h.directory.DisplayLabel(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"id": id, "display_label": label})
}
