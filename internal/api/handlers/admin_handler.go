package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/storage/sqlite"
	"github.com/campusbrain/backend/pkg/logger"
)

// AdminHandler exposes the operational read-side: recent chats for eyeballing
// answer quality. Not linked from the widget.
type AdminHandler struct {
	store *sqlite.Client
}

func NewAdminHandler(store *sqlite.Client) *AdminHandler {
	return &AdminHandler{store: store}
}

func (h *AdminHandler) RecentChats(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	records, err := h.store.RecentChats(limit)
	if err != nil {
		logger.Error("Failed to read chat log", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read chat log",
		})
	}

	out := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		out = append(out, fiber.Map{
			"id":         rec.ID,
			"cohort":     rec.Cohort,
			"persona":    rec.Persona,
			"question":   rec.Question,
			"answer":     rec.Answer,
			"outcome":    rec.Outcome,
			"latency_ms": rec.LatencyMS,
			"created_at": rec.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"chats": out,
	})
}
