package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/answer"
	"github.com/campusbrain/backend/internal/persona"
	"github.com/campusbrain/backend/pkg/logger"
)

type ChatHandler struct {
	service  *answer.Service
	personas *persona.Registry
}

func NewChatHandler(service *answer.Service, personas *persona.Registry) *ChatHandler {
	return &ChatHandler{
		service:  service,
		personas: personas,
	}
}

// HandleChat answers one question. The widget renders whatever comes back in
// "response", so every outcome past body parsing is a 200 with text: pipeline
// failures already arrive collapsed into friendly strings from the service.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Message string `json:"message"`
		Year    string `json:"year"`
		Mode    string `json:"mode"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resp := h.service.Answer(c.Context(), answer.Request{
		Question: req.Message,
		Cohort:   req.Year,
		Persona:  req.Mode,
	})

	return c.JSON(fiber.Map{
		"response": resp.Answer,
	})
}

// ListPersonas returns the answer modes the widget can offer.
func (h *ChatHandler) ListPersonas(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"personas": h.personas.Keys(),
		"default":  persona.DefaultKey,
	})
}
