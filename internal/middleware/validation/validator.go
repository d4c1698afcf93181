// Package validation rejects malformed chat requests before they reach the
// answer pipeline. Anything that passes here gets a 200 with renderable text
// from the handler, so this is the only place a client sees a 4xx for /chat.
package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxMessageLength int
	Logger           *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 4000
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var req map[string]interface{}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		if message, ok := req["message"].(string); ok && len(message) > cfg.MaxMessageLength {
			cfg.Logger.Warn("Oversize chat message rejected",
				zap.String("ip", c.IP()),
				zap.Int("length", len(message)),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Message exceeds maximum length",
			})
		}

		return c.Next()
	}
}
