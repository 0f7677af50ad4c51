// Package validation rejects malformed write requests before they reach a
// handler.
package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxBodyBytes        int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 64 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPatch && method != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		allowed := false
		for _, t := range cfg.AllowedContentTypes {
			if strings.Contains(contentType, t) {
				allowed = true
				break
			}
		}
		if !allowed {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		if len(c.Body()) > cfg.MaxBodyBytes {
			cfg.Logger.Warn("Request body too large",
				zap.Int("bytes", len(c.Body())),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "Request body too large",
			})
		}

		return c.Next()
	}
}
