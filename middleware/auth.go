package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"support-router/logger"
)

// RequireAdminToken accepts requests whose bearer token matches the bcrypt
// hash. The websocket feed may pass the token as ?token= instead, since
// browsers cannot set headers on an upgrade.
func RequireAdminToken(tokenHash string) fiber.Handler {
	hash := []byte(tokenHash)

	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
			logger.Log.Info("Admin token rejected", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		return c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
