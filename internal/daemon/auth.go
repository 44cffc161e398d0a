package daemon

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"bobbin/internal/api"
)

// authMiddleware validates bearer tokens. With an empty token every request
// passes through; otherwise requests must carry "Authorization: Bearer <token>".
func authMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		auth := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(api.ErrorResponse{Error: "unauthorized"})
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(auth, "Bearer ")), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(api.ErrorResponse{Error: "unauthorized"})
		}
		return c.Next()
	}
}
