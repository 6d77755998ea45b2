package middleware

import (
	"crypto/subtle"

	"portfel-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards reference-data writes. An empty key disables the routes (403 for all).
func RequireAdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(AdminKeyHeader)
		if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
