package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// APIKeyAuth guards operator endpoints (catalog writes, refunds) with a
// static X-API-KEY header. An empty configured key rejects everything.
func APIKeyAuth(expectedAPIKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get("X-API-KEY")
		if apiKey == "" || apiKey != expectedAPIKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"status": false, "error": "unauthorized"})
		}
		return c.Next()
	}
}
