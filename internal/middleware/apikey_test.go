package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guardedApp(key string) *fiber.App {
	app := fiber.New()
	app.Get("/admin", APIKeyAuth(key), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": true})
	})
	return app
}

func TestAPIKeyAuthAccepts(t *testing.T) {
	app := guardedApp("secret")

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-API-KEY", "secret")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPIKeyAuthRejects(t *testing.T) {
	app := guardedApp("secret")

	for _, header := range []string{"", "wrong"} {
		req := httptest.NewRequest("GET", "/admin", nil)
		if header != "" {
			req.Header.Set("X-API-KEY", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}
}

func TestAPIKeyAuthEmptyConfiguredKeyRejectsAll(t *testing.T) {
	app := guardedApp("")

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-API-KEY", "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
