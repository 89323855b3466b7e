package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// New builds the shared fiber app every service mounts its routes on.
// Route registration happens on the returned api group.
func New() (*fiber.App, fiber.Router) {
	app := fiber.New(fiber.Config{})
	app.Use(cors.New())
	app.Use(recover.New())

	api := app.Group("/api", logger.New())
	api.Get("/test.json", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": true, "message": "Pong"})
	})
	return app, api
}
