package api

import (
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, handler *Handler, metricsPath string) {
	app.Post("/set", handler.Set)
	app.Get("/get/:key", handler.Get)
	app.Get("/list", handler.List)
	app.Get("/status", handler.Status)

	app.Get("/health", handler.Health)
	if metricsPath != "" {
		app.Get(metricsPath, telemetry.PrometheusHandler())
	}

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(NewErrorResponse(MsgEndpointNotFound))
	})
}
