package api

import (
	"errors"
	"fmt"
	"time"

	fibertrace "github.com/DataDog/dd-trace-go/contrib/gofiber/fiber.v2/v2"
	"github.com/birbparty/cooldb/internal/telemetry"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// SetupMiddleware configures all middleware for the application
func SetupMiddleware(app *fiber.App) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, traceparent, tracestate",
	}))

	app.Use(fibertrace.Middleware(fibertrace.WithService("cooldb-api")))
	app.Use(telemetry.FiberMetricsMiddleware())
	app.Use(telemetry.FiberLoggingMiddleware())
	app.Use(timingMiddleware())
}

// ErrorHandler renders every unhandled error as {"error": message}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(NewErrorResponse(err.Error()))
}

// timingMiddleware adds request timing headers
func timingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		c.Set("X-Response-Time", fmt.Sprintf("%d ms", time.Since(start).Milliseconds()))

		return err
	}
}
