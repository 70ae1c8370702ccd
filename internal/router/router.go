package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-selection-api/internal/config"
	"github.com/noah-isme/gema-selection-api/internal/handler"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StudentHandler   *handler.StudentHandler
	QuizHandler      *handler.QuizHandler
	VideoHandler     *handler.VideoHandler
	ResultHandler    *handler.ResultHandler
	SelectionHandler *handler.SelectionHandler
	ActivityHandler  *handler.ActivityHandler
	HealthProbes     []handler.Probe
	MetricsHandler   fiber.Handler
	JWTMiddleware    fiber.Handler
	RateLimiter      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	if deps.MetricsHandler != nil {
		app.Get("/metrics", deps.MetricsHandler)
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	assessment := app.Group("/api/v2/assessment", jwtMiddleware)
	if deps.RateLimiter != nil {
		assessment.Use(deps.RateLimiter)
	}

	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(assessment.Group("/students"))
	}
	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(assessment.Group("/quizzes"))
	}
	if deps.VideoHandler != nil {
		deps.VideoHandler.Register(assessment.Group("/videos"))
	}
	if deps.ResultHandler != nil {
		deps.ResultHandler.Register(assessment.Group("/results"))
	}
	if deps.SelectionHandler != nil {
		deps.SelectionHandler.Register(assessment.Group("/selection", middleware.RequireStaff()))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(assessment.Group("/activity", middleware.RequireStaff()))
	}
}
