package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
	"github.com/noah-isme/gema-selection-api/internal/service"
	"github.com/noah-isme/gema-selection-api/internal/utils"
)

// SelectionHandler exposes ranking runs and their release.
type SelectionHandler struct {
	service service.SelectionService
	logger  zerolog.Logger
}

// NewSelectionHandler constructs the handler.
func NewSelectionHandler(service service.SelectionService, logger zerolog.Logger) *SelectionHandler {
	return &SelectionHandler{
		service: service,
		logger:  logger.With().Str("component", "selection_handler").Logger(),
	}
}

// Register attaches selection endpoints. Every route is staff only.
func (h *SelectionHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("/runs", middleware.WithAuth(h.run, staff))
	router.Get("/runs/latest", middleware.WithAuth(h.latest, staff))
	router.Post("/release", middleware.WithAuth(h.release, staff))
}

func (h *SelectionHandler) run(c *fiber.Ctx) error {
	var payload dto.SelectionRunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	run, err := h.service.Run(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to run selection")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "selection completed", run)
}

func (h *SelectionHandler) latest(c *fiber.Ctx) error {
	run, err := h.service.Latest(requestContext(c), actorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load selection run")
	}
	return utils.SendSuccess(c, "selection run retrieved", run)
}

func (h *SelectionHandler) release(c *fiber.Ctx) error {
	var payload dto.SelectionReleaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	run, err := h.service.Release(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to release results")
	}
	return utils.SendSuccess(c, "results released", run)
}
