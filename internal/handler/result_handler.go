package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
	"github.com/noah-isme/gema-selection-api/internal/service"
	"github.com/noah-isme/gema-selection-api/internal/utils"
)

// ResultHandler exposes the aggregated final results.
type ResultHandler struct {
	service service.AggregationService
	logger  zerolog.Logger
}

// NewResultHandler constructs the handler.
func NewResultHandler(service service.AggregationService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: service,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches result endpoints to the router group.
func (h *ResultHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("/", middleware.WithAuth(h.list, staff))
	router.Get("/:studentId", middleware.WithAuth(h.get, middleware.AuthOptions{}))
	router.Post("/:studentId/recompute", middleware.WithAuth(h.recompute, staff))
}

func (h *ResultHandler) list(c *fiber.Ctx) error {
	results, err := h.service.List(requestContext(c), actorFromContext(c), dto.ResultListRequest{Status: c.Query("status")})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list results")
	}
	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ResultHandler) get(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	result, err := h.service.Get(requestContext(c), actorFromContext(c), studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load result")
	}
	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *ResultHandler) recompute(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	result, err := h.service.Recompute(requestContext(c), actorFromContext(c), studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to recompute result")
	}
	return utils.SendSuccess(c, "result recomputed", result)
}
