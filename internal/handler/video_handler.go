package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
	"github.com/noah-isme/gema-selection-api/internal/service"
	"github.com/noah-isme/gema-selection-api/internal/utils"
)

// VideoHandler exposes video submission and analysis endpoints.
type VideoHandler struct {
	service service.VideoService
	logger  zerolog.Logger
}

// NewVideoHandler constructs the handler.
func NewVideoHandler(service service.VideoService, logger zerolog.Logger) *VideoHandler {
	return &VideoHandler{
		service: service,
		logger:  logger.With().Str("component", "video_handler").Logger(),
	}
}

// Register attaches video endpoints to the router group.
func (h *VideoHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("/", middleware.WithAuth(h.submit, middleware.AuthOptions{}))
	router.Post("/upload", middleware.WithAuth(h.upload, middleware.AuthOptions{}))
	router.Get("/:id", middleware.WithAuth(h.get, middleware.AuthOptions{}))
	router.Post("/:id/analysis", middleware.WithAuth(h.recordAnalysis, staff))
	router.Post("/:id/analyze", middleware.WithAuth(h.analyze, staff))
	router.Post("/:id/failed", middleware.WithAuth(h.markFailed, staff))
}

func (h *VideoHandler) submit(c *fiber.Ctx) error {
	var payload dto.VideoSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.Submit(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit video")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "video submitted", submission)
}

func (h *VideoHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	studentID, err := parseFormUint(c, "student_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	submission, err := h.service.Upload(requestContext(c), actorFromContext(c), studentID, c.FormValue("topic"), file)
	if err != nil {
		return respondError(c, h.logger, err, "failed to upload video")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "video uploaded", submission)
}

func (h *VideoHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	submission, err := h.service.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load video submission")
	}
	return utils.SendSuccess(c, "video submission retrieved", submission)
}

func (h *VideoHandler) recordAnalysis(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.VideoAnalysisRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	score, err := h.service.RecordAnalysis(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record analysis")
	}
	return utils.SendSuccess(c, "video scored", score)
}

func (h *VideoHandler) analyze(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.VideoAnalyzeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	score, err := h.service.Analyze(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to analyze video")
	}
	return utils.SendSuccess(c, "video analyzed", score)
}

func (h *VideoHandler) markFailed(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.VideoFailedRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.service.MarkFailed(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to mark video as failed")
	}
	return utils.SendSuccess(c, "video marked as failed", submission)
}
