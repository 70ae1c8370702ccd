package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
	"github.com/noah-isme/gema-selection-api/internal/service"
	"github.com/noah-isme/gema-selection-api/internal/utils"
)

// QuizHandler exposes quiz publishing and attempt grading.
type QuizHandler struct {
	quizzes service.QuizService
	grading service.GradingService
	logger  zerolog.Logger
}

// NewQuizHandler constructs the handler.
func NewQuizHandler(quizzes service.QuizService, grading service.GradingService, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizzes: quizzes,
		grading: grading,
		logger:  logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// Register attaches quiz endpoints to the router group.
func (h *QuizHandler) Register(router fiber.Router) {
	staff := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Post("/", middleware.WithAuth(h.create, staff))
	router.Get("/:id", middleware.WithAuth(h.get, middleware.AuthOptions{}))
	router.Post("/:id/attempts", middleware.WithAuth(h.submit, middleware.AuthOptions{}))
	router.Get("/attempts/:id/score", middleware.WithAuth(h.score, middleware.AuthOptions{}))
	router.Post("/attempts/:id/regrade", middleware.WithAuth(h.regrade, staff))
}

func (h *QuizHandler) create(c *fiber.Ctx) error {
	var payload dto.QuizCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	quiz, err := h.quizzes.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create quiz")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz created", quiz)
}

func (h *QuizHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	quiz, err := h.quizzes.Get(requestContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load quiz")
	}
	return utils.SendSuccess(c, "quiz retrieved", quiz)
}

func (h *QuizHandler) submit(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.QuizAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	attempt, err := h.grading.Submit(requestContext(c), actorFromContext(c), quizID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to grade attempt")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt graded", attempt)
}

func (h *QuizHandler) score(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	score, err := h.grading.GetScore(requestContext(c), actorFromContext(c), attemptID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load score")
	}
	return utils.SendSuccess(c, "score retrieved", score)
}

func (h *QuizHandler) regrade(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	attempt, err := h.grading.Regrade(requestContext(c), actorFromContext(c), attemptID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to regrade attempt")
	}
	return utils.SendSuccess(c, "attempt regraded", attempt)
}
