package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// QuizService publishes quizzes with their answer keys. Question text
// generation happens upstream; only the key is stored here.
type QuizService interface {
	Create(ctx context.Context, actor Actor, req dto.QuizCreateRequest) (dto.QuizResponse, error)
	Get(ctx context.Context, id uint) (dto.QuizResponse, error)
}

type quizService struct {
	repo      repository.QuizRepository
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewQuizService constructs the quiz service.
func NewQuizService(repo repository.QuizRepository, validate *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) QuizService {
	return &quizService{
		repo:      repo,
		validator: validate,
		activity:  activity,
		logger:    logger.With().Str("component", "quiz_service").Logger(),
	}
}

func (s *quizService) Create(ctx context.Context, actor Actor, req dto.QuizCreateRequest) (dto.QuizResponse, error) {
	if !actor.CanManageAssessments() {
		return dto.QuizResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.QuizResponse{}, err
	}

	key, err := scoring.NewAnswerKey(0, req.KeyEntries())
	if err != nil {
		return dto.QuizResponse{}, err
	}
	if key.TotalPossible() <= 0 {
		return dto.QuizResponse{}, &scoring.ValidationError{
			Field:  "questions",
			Reason: "questions must be worth more than zero points in total",
			Err:    scoring.ErrDivisionUndefined,
		}
	}

	quiz := models.Quiz{
		Title:      strings.TrimSpace(req.Title),
		Topic:      strings.TrimSpace(req.Topic),
		Difficulty: req.Difficulty,
	}
	if err := quiz.SetKey(key.Entries); err != nil {
		return dto.QuizResponse{}, err
	}
	if err := s.repo.Create(ctx, &quiz); err != nil {
		return dto.QuizResponse{}, err
	}
	key.QuizID = quiz.ID

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionQuizPublished,
		EntityType: "quiz",
		EntityID:   strconv.FormatUint(uint64(quiz.ID), 10),
		Metadata:   map[string]interface{}{"questions": len(key.Entries)},
	})

	return dto.NewQuizResponse(quiz, key), nil
}

func (s *quizService) Get(ctx context.Context, id uint) (dto.QuizResponse, error) {
	quiz, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizResponse{}, ErrQuizNotFound
		}
		return dto.QuizResponse{}, err
	}

	key, err := quiz.AnswerKey()
	if err != nil {
		return dto.QuizResponse{}, err
	}
	return dto.NewQuizResponse(quiz, key), nil
}
