package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/observability"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// GradingService grades quiz attempts and feeds the result ledger.
type GradingService interface {
	Submit(ctx context.Context, actor Actor, quizID uint, req dto.QuizAttemptRequest) (dto.QuizAttemptResponse, error)
	Regrade(ctx context.Context, actor Actor, attemptID uint) (dto.QuizAttemptResponse, error)
	GetScore(ctx context.Context, actor Actor, attemptID uint) (dto.QuizScoreResponse, error)
}

// GradingDeps groups the collaborators of the grading service.
type GradingDeps struct {
	Students    repository.StudentRepository
	Quizzes     repository.QuizRepository
	Attempts    repository.QuizAttemptRepository
	Ledger      repository.LedgerRepository
	Coordinator *Coordinator
	Cache       *SelectionCache
	Activity    ActivityRecorder
	Validator   *validator.Validate
}

type gradingService struct {
	deps   GradingDeps
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(deps GradingDeps, logger zerolog.Logger) GradingService {
	if deps.Coordinator == nil {
		deps.Coordinator = NewCoordinator()
	}
	return &gradingService{
		deps:   deps,
		logger: logger.With().Str("component", "grading_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-selection-api/internal/service/grading"),
		now:    time.Now,
	}
}

func (s *gradingService) Submit(ctx context.Context, actor Actor, quizID uint, req dto.QuizAttemptRequest) (dto.QuizAttemptResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.submit", trace.WithAttributes(
		attribute.Int64("quiz.id", int64(quizID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.QuizGradingDuration().Observe(time.Since(start).Seconds())
	}()

	if err := s.deps.Validator.Struct(req); err != nil {
		return s.fail(span, "validation_failed", err)
	}

	studentID, err := targetStudent(actor, req.StudentID)
	if err != nil {
		return s.fail(span, "forbidden", err)
	}
	span.SetAttributes(attribute.Int64("student.id", int64(studentID)))

	if _, err := activeStudent(ctx, s.deps.Students, studentID); err != nil {
		return s.fail(span, "student_lookup_failed", err)
	}

	key, err := s.answerKey(ctx, quizID)
	if err != nil {
		return s.fail(span, "key_lookup_failed", err)
	}

	submittedAt := s.now()
	attempt := scoring.QuizAttempt{
		StudentID:   studentID,
		QuizID:      quizID,
		Answers:     req.ScoringAnswers(),
		SubmittedAt: submittedAt,
	}

	// Grade before persisting so a malformed attempt never reaches storage.
	graded, err := scoring.GradeQuiz(attempt, key)
	if err != nil {
		observability.QuizGraded().WithLabelValues("invalid").Inc()
		return s.fail(span, "grading_failed", err)
	}

	var response dto.QuizAttemptResponse
	err = s.deps.Coordinator.WithStudent(studentID, func() error {
		record := models.QuizAttempt{StudentID: studentID, QuizID: quizID, SubmittedAt: submittedAt}
		record.SetAnswers(attempt.Answers)
		score := models.NewQuizScore(graded, s.now())
		final, err := s.deps.Ledger.CommitAttempt(ctx, &record, s.deps.Attempts.Policy(), &score, scoring.Aggregate)
		if err != nil {
			return err
		}

		response = dto.QuizAttemptResponse{
			AttemptID:   record.ID,
			Superseded:  record.Superseded,
			SubmittedAt: record.SubmittedAt,
			Score:       dto.NewQuizScoreResponse(score),
			Result:      dto.NewFinalResultResponse(final),
		}
		return nil
	})
	if err != nil {
		noteConflict("quiz_submit", err)
		return s.fail(span, "commit_failed", err)
	}

	s.deps.Cache.Invalidate(ctx)
	observability.QuizGraded().WithLabelValues("graded").Inc()

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionAttemptSubmitted,
		EntityType: "quiz_attempt",
		EntityID:   strconv.FormatUint(uint64(response.AttemptID), 10),
		Metadata: map[string]interface{}{
			"quiz_id":    quizID,
			"student_id": studentID,
			"percentage": response.Score.Percentage,
			"policy":     string(s.deps.Attempts.Policy()),
		},
	})

	s.logger.Info().
		Uint("attempt_id", response.AttemptID).
		Uint("student_id", studentID).
		Float64("percentage", response.Score.Percentage).
		Msg("quiz attempt graded")

	return response, nil
}

func (s *gradingService) Regrade(ctx context.Context, actor Actor, attemptID uint) (dto.QuizAttemptResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.regrade", trace.WithAttributes(
		attribute.Int64("quiz.attempt_id", int64(attemptID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if !actor.CanManageAssessments() {
		return s.fail(span, "forbidden", ErrForbidden)
	}

	record, err := s.deps.Attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrAttemptNotFound
		}
		return s.fail(span, "attempt_lookup_failed", err)
	}

	key, err := s.answerKey(ctx, record.QuizID)
	if err != nil {
		return s.fail(span, "key_lookup_failed", err)
	}

	attempt, err := record.ToScoring()
	if err != nil {
		return s.fail(span, "attempt_decode_failed", err)
	}

	graded, err := scoring.GradeQuiz(attempt, key)
	if err != nil {
		observability.QuizGraded().WithLabelValues("invalid").Inc()
		return s.fail(span, "grading_failed", err)
	}

	var (
		response dto.QuizAttemptResponse
		previous *float64
	)
	err = s.deps.Coordinator.WithStudent(record.StudentID, func() error {
		existing, err := s.deps.Ledger.GetQuizScore(ctx, record.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			previous = &existing.Percentage
		}

		score := models.NewQuizScore(graded, s.now())
		final, err := s.deps.Ledger.CommitQuizScore(ctx, &score, scoring.Aggregate)
		if err != nil {
			return err
		}

		response = dto.QuizAttemptResponse{
			AttemptID:   record.ID,
			Superseded:  record.Superseded,
			SubmittedAt: record.SubmittedAt,
			Score:       dto.NewQuizScoreResponse(score),
			Result:      dto.NewFinalResultResponse(final),
		}
		return nil
	})
	if err != nil {
		noteConflict("quiz_regrade", err)
		return s.fail(span, "commit_failed", err)
	}

	s.deps.Cache.Invalidate(ctx)
	observability.QuizGraded().WithLabelValues("regraded").Inc()

	metadata := map[string]interface{}{
		"student_id": record.StudentID,
		"quiz_id":    record.QuizID,
		"percentage": response.Score.Percentage,
	}
	if previous != nil {
		metadata["previous_percentage"] = *previous
	}
	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionAttemptRegraded,
		EntityType: "quiz_attempt",
		EntityID:   strconv.FormatUint(uint64(record.ID), 10),
		Metadata:   metadata,
	})

	return response, nil
}

func (s *gradingService) GetScore(ctx context.Context, actor Actor, attemptID uint) (dto.QuizScoreResponse, error) {
	record, err := s.deps.Attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizScoreResponse{}, ErrAttemptNotFound
		}
		return dto.QuizScoreResponse{}, err
	}
	if !actor.CanActFor(record.StudentID) {
		return dto.QuizScoreResponse{}, ErrForbidden
	}

	score, err := s.deps.Ledger.GetQuizScore(ctx, attemptID)
	if err != nil {
		return dto.QuizScoreResponse{}, err
	}
	if score == nil {
		return dto.QuizScoreResponse{}, ErrScoreNotFound
	}
	return dto.NewQuizScoreResponse(*score), nil
}

func (s *gradingService) answerKey(ctx context.Context, quizID uint) (scoring.AnswerKey, error) {
	key, err := s.deps.Quizzes.GetKey(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return scoring.AnswerKey{}, ErrQuizNotFound
		}
		return scoring.AnswerKey{}, err
	}
	return key, nil
}

func (s *gradingService) fail(span trace.Span, status string, err error) (dto.QuizAttemptResponse, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return dto.QuizAttemptResponse{}, err
}

func noteConflict(operation string, err error) {
	if errors.Is(err, ErrConcurrencyConflict) {
		observability.LedgerConflicts().WithLabelValues(operation).Inc()
	}
}
