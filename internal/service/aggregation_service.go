package service

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// AggregationService exposes the live final result of each student.
type AggregationService interface {
	Recompute(ctx context.Context, actor Actor, studentID uint) (dto.FinalResultResponse, error)
	Get(ctx context.Context, actor Actor, studentID uint) (dto.FinalResultResponse, error)
	List(ctx context.Context, actor Actor, req dto.ResultListRequest) (dto.ResultListResponse, error)
}

type aggregationService struct {
	students    repository.StudentRepository
	ledger      repository.LedgerRepository
	coordinator *Coordinator
	cache       *SelectionCache
	activity    ActivityRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewAggregationService constructs the aggregation service.
func NewAggregationService(
	students repository.StudentRepository,
	ledger repository.LedgerRepository,
	coordinator *Coordinator,
	cache *SelectionCache,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) AggregationService {
	if coordinator == nil {
		coordinator = NewCoordinator()
	}
	return &aggregationService{
		students:    students,
		ledger:      ledger,
		coordinator: coordinator,
		cache:       cache,
		activity:    activity,
		validator:   validate,
		logger:      logger.With().Str("component", "aggregation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-selection-api/internal/service/aggregation"),
	}
}

// Recompute rebuilds the student's result from the stored scores.
func (s *aggregationService) Recompute(ctx context.Context, actor Actor, studentID uint) (dto.FinalResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "aggregation.recompute", trace.WithAttributes(
		attribute.Int64("student.id", int64(studentID)),
	))
	defer span.End()

	if !actor.CanManageAssessments() {
		span.SetStatus(codes.Error, "forbidden")
		return dto.FinalResultResponse{}, ErrForbidden
	}
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		err = mapStudentLookup(err)
		span.RecordError(err)
		return dto.FinalResultResponse{}, err
	}

	var response dto.FinalResultResponse
	err := s.coordinator.WithStudent(studentID, func() error {
		final, err := s.ledger.Recompute(ctx, studentID, scoring.Aggregate)
		if err != nil {
			return err
		}
		response = dto.NewFinalResultResponse(final)
		return nil
	})
	if err != nil {
		noteConflict("recompute", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "recompute failed")
		return dto.FinalResultResponse{}, err
	}

	s.cache.Invalidate(ctx)

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionResultRecomputed,
		EntityType: "final_result",
		EntityID:   strconv.FormatUint(uint64(studentID), 10),
		Metadata: map[string]interface{}{
			"status":  response.Status,
			"missing": response.Missing,
		},
	})

	return response, nil
}

func (s *aggregationService) Get(ctx context.Context, actor Actor, studentID uint) (dto.FinalResultResponse, error) {
	if !actor.CanActFor(studentID) {
		return dto.FinalResultResponse{}, ErrForbidden
	}

	result, err := s.ledger.Get(ctx, studentID)
	if err != nil {
		return dto.FinalResultResponse{}, err
	}
	if result == nil {
		return dto.FinalResultResponse{}, ErrResultNotFound
	}
	return dto.NewFinalResultResponse(*result), nil
}

func (s *aggregationService) List(ctx context.Context, actor Actor, req dto.ResultListRequest) (dto.ResultListResponse, error) {
	if !actor.IsStaff() {
		return dto.ResultListResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ResultListResponse{}, err
	}

	rows, err := s.ledger.ListAll(ctx)
	if err != nil {
		return dto.ResultListResponse{}, err
	}

	counts := map[string]int{
		string(scoring.StatusNotEligible): 0,
		string(scoring.StatusEligible):    0,
		string(scoring.StatusSelected):    0,
		string(scoring.StatusRejected):    0,
	}
	items := make([]dto.FinalResultResponse, 0, len(rows))
	for _, row := range rows {
		counts[row.Status]++
		if req.Status != "" && row.Status != req.Status {
			continue
		}
		items = append(items, dto.NewFinalResultResponse(row))
	}

	return dto.ResultListResponse{Items: items, Counts: counts}, nil
}

func mapStudentLookup(err error) error {
	if isNotFound(err) {
		return ErrStudentNotFound
	}
	return err
}
