package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/observability"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// SelectionService ranks eligible students on explicit request and
// publishes the outcome.
type SelectionService interface {
	Run(ctx context.Context, actor Actor, req dto.SelectionRunRequest) (dto.SelectionRunResponse, error)
	Latest(ctx context.Context, actor Actor) (dto.SelectionRunResponse, error)
	Release(ctx context.Context, actor Actor, req dto.SelectionReleaseRequest) (dto.SelectionRunResponse, error)
}

// SelectionDeps groups the collaborators of the selection service.
type SelectionDeps struct {
	Ledger      repository.LedgerRepository
	Runs        repository.SelectionRunRepository
	Coordinator *Coordinator
	Cache       *SelectionCache
	Publisher   ResultPublisher
	Activity    ActivityRecorder
	Validator   *validator.Validate
}

type selectionService struct {
	deps   SelectionDeps
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// NewSelectionService constructs the selection service.
func NewSelectionService(deps SelectionDeps, logger zerolog.Logger) SelectionService {
	if deps.Coordinator == nil {
		deps.Coordinator = NewCoordinator()
	}
	return &selectionService{
		deps:   deps,
		logger: logger.With().Str("component", "selection_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-selection-api/internal/service/selection"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *selectionService) Run(ctx context.Context, actor Actor, req dto.SelectionRunRequest) (dto.SelectionRunResponse, error) {
	ctx, span := s.tracer.Start(ctx, "selection.run", trace.WithAttributes(
		attribute.String("selection.mode", req.Mode),
		attribute.Int64("selection.actor_id", int64(actor.ID)),
	))
	defer span.End()

	if !actor.CanManageAssessments() {
		return s.fail(span, "", "forbidden", ErrForbidden)
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return s.fail(span, "", "validation failed", err)
	}

	params, err := scoring.NewSelectionParams(scoring.SelectionMode(req.Mode), *req.Value)
	if err != nil {
		return s.fail(span, "", "validation failed", err)
	}

	var (
		run         models.SelectionRun
		ranked      []models.FinalResult
		transitions []ResultEvent
		generation  int64
		cacheable   bool
	)
	err = s.deps.Coordinator.Exclusive(func() error {
		generation, cacheable = s.deps.Cache.Generation(ctx)
		rows, err := s.deps.Ledger.ListAll(ctx)
		if err != nil {
			return err
		}

		input := make([]scoring.FinalResult, len(rows))
		for i, row := range rows {
			input[i] = row.ToScoring()
		}

		outcome, err := scoring.Select(input, params)
		if err != nil {
			return err
		}

		run = models.SelectionRun{
			ID:             s.newID(),
			Mode:           string(params.Mode),
			Value:          params.Value(),
			CandidateCount: outcome.CandidateCount,
			Cutoff:         outcome.Cutoff,
			TriggeredBy:    actor.ID,
			TriggeredRole:  actor.Role,
			RunAt:          s.now().UTC(),
		}
		run.SetSelectedIDs(outcome.SelectedIDs())
		run.RankingDigest = rankingDigest(outcome.Ranking)

		updates := make([]models.FinalResult, 0, outcome.CandidateCount)
		previous := make(map[uint]string, outcome.CandidateCount)
		for i, result := range outcome.Results {
			if !result.Ranked() {
				continue
			}
			row := rows[i]
			previous[row.StudentID] = row.Status
			row.Status = string(result.Status)
			row.Rank = result.Rank
			updates = append(updates, row)
		}

		if err := s.deps.Ledger.ApplySelection(ctx, &run, updates); err != nil {
			return err
		}

		byStudent := make(map[uint]models.FinalResult, len(updates))
		for _, row := range updates {
			byStudent[row.StudentID] = row
		}
		ranked = make([]models.FinalResult, 0, len(outcome.Ranking))
		for _, entry := range outcome.Ranking {
			row := byStudent[entry.StudentID]
			ranked = append(ranked, row)
			if previous[row.StudentID] != row.Status {
				transitions = append(transitions, transitionEvent(run, row))
			}
		}
		return nil
	})
	if err != nil {
		noteConflict("selection", err)
		return s.fail(span, string(params.Mode), "selection failed", err)
	}

	response := dto.NewSelectionRunResponse(run, ranked)
	if cacheable {
		s.deps.Cache.Set(ctx, generation, response)
	}
	s.publish(ctx, transitions...)

	observability.SelectionRuns().WithLabelValues(run.Mode, "succeeded").Inc()
	observability.SelectionSelected().Set(float64(run.Cutoff))
	span.SetAttributes(
		attribute.String("selection.run_id", run.ID),
		attribute.Int("selection.candidates", run.CandidateCount),
		attribute.Int("selection.cutoff", run.Cutoff),
	)

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionSelectionRun,
		EntityType: "selection_run",
		EntityID:   run.ID,
		Metadata: map[string]interface{}{
			"mode":        run.Mode,
			"value":       run.Value,
			"candidates":  run.CandidateCount,
			"cutoff":      run.Cutoff,
			"transitions": len(transitions),
		},
	})

	s.logger.Info().
		Str("run_id", run.ID).
		Str("mode", run.Mode).
		Float64("value", run.Value).
		Int("candidates", run.CandidateCount).
		Int("cutoff", run.Cutoff).
		Msg("selection run applied")

	return response, nil
}

func (s *selectionService) Latest(ctx context.Context, actor Actor) (dto.SelectionRunResponse, error) {
	if !actor.CanManageAssessments() {
		return dto.SelectionRunResponse{}, ErrForbidden
	}

	if cached, ok := s.deps.Cache.Get(ctx); ok {
		return cached, nil
	}

	generation, cacheable := s.deps.Cache.Generation(ctx)
	run, err := s.deps.Runs.Latest(ctx)
	if err != nil {
		return dto.SelectionRunResponse{}, err
	}
	if run == nil {
		return dto.SelectionRunResponse{}, ErrSelectionRunNotFound
	}

	response, err := s.load(ctx, *run)
	if err != nil {
		return dto.SelectionRunResponse{}, err
	}
	if cacheable {
		s.deps.Cache.Set(ctx, generation, response)
	}
	return response, nil
}

func (s *selectionService) Release(ctx context.Context, actor Actor, req dto.SelectionReleaseRequest) (dto.SelectionRunResponse, error) {
	ctx, span := s.tracer.Start(ctx, "selection.release")
	defer span.End()

	if !actor.CanManageAssessments() {
		return s.fail(span, "", "forbidden", ErrForbidden)
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return s.fail(span, "", "validation failed", err)
	}

	runID := req.RunID
	if runID == "" {
		latest, err := s.deps.Runs.Latest(ctx)
		if err != nil {
			return s.fail(span, "", "lookup failed", err)
		}
		if latest == nil {
			return s.fail(span, "", "lookup failed", ErrSelectionRunNotFound)
		}
		runID = latest.ID
	}
	span.SetAttributes(attribute.String("selection.run_id", runID))

	if err := s.deps.Runs.MarkReleased(ctx, runID, s.now().UTC()); err != nil {
		if isNotFound(err) {
			err = ErrSelectionRunNotFound
		}
		return s.fail(span, "", "release failed", err)
	}

	run, err := s.deps.Runs.GetByID(ctx, runID)
	if err != nil {
		return s.fail(span, "", "lookup failed", err)
	}
	response, err := s.load(ctx, run)
	if err != nil {
		return s.fail(span, "", "lookup failed", err)
	}

	s.deps.Cache.Invalidate(ctx)
	s.publish(ctx, ResultEvent{
		Type:       EventResultsReleased,
		RunID:      run.ID,
		Message:    fmt.Sprintf("Selection results released: %d of %d candidates selected", run.Cutoff, run.CandidateCount),
		OccurredAt: *run.ReleasedAt,
	})

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionSelectionRelease,
		EntityType: "selection_run",
		EntityID:   run.ID,
		Metadata: map[string]interface{}{
			"selected": len(response.SelectedIDs),
		},
	})

	return response, nil
}

func (s *selectionService) load(ctx context.Context, run models.SelectionRun) (dto.SelectionRunResponse, error) {
	rows, err := s.deps.Ledger.ListByRun(ctx, run.ID)
	if err != nil {
		return dto.SelectionRunResponse{}, err
	}
	return dto.NewSelectionRunResponse(run, rows), nil
}

// publish hands events to the dispatcher. Delivery failures are logged; the
// ledger is already committed.
func (s *selectionService) publish(ctx context.Context, events ...ResultEvent) {
	if s.deps.Publisher == nil || len(events) == 0 {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn().Err(err).Int("events", len(events)).Msg("failed to publish result events")
	}
}

func (s *selectionService) fail(span trace.Span, mode, status string, err error) (dto.SelectionRunResponse, error) {
	if mode != "" {
		observability.SelectionRuns().WithLabelValues(mode, "failed").Inc()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return dto.SelectionRunResponse{}, err
}

func transitionEvent(run models.SelectionRun, row models.FinalResult) ResultEvent {
	eventType := EventResultRejected
	message := "Your application was not selected in this round"
	if row.Status == string(scoring.StatusSelected) {
		eventType = EventResultSelected
		message = "Congratulations, you have been selected at rank " + strconv.Itoa(derefInt(row.Rank))
	}
	return ResultEvent{
		Type:       eventType,
		StudentID:  row.StudentID,
		RunID:      run.ID,
		Status:     row.Status,
		Rank:       row.Rank,
		FinalScore: row.FinalScore,
		Message:    message,
		OccurredAt: run.RunAt,
	}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// rankingDigest fingerprints a ranking so identical runs can be recognised
// in the audit trail.
func rankingDigest(ranking []scoring.RankedResult) string {
	payload, err := json.Marshal(ranking)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
