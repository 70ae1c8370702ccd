package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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
	"github.com/noah-isme/gema-selection-api/pkg/ai"
)

var driveLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`^https://drive\.google\.com/open\?id=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`^https://docs\.google\.com/.*?/d/([a-zA-Z0-9_-]+)`),
}

// VideoStorage stores uploaded video files and returns their public reference.
type VideoStorage interface {
	UploadVideo(ctx context.Context, name string, reader io.Reader) (string, string, error)
}

// VideoService registers presentation videos and turns analyses into scores.
type VideoService interface {
	Submit(ctx context.Context, actor Actor, req dto.VideoSubmitRequest) (dto.VideoSubmissionResponse, error)
	Upload(ctx context.Context, actor Actor, studentID uint, topic string, file *multipart.FileHeader) (dto.VideoSubmissionResponse, error)
	Get(ctx context.Context, actor Actor, id uint) (dto.VideoSubmissionResponse, error)
	RecordAnalysis(ctx context.Context, actor Actor, id uint, req dto.VideoAnalysisRequest) (dto.VideoScoreResponse, error)
	Analyze(ctx context.Context, actor Actor, id uint, req dto.VideoAnalyzeRequest) (dto.VideoScoreResponse, error)
	MarkFailed(ctx context.Context, actor Actor, id uint, req dto.VideoFailedRequest) (dto.VideoSubmissionResponse, error)
}

// VideoDeps groups the collaborators of the video service. Storage and
// Analyzer are optional.
type VideoDeps struct {
	Students    repository.StudentRepository
	Videos      repository.VideoSubmissionRepository
	Ledger      repository.LedgerRepository
	Coordinator *Coordinator
	Cache       *SelectionCache
	Activity    ActivityRecorder
	Validator   *validator.Validate
	Storage     VideoStorage
	Analyzer    ai.VideoAnalyzer
	MaxUploadMB int
}

type videoService struct {
	deps      VideoDeps
	maxSize   int64
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewVideoService constructs the video service.
func NewVideoService(deps VideoDeps, logger zerolog.Logger) VideoService {
	if deps.Coordinator == nil {
		deps.Coordinator = NewCoordinator()
	}
	if deps.MaxUploadMB <= 0 {
		deps.MaxUploadMB = 200
	}
	return &videoService{
		deps:      deps,
		maxSize:   int64(deps.MaxUploadMB) * 1024 * 1024,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "video_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-selection-api/internal/service/video"),
		now:       time.Now,
	}
}

func (s *videoService) Submit(ctx context.Context, actor Actor, req dto.VideoSubmitRequest) (dto.VideoSubmissionResponse, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.VideoSubmissionResponse{}, err
	}

	studentID, err := targetStudent(actor, req.StudentID)
	if err != nil {
		return dto.VideoSubmissionResponse{}, err
	}
	if _, err := activeStudent(ctx, s.deps.Students, studentID); err != nil {
		return dto.VideoSubmissionResponse{}, err
	}

	link := strings.TrimSpace(req.VideoURL)
	fileID, ok := DriveFileID(link)
	if !ok {
		return dto.VideoSubmissionResponse{}, ErrInvalidVideoLink
	}

	submission := models.VideoSubmission{
		StudentID:   studentID,
		VideoURL:    link,
		ExternalID:  fileID,
		Topic:       strings.TrimSpace(req.Topic),
		SubmittedAt: s.now(),
	}
	return s.register(ctx, actor, submission, "drive")
}

func (s *videoService) Upload(ctx context.Context, actor Actor, studentID uint, topic string, file *multipart.FileHeader) (dto.VideoSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "video.upload", trace.WithAttributes(
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	if s.deps.Storage == nil {
		return s.failSubmission(span, "storage unavailable", ErrStorageUnavailable)
	}
	if file == nil {
		return s.failSubmission(span, "validation failed", &scoring.ValidationError{
			Field:  "file",
			Reason: "file is required",
			Err:    ErrUploadTypeNotAllowed,
		})
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	studentID, err := targetStudent(actor, studentID)
	if err != nil {
		return s.failSubmission(span, "forbidden", err)
	}
	if _, err := activeStudent(ctx, s.deps.Students, studentID); err != nil {
		return s.failSubmission(span, "student lookup failed", err)
	}

	if file.Size > s.maxSize {
		return s.failSubmission(span, "payload too large", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		return s.failSubmission(span, "open failed", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return s.failSubmission(span, "read failed", err)
	}
	if int64(buf.Len()) > s.maxSize {
		return s.failSubmission(span, "payload too large", ErrUploadTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", detected.String()))
	if !strings.HasPrefix(detected.String(), "video/") {
		return s.failSubmission(span, "type not allowed", ErrUploadTypeNotAllowed)
	}

	url, publicID, err := s.deps.Storage.UploadVideo(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return s.failSubmission(span, "storage failed", err)
	}

	submission := models.VideoSubmission{
		StudentID:   studentID,
		VideoURL:    url,
		ExternalID:  publicID,
		Topic:       strings.TrimSpace(topic),
		SubmittedAt: s.now(),
	}
	response, err := s.register(ctx, actor, submission, "upload")
	if err != nil {
		return s.failSubmission(span, "persistence failed", err)
	}
	span.SetStatus(codes.Ok, "stored")
	return response, nil
}

func (s *videoService) register(ctx context.Context, actor Actor, submission models.VideoSubmission, source string) (dto.VideoSubmissionResponse, error) {
	submission.Status = models.VideoStatusPending
	if err := s.deps.Videos.Create(ctx, &submission); err != nil {
		return dto.VideoSubmissionResponse{}, err
	}

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionVideoSubmitted,
		EntityType: "video_submission",
		EntityID:   strconv.FormatUint(uint64(submission.ID), 10),
		Metadata: map[string]interface{}{
			"student_id": submission.StudentID,
			"source":     source,
		},
	})

	return dto.NewVideoSubmissionResponse(submission), nil
}

func (s *videoService) Get(ctx context.Context, actor Actor, id uint) (dto.VideoSubmissionResponse, error) {
	submission, err := s.submission(ctx, id)
	if err != nil {
		return dto.VideoSubmissionResponse{}, err
	}
	if !actor.CanActFor(submission.StudentID) {
		return dto.VideoSubmissionResponse{}, ErrForbidden
	}
	return dto.NewVideoSubmissionResponse(submission), nil
}

func (s *videoService) RecordAnalysis(ctx context.Context, actor Actor, id uint, req dto.VideoAnalysisRequest) (dto.VideoScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "video.record_analysis", trace.WithAttributes(
		attribute.Int64("video.submission_id", int64(id)),
	))
	defer span.End()

	if !actor.CanManageAssessments() {
		return s.failScore(span, "forbidden", ErrForbidden)
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return s.failScore(span, "validation failed", err)
	}

	submission, err := s.submission(ctx, id)
	if err != nil {
		return s.failScore(span, "lookup failed", err)
	}

	sub, err := scoring.NewVideoSubScores(*req.Content, *req.Communication, *req.Technical, *req.Structure, *req.Engagement)
	if err != nil {
		observability.VideoScored().WithLabelValues("invalid").Inc()
		return s.failScore(span, "validation failed", err)
	}

	response, err := s.commit(ctx, actor, submission, sub, req.Feedback, "manual")
	if err != nil {
		return s.failScore(span, "commit failed", err)
	}
	return response, nil
}

func (s *videoService) Analyze(ctx context.Context, actor Actor, id uint, req dto.VideoAnalyzeRequest) (dto.VideoScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "video.analyze", trace.WithAttributes(
		attribute.Int64("video.submission_id", int64(id)),
	))
	defer span.End()

	if !actor.CanManageAssessments() {
		return s.failScore(span, "forbidden", ErrForbidden)
	}
	if s.deps.Analyzer == nil {
		return s.failScore(span, "analyzer unavailable", ErrAnalyzerUnavailable)
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return s.failScore(span, "validation failed", err)
	}

	submission, err := s.submission(ctx, id)
	if err != nil {
		return s.failScore(span, "lookup failed", err)
	}

	analysis, err := s.deps.Analyzer.Analyze(ctx, ai.VideoAnalysisInput{
		SubmissionID: submission.ID,
		VideoURL:     submission.VideoURL,
		Topic:        submission.Topic,
		Transcript:   req.Transcript,
		Notes:        req.Notes,
	})
	if err != nil {
		return s.failScore(span, "analysis failed", s.analysisFailed(ctx, actor, submission, err))
	}

	sub, err := scoring.NewVideoSubScores(analysis.Content, analysis.Communication, analysis.Technical, analysis.Structure, analysis.Engagement)
	if err != nil {
		return s.failScore(span, "analysis out of range", s.analysisFailed(ctx, actor, submission, err))
	}

	response, err := s.commit(ctx, actor, submission, sub, analysis.Feedback, "analyzer")
	if err != nil {
		return s.failScore(span, "commit failed", err)
	}
	return response, nil
}

// analysisFailed marks the submission failed and returns the error reported
// to the caller.
func (s *videoService) analysisFailed(ctx context.Context, actor Actor, submission models.VideoSubmission, cause error) error {
	s.logger.Warn().Err(cause).Uint("submission_id", submission.ID).Msg("video analysis failed")
	if _, err := s.fail(ctx, actor, submission, cause.Error()); err != nil {
		return errors.Join(fmt.Errorf("%w: %v", ErrAnalysisFailed, cause), err)
	}
	return fmt.Errorf("%w: %v", ErrAnalysisFailed, cause)
}

func (s *videoService) MarkFailed(ctx context.Context, actor Actor, id uint, req dto.VideoFailedRequest) (dto.VideoSubmissionResponse, error) {
	if !actor.CanManageAssessments() {
		return dto.VideoSubmissionResponse{}, ErrForbidden
	}
	if err := s.deps.Validator.Struct(req); err != nil {
		return dto.VideoSubmissionResponse{}, err
	}

	submission, err := s.submission(ctx, id)
	if err != nil {
		return dto.VideoSubmissionResponse{}, err
	}
	return s.fail(ctx, actor, submission, req.Reason)
}

// fail records the failure and re-aggregates the student's result.
func (s *videoService) fail(ctx context.Context, actor Actor, submission models.VideoSubmission, reason string) (dto.VideoSubmissionResponse, error) {
	reason = strings.TrimSpace(s.sanitizer.Sanitize(reason))
	at := s.now()

	err := s.deps.Coordinator.WithStudent(submission.StudentID, func() error {
		_, err := s.deps.Ledger.FailVideo(ctx, submission.ID, reason, at, scoring.Aggregate)
		return err
	})
	if err != nil {
		noteConflict("video_failed", err)
		return dto.VideoSubmissionResponse{}, err
	}

	s.deps.Cache.Invalidate(ctx)
	observability.VideoScored().WithLabelValues("failed").Inc()

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionVideoFailed,
		EntityType: "video_submission",
		EntityID:   strconv.FormatUint(uint64(submission.ID), 10),
		Metadata: map[string]interface{}{
			"student_id": submission.StudentID,
			"reason":     reason,
		},
	})

	submission.Status = models.VideoStatusFailed
	submission.FailureReason = reason
	submission.AnalyzedAt = &at
	return dto.NewVideoSubmissionResponse(submission), nil
}

func (s *videoService) commit(ctx context.Context, actor Actor, submission models.VideoSubmission, sub scoring.VideoSubScores, feedback, source string) (dto.VideoScoreResponse, error) {
	scored, err := scoring.ScoreVideo(submission.ID, sub)
	if err != nil {
		observability.VideoScored().WithLabelValues("invalid").Inc()
		return dto.VideoScoreResponse{}, err
	}

	record := models.NewVideoScore(submission.StudentID, scored, s.now())
	record.Feedback = strings.TrimSpace(s.sanitizer.Sanitize(feedback))

	var final models.FinalResult
	err = s.deps.Coordinator.WithStudent(submission.StudentID, func() error {
		var err error
		final, err = s.deps.Ledger.CommitVideoScore(ctx, &record, scoring.Aggregate)
		return err
	})
	if err != nil {
		noteConflict("video_score", err)
		return dto.VideoScoreResponse{}, err
	}

	s.deps.Cache.Invalidate(ctx)
	observability.VideoScored().WithLabelValues("scored").Inc()

	recordActivity(ctx, s.deps.Activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     ActionVideoScored,
		EntityType: "video_submission",
		EntityID:   strconv.FormatUint(uint64(submission.ID), 10),
		Metadata: map[string]interface{}{
			"student_id": submission.StudentID,
			"composite":  record.Composite,
			"source":     source,
		},
	})

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("student_id", submission.StudentID).
		Float64("composite", record.Composite).
		Str("source", source).
		Msg("video scored")

	return dto.NewVideoScoreResponse(record, final), nil
}

func (s *videoService) submission(ctx context.Context, id uint) (models.VideoSubmission, error) {
	submission, err := s.deps.Videos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.VideoSubmission{}, ErrVideoNotFound
		}
		return models.VideoSubmission{}, err
	}
	return submission, nil
}

func (s *videoService) failSubmission(span trace.Span, status string, err error) (dto.VideoSubmissionResponse, error) {
	switch {
	case errors.Is(err, ErrUploadTooLarge):
		observability.VideoScored().WithLabelValues("rejected_size").Inc()
	case errors.Is(err, ErrUploadTypeNotAllowed):
		observability.VideoScored().WithLabelValues("rejected_type").Inc()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return dto.VideoSubmissionResponse{}, err
}

func (s *videoService) failScore(span trace.Span, status string, err error) (dto.VideoScoreResponse, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return dto.VideoScoreResponse{}, err
}

// DriveFileID extracts the file id from a shareable Google Drive link.
func DriveFileID(link string) (string, bool) {
	for _, pattern := range driveLinkPatterns {
		if match := pattern.FindStringSubmatch(link); len(match) == 2 {
			return match[1], true
		}
	}
	return "", false
}
