package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// ErrConcurrencyConflict indicates another writer changed a result row first.
var ErrConcurrencyConflict = errors.New("result was modified concurrently")

// AggregateFunc turns a student's current instrument scores into a final result.
type AggregateFunc func(studentID uint, quizPercentage, videoComposite *float64) (scoring.FinalResult, error)

// LedgerRepository is the storage boundary for derived scores and final
// results. Every Commit/Fail/Recompute call writes its source rows and the
// re-aggregated final result in one transaction.
type LedgerRepository interface {
	Get(ctx context.Context, studentID uint) (*models.FinalResult, error)
	Upsert(ctx context.Context, result *models.FinalResult) error
	ListAll(ctx context.Context) ([]models.FinalResult, error)
	ListByRun(ctx context.Context, runID string) ([]models.FinalResult, error)

	GetQuizScore(ctx context.Context, attemptID uint) (*models.QuizScore, error)
	GetVideoScore(ctx context.Context, submissionID uint) (*models.VideoScore, error)

	CommitAttempt(ctx context.Context, attempt *models.QuizAttempt, policy AttemptPolicy, score *models.QuizScore, aggregate AggregateFunc) (models.FinalResult, error)
	CommitQuizScore(ctx context.Context, score *models.QuizScore, aggregate AggregateFunc) (models.FinalResult, error)
	CommitVideoScore(ctx context.Context, score *models.VideoScore, aggregate AggregateFunc) (models.FinalResult, error)
	FailVideo(ctx context.Context, submissionID uint, reason string, at time.Time, aggregate AggregateFunc) (models.FinalResult, error)
	Recompute(ctx context.Context, studentID uint, aggregate AggregateFunc) (models.FinalResult, error)

	ApplySelection(ctx context.Context, run *models.SelectionRun, rows []models.FinalResult) error
}

// LedgerOptions tunes conflict handling.
type LedgerOptions struct {
	// LastWriteWins disables the version check on result rows.
	LastWriteWins bool
}

type ledgerRepository struct {
	db   *gorm.DB
	opts LedgerOptions
	now  func() time.Time
}

// NewLedgerRepository constructs the ledger on top of gorm.
func NewLedgerRepository(db *gorm.DB, opts LedgerOptions) LedgerRepository {
	return &ledgerRepository{db: db, opts: opts, now: time.Now}
}

func (r *ledgerRepository) Get(ctx context.Context, studentID uint) (*models.FinalResult, error) {
	var result models.FinalResult
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ledgerRepository) ListAll(ctx context.Context) ([]models.FinalResult, error) {
	var results []models.FinalResult
	if err := r.db.WithContext(ctx).Order("student_id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ledgerRepository) ListByRun(ctx context.Context, runID string) ([]models.FinalResult, error) {
	var results []models.FinalResult
	if err := r.db.WithContext(ctx).
		Where("selection_run_id = ?", runID).
		Order("rank ASC").
		Order("student_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// Upsert writes the row for result.StudentID. A zero ID means the caller
// believes no row exists yet; a non-zero ID must carry the version it read.
func (r *ledgerRepository) Upsert(ctx context.Context, result *models.FinalResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result.ID == 0 {
			var existing models.FinalResult
			err := tx.Where("student_id = ?", result.StudentID).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return r.create(tx, result)
			case err != nil:
				return err
			case !r.opts.LastWriteWins:
				return ErrConcurrencyConflict
			}
			result.ID = existing.ID
			result.Version = existing.Version
		}
		return r.update(tx, result)
	})
}

func (r *ledgerRepository) GetQuizScore(ctx context.Context, attemptID uint) (*models.QuizScore, error) {
	var score models.QuizScore
	err := r.db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *ledgerRepository) GetVideoScore(ctx context.Context, submissionID uint) (*models.VideoScore, error) {
	var score models.VideoScore
	err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// CommitAttempt inserts attempt under policy, stores score against it and
// re-aggregates. Nothing is written unless every step succeeds, so a failed
// commit leaves any previous attempt live.
func (r *ledgerRepository) CommitAttempt(ctx context.Context, attempt *models.QuizAttempt, policy AttemptPolicy, score *models.QuizScore, aggregate AggregateFunc) (models.FinalResult, error) {
	var final models.FinalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertAttempt(tx, attempt, policy); err != nil {
			return err
		}
		score.AttemptID = attempt.ID
		if err := saveQuizScore(tx, score); err != nil {
			return err
		}

		var aggErr error
		final, aggErr = r.reaggregate(tx, score.StudentID, aggregate)
		return aggErr
	})
	if err != nil {
		attempt.ID = 0
		score.ID, score.AttemptID = 0, 0
	}
	return final, err
}

func (r *ledgerRepository) CommitQuizScore(ctx context.Context, score *models.QuizScore, aggregate AggregateFunc) (models.FinalResult, error) {
	var final models.FinalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveQuizScore(tx, score); err != nil {
			return err
		}

		var aggErr error
		final, aggErr = r.reaggregate(tx, score.StudentID, aggregate)
		return aggErr
	})
	return final, err
}

func saveQuizScore(tx *gorm.DB, score *models.QuizScore) error {
	var existing models.QuizScore
	err := tx.Where("attempt_id = ?", score.AttemptID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return translateWriteError(tx.Create(score).Error)
	case err != nil:
		return err
	}
	score.ID = existing.ID
	return tx.Save(score).Error
}

func (r *ledgerRepository) CommitVideoScore(ctx context.Context, score *models.VideoScore, aggregate AggregateFunc) (models.FinalResult, error) {
	var final models.FinalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.VideoScore
		err := tx.Where("submission_id = ?", score.SubmissionID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(score).Error; err != nil {
				return translateWriteError(err)
			}
		case err != nil:
			return err
		default:
			score.ID = existing.ID
			if err := tx.Save(score).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.VideoSubmission{}).
			Where("id = ?", score.SubmissionID).
			Updates(map[string]interface{}{
				"status":         models.VideoStatusAnalyzed,
				"failure_reason": "",
				"analyzed_at":    score.ScoredAt,
			}).Error; err != nil {
			return err
		}

		var aggErr error
		final, aggErr = r.reaggregate(tx, score.StudentID, aggregate)
		return aggErr
	})
	return final, err
}

// FailVideo marks the submission failed and re-aggregates its owner's
// result in one transaction.
func (r *ledgerRepository) FailVideo(ctx context.Context, submissionID uint, reason string, at time.Time, aggregate AggregateFunc) (models.FinalResult, error) {
	var final models.FinalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var submission models.VideoSubmission
		if err := tx.First(&submission, submissionID).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.VideoSubmission{}).
			Where("id = ?", submissionID).
			Updates(map[string]interface{}{
				"status":         models.VideoStatusFailed,
				"failure_reason": reason,
				"analyzed_at":    at,
			}).Error; err != nil {
			return err
		}

		var aggErr error
		final, aggErr = r.reaggregate(tx, submission.StudentID, aggregate)
		return aggErr
	})
	return final, err
}

func (r *ledgerRepository) Recompute(ctx context.Context, studentID uint, aggregate AggregateFunc) (models.FinalResult, error) {
	var final models.FinalResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var aggErr error
		final, aggErr = r.reaggregate(tx, studentID, aggregate)
		return aggErr
	})
	return final, err
}

// ApplySelection stores the audit record and every rewritten row atomically.
// A version mismatch on any row aborts the whole run and leaves rows as given;
// on success rows hold the stored values.
func (r *ledgerRepository) ApplySelection(ctx context.Context, run *models.SelectionRun, rows []models.FinalResult) error {
	updated := make([]models.FinalResult, len(rows))
	copy(updated, rows)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		for i := range updated {
			runID := run.ID
			updated[i].SelectionRunID = &runID
			if err := r.update(tx, &updated[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	copy(rows, updated)
	return nil
}

func (r *ledgerRepository) reaggregate(tx *gorm.DB, studentID uint, aggregate AggregateFunc) (models.FinalResult, error) {
	quiz, err := latestQuizPercentage(tx, studentID)
	if err != nil {
		return models.FinalResult{}, err
	}
	video, err := latestVideoComposite(tx, studentID)
	if err != nil {
		return models.FinalResult{}, err
	}

	result, err := aggregate(studentID, quiz, video)
	if err != nil {
		return models.FinalResult{}, err
	}

	var row models.FinalResult
	err = tx.Where("student_id = ?", studentID).First(&row).Error
	found := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FinalResult{}, err
	}

	row.ApplyAggregate(result, r.now())
	if !found {
		if err := r.create(tx, &row); err != nil {
			return models.FinalResult{}, err
		}
		return row, nil
	}

	if err := r.update(tx, &row); err != nil {
		return models.FinalResult{}, err
	}
	return row, nil
}

func (r *ledgerRepository) create(tx *gorm.DB, row *models.FinalResult) error {
	row.Version = 1
	if err := tx.Create(row).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (r *ledgerRepository) update(tx *gorm.DB, row *models.FinalResult) error {
	query := tx.Model(&models.FinalResult{}).Where("id = ?", row.ID)
	if !r.opts.LastWriteWins {
		query = query.Where("version = ?", row.Version)
	}

	result := query.Updates(map[string]interface{}{
		"student_id":       row.StudentID,
		"quiz_score":       nullableFloat(row.QuizScore),
		"video_score":      nullableFloat(row.VideoScore),
		"final_score":      nullableFloat(row.FinalScore),
		"status":           row.Status,
		"rank":             nullableInt(row.Rank),
		"selection_run_id": nullableString(row.SelectionRunID),
		"aggregated_at":    nullableTime(row.AggregatedAt),
		"version":          gorm.Expr("version + 1"),
		"updated_at":       r.now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrencyConflict
	}

	return tx.First(row, row.ID).Error
}

// latestQuizPercentage returns the score of the student's most recently
// submitted live attempt, across all quizzes.
func latestQuizPercentage(tx *gorm.DB, studentID uint) (*float64, error) {
	var score models.QuizScore
	err := tx.Joins("JOIN quiz_attempts ON quiz_attempts.id = quiz_scores.attempt_id").
		Where("quiz_scores.student_id = ?", studentID).
		Where("quiz_attempts.superseded = ?", false).
		Order("quiz_attempts.submitted_at DESC").
		Order("quiz_scores.attempt_id DESC").
		First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score.Percentage, nil
}

func latestVideoComposite(tx *gorm.DB, studentID uint) (*float64, error) {
	var score models.VideoScore
	err := tx.Joins("JOIN video_submissions ON video_submissions.id = video_scores.submission_id").
		Where("video_scores.student_id = ?", studentID).
		Where("video_submissions.status = ?", models.VideoStatusAnalyzed).
		Order("video_submissions.submitted_at DESC").
		Order("video_scores.submission_id DESC").
		First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &score.Composite, nil
}

func translateWriteError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConcurrencyConflict
	}
	return err
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
