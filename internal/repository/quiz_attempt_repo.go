package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// ErrDuplicateAttempt indicates a live attempt already exists under the reject policy.
var ErrDuplicateAttempt = errors.New("quiz already attempted")

// AttemptPolicy decides what happens when a student re-submits a quiz.
type AttemptPolicy string

const (
	// AttemptPolicyReject refuses a second attempt for the same quiz.
	AttemptPolicyReject AttemptPolicy = "reject"
	// AttemptPolicySupersede keeps the old attempt for audit and grades the new one.
	AttemptPolicySupersede AttemptPolicy = "supersede"
)

// ParseAttemptPolicy validates a configured policy name.
func ParseAttemptPolicy(value string) (AttemptPolicy, error) {
	switch AttemptPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case AttemptPolicyReject:
		return AttemptPolicyReject, nil
	case AttemptPolicySupersede:
		return AttemptPolicySupersede, nil
	default:
		return "", fmt.Errorf("unknown attempt policy %q (want reject or supersede)", value)
	}
}

// QuizAttemptRepository persists quiz attempts under a re-submission policy.
type QuizAttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id uint) (models.QuizAttempt, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.QuizAttempt, error)
	Policy() AttemptPolicy
}

type quizAttemptRepository struct {
	db     *gorm.DB
	policy AttemptPolicy
}

// NewQuizAttemptRepository constructs the attempt repository.
func NewQuizAttemptRepository(db *gorm.DB, policy AttemptPolicy) QuizAttemptRepository {
	if policy == "" {
		policy = AttemptPolicyReject
	}
	return &quizAttemptRepository{db: db, policy: policy}
}

func (r *quizAttemptRepository) Policy() AttemptPolicy {
	return r.policy
}

func (r *quizAttemptRepository) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertAttempt(tx, attempt, r.policy)
	})
}

// insertAttempt applies policy to the live attempts for the same student and
// quiz, then inserts attempt as the live one. It must run inside tx.
func insertAttempt(tx *gorm.DB, attempt *models.QuizAttempt, policy AttemptPolicy) error {
	live := tx.Model(&models.QuizAttempt{}).
		Where("student_id = ?", attempt.StudentID).
		Where("quiz_id = ?", attempt.QuizID).
		Where("superseded = ?", false)

	var count int64
	if err := live.Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		if policy != AttemptPolicySupersede {
			return ErrDuplicateAttempt
		}
		if err := tx.Model(&models.QuizAttempt{}).
			Where("student_id = ?", attempt.StudentID).
			Where("quiz_id = ?", attempt.QuizID).
			Where("superseded = ?", false).
			Update("superseded", true).Error; err != nil {
			return err
		}
	}

	attempt.Superseded = false
	return tx.Create(attempt).Error
}

func (r *quizAttemptRepository) GetByID(ctx context.Context, id uint) (models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.QuizAttempt{}, err
	}
	return attempt, nil
}

func (r *quizAttemptRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("submitted_at DESC").
		Order("id DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
