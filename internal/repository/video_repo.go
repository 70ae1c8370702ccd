package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// VideoSubmissionRepository persists video submissions and their analysis state.
type VideoSubmissionRepository interface {
	Create(ctx context.Context, submission *models.VideoSubmission) error
	GetByID(ctx context.Context, id uint) (models.VideoSubmission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.VideoSubmission, error)
}

type videoSubmissionRepository struct {
	db *gorm.DB
}

// NewVideoSubmissionRepository constructs the video submission repository.
func NewVideoSubmissionRepository(db *gorm.DB) VideoSubmissionRepository {
	return &videoSubmissionRepository{db: db}
}

func (r *videoSubmissionRepository) Create(ctx context.Context, submission *models.VideoSubmission) error {
	if submission.Status == "" {
		submission.Status = models.VideoStatusPending
	}
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *videoSubmissionRepository) GetByID(ctx context.Context, id uint) (models.VideoSubmission, error) {
	var submission models.VideoSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.VideoSubmission{}, err
	}
	return submission, nil
}

func (r *videoSubmissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.VideoSubmission, error) {
	var submissions []models.VideoSubmission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
