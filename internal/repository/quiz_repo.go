package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// QuizRepository stores quiz definitions and serves their answer keys.
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	GetKey(ctx context.Context, quizID uint) (scoring.AnswerKey, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository constructs the quiz repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (r *quizRepository) GetKey(ctx context.Context, quizID uint) (scoring.AnswerKey, error) {
	quiz, err := r.GetByID(ctx, quizID)
	if err != nil {
		return scoring.AnswerKey{}, err
	}
	return quiz.AnswerKey()
}
