package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// ErrAlreadyReleased indicates the run's results were already published.
var ErrAlreadyReleased = errors.New("selection run already released")

// SelectionRunRepository reads selection audit records. Runs are written by
// LedgerRepository.ApplySelection together with the rows they rank.
type SelectionRunRepository interface {
	Latest(ctx context.Context) (*models.SelectionRun, error)
	GetByID(ctx context.Context, id string) (models.SelectionRun, error)
	MarkReleased(ctx context.Context, id string, at time.Time) error
}

type selectionRunRepository struct {
	db *gorm.DB
}

// NewSelectionRunRepository constructs the selection run repository.
func NewSelectionRunRepository(db *gorm.DB) SelectionRunRepository {
	return &selectionRunRepository{db: db}
}

func (r *selectionRunRepository) Latest(ctx context.Context) (*models.SelectionRun, error) {
	var run models.SelectionRun
	err := r.db.WithContext(ctx).Order("run_at DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *selectionRunRepository) GetByID(ctx context.Context, id string) (models.SelectionRun, error) {
	var run models.SelectionRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return models.SelectionRun{}, err
	}
	return run, nil
}

func (r *selectionRunRepository) MarkReleased(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.SelectionRun{}).
		Where("id = ?", id).
		Where("released_at IS NULL").
		Update("released_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyReleased
	}
	return nil
}
