package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// Quiz is a published quiz definition together with its answer key.
type Quiz struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	Topic      string         `gorm:"size:255" json:"topic"`
	Difficulty string         `gorm:"size:32" json:"difficulty"`
	Key        datatypes.JSON `gorm:"type:json;not null" json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// SetKey stores the answer key entries.
func (q *Quiz) SetKey(entries []scoring.KeyEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode answer key: %w", err)
	}
	q.Key = datatypes.JSON(data)
	return nil
}

// AnswerKey decodes and validates the stored key.
func (q Quiz) AnswerKey() (scoring.AnswerKey, error) {
	var entries []scoring.KeyEntry
	if len(q.Key) > 0 {
		if err := json.Unmarshal(q.Key, &entries); err != nil {
			return scoring.AnswerKey{}, fmt.Errorf("decode answer key for quiz %d: %w", q.ID, err)
		}
	}
	return scoring.NewAnswerKey(q.ID, entries)
}
