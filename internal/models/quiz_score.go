package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// QuizScore is the persisted grade of an attempt, keyed by attempt id and
// overwritten as a whole on re-grade.
type QuizScore struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AttemptID     uint           `gorm:"not null;uniqueIndex" json:"attempt_id"`
	StudentID     uint           `gorm:"not null;index" json:"student_id"`
	QuizID        uint           `gorm:"not null" json:"quiz_id"`
	Total         float64        `gorm:"not null" json:"total"`
	TotalPossible float64        `gorm:"not null" json:"total_possible"`
	Percentage    float64        `gorm:"not null" json:"percentage"`
	Grade         string         `gorm:"size:2" json:"grade"`
	Feedback      string         `gorm:"type:text" json:"feedback"`
	Questions     datatypes.JSON `gorm:"type:json" json:"-"`
	GradedAt      time.Time      `gorm:"not null" json:"graded_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewQuizScore converts a graded value into its storage record.
func NewQuizScore(score scoring.QuizScore, gradedAt time.Time) QuizScore {
	questions, err := json.Marshal(score.Questions)
	if err != nil {
		questions = []byte("[]")
	}
	return QuizScore{
		AttemptID:     score.AttemptID,
		StudentID:     score.StudentID,
		QuizID:        score.QuizID,
		Total:         score.Total,
		TotalPossible: score.TotalPossible,
		Percentage:    score.Percentage,
		Grade:         score.Grade,
		Feedback:      score.Feedback,
		Questions:     datatypes.JSON(questions),
		GradedAt:      gradedAt,
	}
}

// QuestionResults decodes the per-question breakdown.
func (s QuizScore) QuestionResults() []scoring.QuestionResult {
	if len(s.Questions) == 0 {
		return nil
	}
	var results []scoring.QuestionResult
	if err := json.Unmarshal(s.Questions, &results); err != nil {
		return nil
	}
	return results
}
