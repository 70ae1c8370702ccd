package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// QuizAttempt is an immutable record of submitted answers. A superseded
// attempt stays stored for audit but no longer feeds aggregation.
type QuizAttempt struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	StudentID   uint           `gorm:"not null;index:idx_attempt_student_quiz" json:"student_id"`
	QuizID      uint           `gorm:"not null;index:idx_attempt_student_quiz" json:"quiz_id"`
	Answers     datatypes.JSON `gorm:"type:json;not null" json:"-"`
	Superseded  bool           `gorm:"not null;default:false" json:"superseded"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SetAnswers serializes the ordered answers.
func (a *QuizAttempt) SetAnswers(answers []scoring.Answer) {
	data, err := json.Marshal(answers)
	if err != nil {
		a.Answers = datatypes.JSON([]byte("[]"))
		return
	}
	a.Answers = datatypes.JSON(data)
}

// ToScoring converts the record into the grading input.
func (a QuizAttempt) ToScoring() (scoring.QuizAttempt, error) {
	var answers []scoring.Answer
	if len(a.Answers) > 0 {
		if err := json.Unmarshal(a.Answers, &answers); err != nil {
			return scoring.QuizAttempt{}, err
		}
	}
	return scoring.QuizAttempt{
		ID:          a.ID,
		StudentID:   a.StudentID,
		QuizID:      a.QuizID,
		Answers:     answers,
		SubmittedAt: a.SubmittedAt,
	}, nil
}
