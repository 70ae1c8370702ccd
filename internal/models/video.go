package models

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// Video analysis states.
const (
	VideoStatusPending  = "pending"
	VideoStatusAnalyzed = "analyzed"
	VideoStatusFailed   = "failed"
)

// VideoSubmission references a student's presentation video hosted elsewhere.
type VideoSubmission struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	StudentID     uint       `gorm:"not null;index" json:"student_id"`
	VideoURL      string     `gorm:"size:1024;not null" json:"video_url"`
	ExternalID    string     `gorm:"size:255" json:"external_id"`
	Topic         string     `gorm:"size:255" json:"topic"`
	Status        string     `gorm:"size:16;not null" json:"status"`
	FailureReason string     `gorm:"type:text" json:"failure_reason"`
	SubmittedAt   time.Time  `gorm:"not null" json:"submitted_at"`
	AnalyzedAt    *time.Time `json:"analyzed_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// VideoScore is the persisted rubric outcome keyed by submission id.
type VideoScore struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  uint      `gorm:"not null;uniqueIndex" json:"submission_id"`
	StudentID     uint      `gorm:"not null;index" json:"student_id"`
	Content       float64   `gorm:"not null" json:"content"`
	Communication float64   `gorm:"not null" json:"communication"`
	Technical     float64   `gorm:"not null" json:"technical"`
	Structure     float64   `gorm:"not null" json:"structure"`
	Engagement    float64   `gorm:"not null" json:"engagement"`
	Composite     float64   `gorm:"not null" json:"composite"`
	Feedback      string    `gorm:"type:text" json:"feedback"`
	ScoredAt      time.Time `gorm:"not null" json:"scored_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewVideoScore converts a computed score into its storage record.
func NewVideoScore(studentID uint, score scoring.VideoScore, scoredAt time.Time) VideoScore {
	return VideoScore{
		SubmissionID:  score.SubmissionID,
		StudentID:     studentID,
		Content:       score.SubScores.Content,
		Communication: score.SubScores.Communication,
		Technical:     score.SubScores.Technical,
		Structure:     score.SubScores.Structure,
		Engagement:    score.SubScores.Engagement,
		Composite:     score.Composite,
		ScoredAt:      scoredAt,
	}
}

// SubScores returns the rubric breakdown.
func (v VideoScore) SubScores() scoring.VideoSubScores {
	return scoring.VideoSubScores{
		Content:       v.Content,
		Communication: v.Communication,
		Technical:     v.Technical,
		Structure:     v.Structure,
		Engagement:    v.Engagement,
	}
}
