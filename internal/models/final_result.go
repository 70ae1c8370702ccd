package models

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// FinalResult is the single live outcome row per student. Version increments
// on every write and guards against concurrent writers.
type FinalResult struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	StudentID      uint       `gorm:"not null;uniqueIndex" json:"student_id"`
	QuizScore      *float64   `json:"quiz_score"`
	VideoScore     *float64   `json:"video_score"`
	FinalScore     *float64   `json:"final_score"`
	Status         string     `gorm:"size:16;not null;index" json:"status"`
	Rank           *int       `json:"rank"`
	SelectionRunID *string    `gorm:"size:36" json:"selection_run_id"`
	Version        uint       `gorm:"not null;default:0" json:"version"`
	AggregatedAt   *time.Time `json:"aggregated_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToScoring converts the record into the selection input.
func (r FinalResult) ToScoring() scoring.FinalResult {
	return scoring.FinalResult{
		StudentID:  r.StudentID,
		QuizScore:  r.QuizScore,
		VideoScore: r.VideoScore,
		FinalScore: r.FinalScore,
		Status:     scoring.SelectionStatus(r.Status),
		Rank:       r.Rank,
	}
}

// ApplyAggregate replaces the derived fields with a fresh aggregation. Rank
// and run linkage are cleared because the prior ranking no longer applies.
func (r *FinalResult) ApplyAggregate(result scoring.FinalResult, at time.Time) {
	r.StudentID = result.StudentID
	r.QuizScore = result.QuizScore
	r.VideoScore = result.VideoScore
	r.FinalScore = result.FinalScore
	r.Status = string(result.Status)
	r.Rank = nil
	r.SelectionRunID = nil
	r.AggregatedAt = &at
}
