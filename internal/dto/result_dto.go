package dto

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// FinalResultResponse serializes a student's live outcome.
type FinalResultResponse struct {
	StudentID      uint       `json:"student_id"`
	QuizScore      *float64   `json:"quiz_score"`
	VideoScore     *float64   `json:"video_score"`
	FinalScore     *float64   `json:"final_score"`
	Status         string     `json:"status"`
	Rank           *int       `json:"rank"`
	Missing        []string   `json:"missing"`
	SelectionRunID *string    `json:"selection_run_id"`
	Version        uint       `json:"version"`
	AggregatedAt   *time.Time `json:"aggregated_at"`
}

// NewFinalResultResponse converts a ledger row into a DTO.
func NewFinalResultResponse(result models.FinalResult) FinalResultResponse {
	missing := result.ToScoring().Missing()
	if missing == nil {
		missing = []string{}
	}
	return FinalResultResponse{
		StudentID:      result.StudentID,
		QuizScore:      result.QuizScore,
		VideoScore:     result.VideoScore,
		FinalScore:     result.FinalScore,
		Status:         result.Status,
		Rank:           result.Rank,
		Missing:        missing,
		SelectionRunID: result.SelectionRunID,
		Version:        result.Version,
		AggregatedAt:   result.AggregatedAt,
	}
}

// ResultListRequest filters the result listing.
type ResultListRequest struct {
	Status string `validate:"omitempty,oneof=not_eligible eligible selected rejected"`
}

// ResultListResponse wraps every matching result.
type ResultListResponse struct {
	Items  []FinalResultResponse `json:"items"`
	Counts map[string]int        `json:"counts"`
}
