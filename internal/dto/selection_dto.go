package dto

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// SelectionRunRequest triggers a selection run.
type SelectionRunRequest struct {
	Mode  string   `json:"mode" validate:"required,oneof=count percentage threshold"`
	Value *float64 `json:"value" validate:"required"`
}

// SelectionReleaseRequest publishes the outcome of a run. An empty RunID
// releases the latest run.
type SelectionReleaseRequest struct {
	RunID string `json:"run_id" validate:"omitempty,uuid"`
}

// RankedResultResponse is one ranked candidate of a run.
type RankedResultResponse struct {
	StudentID  uint    `json:"student_id"`
	FinalScore float64 `json:"final_score"`
	Rank       int     `json:"rank"`
	Status     string  `json:"status"`
}

// SelectionRunResponse serializes a run and its ranking.
type SelectionRunResponse struct {
	ID             string                 `json:"id"`
	Mode           string                 `json:"mode"`
	Value          float64                `json:"value"`
	CandidateCount int                    `json:"candidate_count"`
	Cutoff         int                    `json:"cutoff"`
	SelectedIDs    []uint                 `json:"selected_ids"`
	RankingDigest  string                 `json:"ranking_digest"`
	Ranking        []RankedResultResponse `json:"ranking"`
	TriggeredBy    uint                   `json:"triggered_by"`
	RunAt          time.Time              `json:"run_at"`
	Released       bool                   `json:"released"`
	ReleasedAt     *time.Time             `json:"released_at"`
}

// NewSelectionRunResponse combines a run record with the rows it ranked,
// ordered by rank.
func NewSelectionRunResponse(run models.SelectionRun, ranked []models.FinalResult) SelectionRunResponse {
	ranking := make([]RankedResultResponse, 0, len(ranked))
	for _, row := range ranked {
		if row.Rank == nil || row.FinalScore == nil {
			continue
		}
		ranking = append(ranking, RankedResultResponse{
			StudentID:  row.StudentID,
			FinalScore: *row.FinalScore,
			Rank:       *row.Rank,
			Status:     row.Status,
		})
	}

	return SelectionRunResponse{
		ID:             run.ID,
		Mode:           run.Mode,
		Value:          run.Value,
		CandidateCount: run.CandidateCount,
		Cutoff:         run.Cutoff,
		SelectedIDs:    run.SelectedStudentIDs(),
		RankingDigest:  run.RankingDigest,
		Ranking:        ranking,
		TriggeredBy:    run.TriggeredBy,
		RunAt:          run.RunAt,
		Released:       run.Released(),
		ReleasedAt:     run.ReleasedAt,
	}
}
