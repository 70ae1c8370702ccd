package dto

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

// VideoSubmitRequest registers a hosted presentation video.
type VideoSubmitRequest struct {
	StudentID uint   `json:"student_id"`
	VideoURL  string `json:"video_url" validate:"required,url,max=1024"`
	Topic     string `json:"topic" validate:"max=255"`
}

// VideoAnalysisRequest records rubric sub-scores produced by an analysis.
// Range checks happen in the scorer so the offending criterion is reported.
type VideoAnalysisRequest struct {
	Content       *float64 `json:"content" validate:"required"`
	Communication *float64 `json:"communication" validate:"required"`
	Technical     *float64 `json:"technical" validate:"required"`
	Structure     *float64 `json:"structure" validate:"required"`
	Engagement    *float64 `json:"engagement" validate:"required"`
	Feedback      string   `json:"feedback" validate:"max=4000"`
}

// VideoAnalyzeRequest asks the configured analyzer to rate the video.
type VideoAnalyzeRequest struct {
	Transcript string `json:"transcript" validate:"max=20000"`
	Notes      string `json:"notes" validate:"max=2000"`
}

// VideoFailedRequest marks an analysis as failed.
type VideoFailedRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// VideoSubmissionResponse serializes a submission.
type VideoSubmissionResponse struct {
	ID            uint       `json:"id"`
	StudentID     uint       `json:"student_id"`
	VideoURL      string     `json:"video_url"`
	ExternalID    string     `json:"external_id"`
	Topic         string     `json:"topic"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	AnalyzedAt    *time.Time `json:"analyzed_at"`
}

// NewVideoSubmissionResponse converts a model into a DTO.
func NewVideoSubmissionResponse(submission models.VideoSubmission) VideoSubmissionResponse {
	return VideoSubmissionResponse{
		ID:            submission.ID,
		StudentID:     submission.StudentID,
		VideoURL:      submission.VideoURL,
		ExternalID:    submission.ExternalID,
		Topic:         submission.Topic,
		Status:        submission.Status,
		FailureReason: submission.FailureReason,
		SubmittedAt:   submission.SubmittedAt,
		AnalyzedAt:    submission.AnalyzedAt,
	}
}

// VideoScoreResponse serializes a rubric outcome and the refreshed result.
type VideoScoreResponse struct {
	SubmissionID  uint                `json:"submission_id"`
	StudentID     uint                `json:"student_id"`
	Content       float64             `json:"content"`
	Communication float64             `json:"communication"`
	Technical     float64             `json:"technical"`
	Structure     float64             `json:"structure"`
	Engagement    float64             `json:"engagement"`
	Composite     float64             `json:"composite"`
	Feedback      string              `json:"feedback,omitempty"`
	ScoredAt      time.Time           `json:"scored_at"`
	Result        FinalResultResponse `json:"result"`
}

// NewVideoScoreResponse converts a stored score and result into a DTO.
func NewVideoScoreResponse(score models.VideoScore, result models.FinalResult) VideoScoreResponse {
	return VideoScoreResponse{
		SubmissionID:  score.SubmissionID,
		StudentID:     score.StudentID,
		Content:       score.Content,
		Communication: score.Communication,
		Technical:     score.Technical,
		Structure:     score.Structure,
		Engagement:    score.Engagement,
		Composite:     score.Composite,
		Feedback:      score.Feedback,
		ScoredAt:      score.ScoredAt,
		Result:        NewFinalResultResponse(result),
	}
}
