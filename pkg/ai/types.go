package ai

import "context"

// VideoAnalysisInput describes a presentation video to be rated against the rubric.
type VideoAnalysisInput struct {
	SubmissionID uint
	VideoURL     string
	Topic        string
	Transcript   string
	Notes        string
}

// VideoAnalysis holds the five rubric sub-scores returned by a model, each
// expected on a 0-100 scale. Values are passed through unclamped so the
// caller can reject out-of-range output.
type VideoAnalysis struct {
	Content       float64                `json:"content"`
	Communication float64                `json:"communication"`
	Technical     float64                `json:"technical"`
	Structure     float64                `json:"structure"`
	Engagement    float64                `json:"engagement"`
	Feedback      string                 `json:"feedback"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// VideoAnalyzer rates a video submission.
type VideoAnalyzer interface {
	Analyze(ctx context.Context, input VideoAnalysisInput) (VideoAnalysis, error)
}
