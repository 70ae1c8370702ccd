package scoring

import "math"

// Criterion names one dimension of the video rubric.
type Criterion string

const (
	CriterionContent       Criterion = "content"
	CriterionCommunication Criterion = "communication"
	CriterionTechnical     Criterion = "technical"
	CriterionStructure     Criterion = "structure"
	CriterionEngagement    Criterion = "engagement"
)

// RubricWeight is a criterion weight in whole percent. Integer percents keep
// the weights summing to exactly 100.
type RubricWeight struct {
	Criterion Criterion
	Percent   int
}

// VideoRubric lists the fixed criterion weights in evaluation order.
var VideoRubric = []RubricWeight{
	{Criterion: CriterionContent, Percent: 30},
	{Criterion: CriterionCommunication, Percent: 25},
	{Criterion: CriterionTechnical, Percent: 20},
	{Criterion: CriterionStructure, Percent: 15},
	{Criterion: CriterionEngagement, Percent: 10},
}

// VideoSubScores are the five rubric scores produced by content analysis,
// each on a 0-100 scale.
type VideoSubScores struct {
	Content       float64 `json:"content"`
	Communication float64 `json:"communication"`
	Technical     float64 `json:"technical"`
	Structure     float64 `json:"structure"`
	Engagement    float64 `json:"engagement"`
}

// NewVideoSubScores builds a validated set of sub-scores.
func NewVideoSubScores(content, communication, technical, structure, engagement float64) (VideoSubScores, error) {
	sub := VideoSubScores{
		Content:       content,
		Communication: communication,
		Technical:     technical,
		Structure:     structure,
		Engagement:    engagement,
	}
	if err := sub.Validate(); err != nil {
		return VideoSubScores{}, err
	}
	return sub, nil
}

// Get returns the sub-score for a criterion.
func (s VideoSubScores) Get(c Criterion) float64 {
	switch c {
	case CriterionContent:
		return s.Content
	case CriterionCommunication:
		return s.Communication
	case CriterionTechnical:
		return s.Technical
	case CriterionStructure:
		return s.Structure
	case CriterionEngagement:
		return s.Engagement
	default:
		return 0
	}
}

// Validate ensures every sub-score is a finite value in [0,100].
func (s VideoSubScores) Validate() error {
	for _, w := range VideoRubric {
		v := s.Get(w.Criterion)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 100 {
			return invalid(ErrOutOfRangeScore, string(w.Criterion), "sub-score %v must be within [0,100]", v)
		}
	}
	return nil
}

// VideoScore is the weighted rubric outcome for a submission.
type VideoScore struct {
	SubmissionID uint           `json:"submission_id"`
	SubScores    VideoSubScores `json:"sub_scores"`
	Composite    float64        `json:"composite"`
}

// ScoreVideo validates the sub-scores and computes the weighted composite.
func ScoreVideo(submissionID uint, sub VideoSubScores) (VideoScore, error) {
	if err := sub.Validate(); err != nil {
		return VideoScore{}, err
	}

	var weighted float64
	for _, w := range VideoRubric {
		weighted += sub.Get(w.Criterion) * float64(w.Percent)
	}

	return VideoScore{
		SubmissionID: submissionID,
		SubScores:    sub,
		Composite:    Round2(weighted / 100),
	}, nil
}
