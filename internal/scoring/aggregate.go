package scoring

import "math"

// Final score weights in whole percent.
const (
	QuizWeightPercent  = 60
	VideoWeightPercent = 40
)

// SelectionStatus is the lifecycle state of a FinalResult.
type SelectionStatus string

const (
	StatusNotEligible SelectionStatus = "not_eligible"
	StatusEligible    SelectionStatus = "eligible"
	StatusSelected    SelectionStatus = "selected"
	StatusRejected    SelectionStatus = "rejected"
)

// Valid reports whether the status is known.
func (s SelectionStatus) Valid() bool {
	switch s {
	case StatusNotEligible, StatusEligible, StatusSelected, StatusRejected:
		return true
	default:
		return false
	}
}

// FinalResult is the single live outcome row of a student.
type FinalResult struct {
	StudentID  uint            `json:"student_id"`
	QuizScore  *float64        `json:"quiz_score"`
	VideoScore *float64        `json:"video_score"`
	FinalScore *float64        `json:"final_score"`
	Status     SelectionStatus `json:"status"`
	Rank       *int            `json:"rank,omitempty"`
}

// Missing lists the instruments that still lack a score.
func (r FinalResult) Missing() []string {
	missing := make([]string, 0, 2)
	if r.QuizScore == nil {
		missing = append(missing, "quiz")
	}
	if r.VideoScore == nil {
		missing = append(missing, "video")
	}
	return missing
}

// Ranked reports whether the row takes part in selection.
func (r FinalResult) Ranked() bool {
	return r.Status != StatusNotEligible && r.FinalScore != nil
}

// Aggregate combines a quiz percentage and a video composite into a fresh
// FinalResult. A student missing either instrument is not eligible and gets
// no final score. The result never carries state from a previous aggregation.
func Aggregate(studentID uint, quizPercentage, videoComposite *float64) (FinalResult, error) {
	if err := checkPercent("quiz_score", quizPercentage); err != nil {
		return FinalResult{}, err
	}
	if err := checkPercent("video_score", videoComposite); err != nil {
		return FinalResult{}, err
	}

	result := FinalResult{
		StudentID:  studentID,
		QuizScore:  copyFloat(quizPercentage),
		VideoScore: copyFloat(videoComposite),
		Status:     StatusNotEligible,
	}

	if quizPercentage == nil || videoComposite == nil {
		return result, nil
	}

	final := Round2((*quizPercentage*QuizWeightPercent + *videoComposite*VideoWeightPercent) / 100)
	result.FinalScore = &final
	result.Status = StatusEligible
	return result, nil
}

func checkPercent(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 || *v > 100 {
		return invalid(ErrOutOfRangeScore, field, "%v must be within [0,100]", *v)
	}
	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
