// Package scoring holds the deterministic assessment core: quiz grading,
// video rubric scoring, result aggregation and cohort selection. Nothing in
// this package performs I/O; callers persist the values it returns.
package scoring

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// QuestionType enumerates the supported quiz question formats.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionTrueFalse   QuestionType = "true_false"
	QuestionShortAnswer QuestionType = "short_answer"
)

// Valid reports whether the question type is known to the grader.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionShortAnswer:
		return true
	default:
		return false
	}
}

// KeyEntry is the answer-key definition for one question.
type KeyEntry struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Answer     string       `json:"answer"`
	Keywords   []string     `json:"keywords,omitempty"`
	Points     float64      `json:"points"`
}

// AnswerKey maps every question of a quiz to its grading rule. Entries keep
// the quiz's question order, which is also the order of graded results.
type AnswerKey struct {
	QuizID  uint
	Entries []KeyEntry
}

// NewAnswerKey validates the entries and returns the key.
func NewAnswerKey(quizID uint, entries []KeyEntry) (AnswerKey, error) {
	key := AnswerKey{QuizID: quizID, Entries: entries}
	if err := key.Validate(); err != nil {
		return AnswerKey{}, err
	}
	return key, nil
}

// Validate checks the structural rules of the key. A key whose points sum to
// zero passes structural validation but cannot be graded.
func (k AnswerKey) Validate() error {
	if len(k.Entries) == 0 {
		return invalid(ErrMalformedKey, "entries", "answer key has no questions")
	}

	seen := make(map[string]struct{}, len(k.Entries))
	for i, entry := range k.Entries {
		field := "entries[" + strconv.Itoa(i) + "]"
		id := strings.TrimSpace(entry.QuestionID)
		if id == "" {
			return invalid(ErrMalformedKey, field, "question id is required")
		}
		if _, dup := seen[id]; dup {
			return invalid(ErrMalformedKey, field, "duplicate question id %q", id)
		}
		seen[id] = struct{}{}

		if !entry.Type.Valid() {
			return invalid(ErrMalformedKey, field, "unknown question type %q", entry.Type)
		}
		if math.IsNaN(entry.Points) || math.IsInf(entry.Points, 0) || entry.Points < 0 {
			return invalid(ErrMalformedKey, field, "points must be a non-negative number")
		}

		switch entry.Type {
		case QuestionMCQ:
			if strings.TrimSpace(entry.Answer) == "" {
				return invalid(ErrMalformedKey, field, "multiple choice question needs a correct option")
			}
		case QuestionTrueFalse:
			if _, ok := parseBool(entry.Answer); !ok {
				return invalid(ErrMalformedKey, field, "true/false answer must be true or false")
			}
		case QuestionShortAnswer:
			if strings.TrimSpace(entry.Answer) == "" && len(nonEmpty(entry.Keywords)) == 0 {
				return invalid(ErrMalformedKey, field, "short answer question needs a model answer or keywords")
			}
		}
	}

	return nil
}

// TotalPossible sums the points of every question.
func (k AnswerKey) TotalPossible() float64 {
	var total float64
	for _, entry := range k.Entries {
		total += entry.Points
	}
	return total
}

// Answer is one submitted response.
type Answer struct {
	QuestionID string `json:"question_id"`
	Response   string `json:"response"`
}

// QuizAttempt is a student's submission against a quiz.
type QuizAttempt struct {
	ID          uint
	StudentID   uint
	QuizID      uint
	Answers     []Answer
	SubmittedAt time.Time
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Awarded    float64      `json:"awarded"`
	Possible   float64      `json:"possible"`
	Correct    bool         `json:"correct"`
	Answered   bool         `json:"answered"`
	Feedback   string       `json:"feedback"`
}

// QuizScore is the derived grade of an attempt. It contains no timestamps so
// grading the same attempt twice yields an identical value.
type QuizScore struct {
	AttemptID     uint             `json:"attempt_id"`
	StudentID     uint             `json:"student_id"`
	QuizID        uint             `json:"quiz_id"`
	Questions     []QuestionResult `json:"questions"`
	Total         float64          `json:"total"`
	TotalPossible float64          `json:"total_possible"`
	Percentage    float64          `json:"percentage"`
	Grade         string           `json:"grade"`
	Feedback      string           `json:"feedback"`
}

// Round2 rounds to the two decimal places used for every persisted score.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LetterGrade bands a percentage into A/B/C/D/F.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
