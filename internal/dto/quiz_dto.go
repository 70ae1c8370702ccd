package dto

import (
	"time"

	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

// QuizKeyEntryRequest describes one question of an answer key.
type QuizKeyEntryRequest struct {
	QuestionID string   `json:"question_id" validate:"required,max=64"`
	Type       string   `json:"type" validate:"required,oneof=mcq true_false short_answer"`
	Answer     string   `json:"answer" validate:"max=4000"`
	Keywords   []string `json:"keywords" validate:"omitempty,dive,max=255"`
	Points     float64  `json:"points" validate:"gte=0"`
}

// QuizCreateRequest publishes a quiz together with its answer key.
type QuizCreateRequest struct {
	Title      string                `json:"title" validate:"required,min=1,max=255"`
	Topic      string                `json:"topic" validate:"max=255"`
	Difficulty string                `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	Questions  []QuizKeyEntryRequest `json:"questions" validate:"required,min=1,dive"`
}

// KeyEntries converts the payload into scoring key entries.
func (r QuizCreateRequest) KeyEntries() []scoring.KeyEntry {
	entries := make([]scoring.KeyEntry, 0, len(r.Questions))
	for _, q := range r.Questions {
		entries = append(entries, scoring.KeyEntry{
			QuestionID: q.QuestionID,
			Type:       scoring.QuestionType(q.Type),
			Answer:     q.Answer,
			Keywords:   q.Keywords,
			Points:     q.Points,
		})
	}
	return entries
}

// QuizResponse serializes a quiz without its answer key.
type QuizResponse struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Topic         string    `json:"topic"`
	Difficulty    string    `json:"difficulty"`
	QuestionCount int       `json:"question_count"`
	TotalPossible float64   `json:"total_possible"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewQuizResponse converts a quiz and its decoded key into a DTO.
func NewQuizResponse(quiz models.Quiz, key scoring.AnswerKey) QuizResponse {
	return QuizResponse{
		ID:            quiz.ID,
		Title:         quiz.Title,
		Topic:         quiz.Topic,
		Difficulty:    quiz.Difficulty,
		QuestionCount: len(key.Entries),
		TotalPossible: key.TotalPossible(),
		CreatedAt:     quiz.CreatedAt,
	}
}

// QuizAnswerRequest is one submitted answer.
type QuizAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required,max=64"`
	Response   string `json:"response" validate:"max=4000"`
}

// QuizAttemptRequest submits answers for a quiz. StudentID is only honoured
// for staff submitting on behalf of a student.
type QuizAttemptRequest struct {
	StudentID uint                `json:"student_id"`
	Answers   []QuizAnswerRequest `json:"answers" validate:"max=500,dive"`
}

// ScoringAnswers converts the payload into ordered scoring answers.
func (r QuizAttemptRequest) ScoringAnswers() []scoring.Answer {
	answers := make([]scoring.Answer, 0, len(r.Answers))
	for _, a := range r.Answers {
		answers = append(answers, scoring.Answer{QuestionID: a.QuestionID, Response: a.Response})
	}
	return answers
}

// QuestionResultResponse is the graded outcome of one question.
type QuestionResultResponse struct {
	QuestionID string  `json:"question_id"`
	Type       string  `json:"type"`
	Awarded    float64 `json:"awarded"`
	Possible   float64 `json:"possible"`
	Correct    bool    `json:"correct"`
	Answered   bool    `json:"answered"`
	Feedback   string  `json:"feedback"`
}

// QuizScoreResponse serializes a graded attempt.
type QuizScoreResponse struct {
	AttemptID     uint                     `json:"attempt_id"`
	StudentID     uint                     `json:"student_id"`
	QuizID        uint                     `json:"quiz_id"`
	Total         float64                  `json:"total"`
	TotalPossible float64                  `json:"total_possible"`
	Percentage    float64                  `json:"percentage"`
	Grade         string                   `json:"grade"`
	Feedback      string                   `json:"feedback"`
	Questions     []QuestionResultResponse `json:"questions"`
	GradedAt      time.Time                `json:"graded_at"`
}

// NewQuizScoreResponse converts a stored score into a DTO.
func NewQuizScoreResponse(score models.QuizScore) QuizScoreResponse {
	results := score.QuestionResults()
	questions := make([]QuestionResultResponse, 0, len(results))
	for _, q := range results {
		questions = append(questions, QuestionResultResponse{
			QuestionID: q.QuestionID,
			Type:       string(q.Type),
			Awarded:    q.Awarded,
			Possible:   q.Possible,
			Correct:    q.Correct,
			Answered:   q.Answered,
			Feedback:   q.Feedback,
		})
	}

	return QuizScoreResponse{
		AttemptID:     score.AttemptID,
		StudentID:     score.StudentID,
		QuizID:        score.QuizID,
		Total:         score.Total,
		TotalPossible: score.TotalPossible,
		Percentage:    score.Percentage,
		Grade:         score.Grade,
		Feedback:      score.Feedback,
		Questions:     questions,
		GradedAt:      score.GradedAt,
	}
}

// QuizAttemptResponse is returned after submitting or re-grading an attempt.
type QuizAttemptResponse struct {
	AttemptID   uint                `json:"attempt_id"`
	Superseded  bool                `json:"superseded"`
	SubmittedAt time.Time           `json:"submitted_at"`
	Score       QuizScoreResponse   `json:"score"`
	Result      FinalResultResponse `json:"result"`
}
