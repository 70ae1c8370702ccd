package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// NotAnsweredFeedback is the feedback attached to questions left blank.
const NotAnsweredFeedback = "not answered"

// nearMissMinRunes is the shortest normalised model answer for which a
// single-edit response still earns half credit.
const nearMissMinRunes = 4

// Answer keys may be produced upstream by a content generator, so any key
// text echoed back into feedback is stripped of markup.
var feedbackPolicy = bluemonday.StrictPolicy()

// GradeQuiz scores an attempt against its answer key. It is a pure function:
// the same attempt and key always produce an identical QuizScore.
func GradeQuiz(attempt QuizAttempt, key AnswerKey) (QuizScore, error) {
	if err := key.Validate(); err != nil {
		return QuizScore{}, err
	}
	if attempt.QuizID != key.QuizID {
		return QuizScore{}, invalid(ErrMalformedAttempt, "quiz_id", "attempt is for quiz %d but key is for quiz %d", attempt.QuizID, key.QuizID)
	}

	possible := key.TotalPossible()
	if possible <= 0 {
		return QuizScore{}, invalid(ErrDivisionUndefined, "points", "answer key for quiz %d awards no points", key.QuizID)
	}

	known := make(map[string]struct{}, len(key.Entries))
	for _, entry := range key.Entries {
		known[strings.TrimSpace(entry.QuestionID)] = struct{}{}
	}

	responses := make(map[string]string, len(attempt.Answers))
	for i, answer := range attempt.Answers {
		id := strings.TrimSpace(answer.QuestionID)
		field := fmt.Sprintf("answers[%d]", i)
		if _, ok := known[id]; !ok {
			return QuizScore{}, invalid(ErrMalformedAttempt, field, "question %q is not part of quiz %d", id, key.QuizID)
		}
		if _, dup := responses[id]; dup {
			return QuizScore{}, invalid(ErrMalformedAttempt, field, "question %q answered more than once", id)
		}
		responses[id] = answer.Response
	}

	results := make([]QuestionResult, 0, len(key.Entries))
	var total float64
	for _, entry := range key.Entries {
		id := strings.TrimSpace(entry.QuestionID)
		result := QuestionResult{
			QuestionID: id,
			Type:       entry.Type,
			Possible:   entry.Points,
		}

		response, answered := responses[id]
		if !answered || strings.TrimSpace(response) == "" {
			result.Feedback = NotAnsweredFeedback
			results = append(results, result)
			continue
		}
		result.Answered = true

		switch entry.Type {
		case QuestionMCQ:
			result.Awarded, result.Correct, result.Feedback = gradeExact(entry, normalizeOption(response) == normalizeOption(entry.Answer))
		case QuestionTrueFalse:
			want, _ := parseBool(entry.Answer)
			got, ok := parseBool(response)
			result.Awarded, result.Correct, result.Feedback = gradeExact(entry, ok && got == want)
		case QuestionShortAnswer:
			result.Awarded, result.Correct, result.Feedback = gradeShortAnswer(entry, response)
		}

		total += result.Awarded
		results = append(results, result)
	}

	total = Round2(total)
	percentage := Round2(total / possible * 100)

	return QuizScore{
		AttemptID:     attempt.ID,
		StudentID:     attempt.StudentID,
		QuizID:        attempt.QuizID,
		Questions:     results,
		Total:         total,
		TotalPossible: Round2(possible),
		Percentage:    percentage,
		Grade:         LetterGrade(percentage),
		Feedback:      fmt.Sprintf("You scored %s/%s (%.2f%%)", formatPoints(total), formatPoints(Round2(possible)), percentage),
	}, nil
}

func gradeExact(entry KeyEntry, match bool) (float64, bool, string) {
	if match {
		return entry.Points, true, "Correct!"
	}
	return 0, false, "Incorrect. The correct answer is: " + sanitizeFeedback(entry.Answer)
}

// gradeShortAnswer awards the larger of keyword coverage and token overlap
// with the model answer. A response one edit away from a model answer of at
// least nearMissMinRunes runes earns at least half credit.
func gradeShortAnswer(entry KeyEntry, response string) (float64, bool, string) {
	resp := normalizeText(response)
	model := normalizeText(entry.Answer)

	if model != "" && resp == model {
		return entry.Points, true, "Correct!"
	}

	keywords := nonEmpty(entry.Keywords)
	matched := make([]string, 0, len(keywords))
	missing := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if containsPhrase(resp, normalizeText(kw)) {
			matched = append(matched, strings.TrimSpace(kw))
		} else {
			missing = append(missing, strings.TrimSpace(kw))
		}
	}

	var fraction float64
	if len(keywords) > 0 {
		fraction = float64(len(matched)) / float64(len(keywords))
	}
	if model != "" {
		if overlap := tokenOverlap(model, resp); overlap > fraction {
			fraction = overlap
		}
		if fraction < 0.5 && utf8.RuneCountInString(model) >= nearMissMinRunes && levenshtein(model, resp) <= 1 {
			fraction = 0.5
		}
	}

	awarded := Round2(entry.Points * fraction)
	if awarded > entry.Points {
		awarded = entry.Points
	}
	if awarded < 0 {
		awarded = 0
	}

	switch {
	case fraction >= 1:
		return entry.Points, true, "Correct! All key points covered."
	case fraction <= 0:
		if model != "" {
			return 0, false, "Incorrect. Expected answer: " + sanitizeFeedback(entry.Answer)
		}
		return 0, false, "Incorrect. Expected key points: " + sanitizeFeedback(strings.Join(missing, ", "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Partially correct (%.0f%%).", fraction*100)
	if len(matched) > 0 {
		b.WriteString(" Matched key points: ")
		b.WriteString(sanitizeFeedback(strings.Join(matched, ", ")))
		b.WriteString(".")
	}
	if len(missing) > 0 {
		b.WriteString(" Missing: ")
		b.WriteString(sanitizeFeedback(strings.Join(missing, ", ")))
		b.WriteString(".")
	}
	return awarded, false, b.String()
}

func sanitizeFeedback(s string) string {
	return strings.TrimSpace(feedbackPolicy.Sanitize(s))
}
