package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-selection-api/internal/database"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, name string) models.Student {
	t.Helper()
	student := models.Student{Name: name, Email: name + "@example.com"}
	require.NoError(t, NewStudentRepository(db).Create(context.Background(), &student))
	return student
}

var errAggregate = errors.New("aggregation failed")

func failingAggregate(uint, *float64, *float64) (scoring.FinalResult, error) {
	return scoring.FinalResult{}, errAggregate
}

func newAttempt(studentID, quizID uint, at time.Time) models.QuizAttempt {
	attempt := models.QuizAttempt{StudentID: studentID, QuizID: quizID, SubmittedAt: at}
	attempt.SetAnswers([]scoring.Answer{{QuestionID: "q1", Response: "A"}})
	return attempt
}

func seedAttempt(t *testing.T, db *gorm.DB, studentID, quizID uint, at time.Time) models.QuizAttempt {
	t.Helper()
	attempt := newAttempt(studentID, quizID, at)
	require.NoError(t, NewQuizAttemptRepository(db, AttemptPolicySupersede).Create(context.Background(), &attempt))
	return attempt
}

func seedVideo(t *testing.T, db *gorm.DB, studentID uint, at time.Time) models.VideoSubmission {
	t.Helper()
	submission := models.VideoSubmission{StudentID: studentID, VideoURL: "https://drive.google.com/file/d/abc/view", SubmittedAt: at}
	require.NoError(t, NewVideoSubmissionRepository(db).Create(context.Background(), &submission))
	return submission
}

func quizScore(attempt models.QuizAttempt, percentage float64) *models.QuizScore {
	return &models.QuizScore{
		AttemptID:     attempt.ID,
		StudentID:     attempt.StudentID,
		QuizID:        attempt.QuizID,
		Total:         percentage,
		TotalPossible: 100,
		Percentage:    percentage,
		Grade:         scoring.LetterGrade(percentage),
		GradedAt:      time.Now(),
	}
}

func videoScore(submission models.VideoSubmission, composite float64) *models.VideoScore {
	return &models.VideoScore{
		SubmissionID: submission.ID,
		StudentID:    submission.StudentID,
		Content:      composite,
		Composite:    composite,
		ScoredAt:     time.Now(),
	}
}
