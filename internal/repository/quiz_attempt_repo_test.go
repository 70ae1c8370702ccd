package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/models"
)

func TestQuizAttemptRejectPolicy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewQuizAttemptRepository(db, AttemptPolicyReject)

	first := models.QuizAttempt{StudentID: 1, QuizID: 5, SubmittedAt: time.Now()}
	first.SetAnswers(nil)
	require.NoError(t, repo.Create(ctx, &first))

	second := models.QuizAttempt{StudentID: 1, QuizID: 5, SubmittedAt: time.Now()}
	second.SetAnswers(nil)
	require.ErrorIs(t, repo.Create(ctx, &second), ErrDuplicateAttempt)

	other := models.QuizAttempt{StudentID: 1, QuizID: 6, SubmittedAt: time.Now()}
	other.SetAnswers(nil)
	require.NoError(t, repo.Create(ctx, &other))
}

func TestQuizAttemptSupersedePolicy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewQuizAttemptRepository(db, AttemptPolicySupersede)

	first := seedAttempt(t, db, 1, 5, time.Now().Add(-time.Minute))
	second := seedAttempt(t, db, 1, 5, time.Now())

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, stored.Superseded)

	attempts, err := repo.ListByStudent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, second.ID, attempts[0].ID)
	require.False(t, attempts[0].Superseded)
}

func TestParseAttemptPolicy(t *testing.T) {
	policy, err := ParseAttemptPolicy(" Supersede ")
	require.NoError(t, err)
	require.Equal(t, AttemptPolicySupersede, policy)

	_, err = ParseAttemptPolicy("latest")
	require.Error(t, err)
}
