package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
)

func TestQuizCreateValidatesKey(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	svc := NewQuizService(env.quizzes, env.validator, env.activity, testLogger())

	_, err := svc.Create(context.Background(), NewActor(5, RoleStudent), dto.QuizCreateRequest{})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), admin, dto.QuizCreateRequest{
		Title:     "Zero",
		Questions: []dto.QuizKeyEntryRequest{{QuestionID: "q1", Type: "mcq", Answer: "A", Points: 0}},
	})
	require.ErrorIs(t, err, scoring.ErrDivisionUndefined)

	_, err = svc.Create(context.Background(), admin, dto.QuizCreateRequest{
		Title: "Dup",
		Questions: []dto.QuizKeyEntryRequest{
			{QuestionID: "q1", Type: "mcq", Answer: "A", Points: 1},
			{QuestionID: "q1", Type: "mcq", Answer: "B", Points: 1},
		},
	})
	require.ErrorIs(t, err, scoring.ErrMalformedKey)

	_, err = svc.Create(context.Background(), admin, dto.QuizCreateRequest{
		Title:     "Bad type",
		Questions: []dto.QuizKeyEntryRequest{{QuestionID: "q1", Type: "essay", Points: 1}},
	})
	require.Error(t, err)

	created := env.seedQuiz(t)
	require.Equal(t, 4, created.QuestionCount)
	require.Equal(t, 10.0, created.TotalPossible)

	loaded, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Title, loaded.Title)

	_, err = svc.Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrQuizNotFound)
}
