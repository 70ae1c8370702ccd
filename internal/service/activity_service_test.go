package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/middleware"
	"github.com/noah-isme/gema-selection-api/internal/repository"
)

func TestActivityRecordMasksSensitiveMetadata(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-1")

	resp, err := env.activity.Record(ctx, ActivityEntry{
		Actor:      NewActor(3, " Teacher "),
		Action:     " Selection.Run ",
		EntityType: "Selection_Run",
		EntityID:   "run-1",
		Metadata:   map[string]interface{}{"email": "a@b.c", "api_token": "x", "cutoff": 2},
	})
	require.NoError(t, err)
	require.Equal(t, "teacher", resp.ActorRole)
	require.Equal(t, ActionSelectionRun, resp.Action)
	require.Equal(t, "selection_run", resp.EntityType)
	require.Equal(t, "corr-1", resp.CorrelationID)
	require.Equal(t, "***", resp.Metadata["email"])
	require.Equal(t, "***", resp.Metadata["api_token"])
	require.EqualValues(t, 2, resp.Metadata["cutoff"])

	_, err = env.activity.Record(ctx, ActivityEntry{Actor: admin, EntityType: "quiz"})
	require.Error(t, err)
}

func TestActivityListRequiresStaffAndPaginates(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	for i := 0; i < 5; i++ {
		_, err := env.activity.Record(context.Background(), ActivityEntry{Actor: admin, Action: ActionQuizPublished, EntityType: "quiz"})
		require.NoError(t, err)
	}
	_, err := env.activity.Record(context.Background(), ActivityEntry{Actor: admin, Action: ActionSelectionRun, EntityType: "selection_run"})
	require.NoError(t, err)

	_, err = env.activity.List(context.Background(), NewActor(4, RoleStudent), dto.ActivityListRequest{})
	require.ErrorIs(t, err, ErrForbidden)

	page, err := env.activity.List(context.Background(), admin, dto.ActivityListRequest{Page: 2, PageSize: 2, Action: ActionQuizPublished})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(5), page.Pagination.TotalItems)
	require.Equal(t, 3, page.Pagination.TotalPages)
	require.Equal(t, 2, page.Pagination.Page)
}
