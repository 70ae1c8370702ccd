package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/repository"
)

func TestSelectionCacheSkipsWritesFromOlderGeneration(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	ctx := context.Background()

	stale, ok := env.cache.Generation(ctx)
	require.True(t, ok)
	env.cache.Invalidate(ctx)

	env.cache.Set(ctx, stale, dto.SelectionRunResponse{ID: "stale"})
	_, hit := env.cache.Get(ctx)
	require.False(t, hit)

	current, ok := env.cache.Generation(ctx)
	require.True(t, ok)
	require.Equal(t, stale+1, current)

	env.cache.Set(ctx, current, dto.SelectionRunResponse{ID: "fresh"})
	cached, hit := env.cache.Get(ctx)
	require.True(t, hit)
	require.Equal(t, "fresh", cached.ID)
}

func TestSelectionCacheWithoutRedisIsDisabled(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewSelectionCache(client, "down", time.Minute, testLogger())
	server.Close()

	_, ok := cache.Generation(context.Background())
	require.False(t, ok)

	var disabled *SelectionCache
	_, ok = disabled.Generation(context.Background())
	require.False(t, ok)
	disabled.Set(context.Background(), 0, dto.SelectionRunResponse{})
	disabled.Invalidate(context.Background())
}

// invalidatingRuns simulates a ledger write committed while Latest is
// rebuilding the ranking from storage.
type invalidatingRuns struct {
	repository.SelectionRunRepository
	cache *SelectionCache
}

func (r invalidatingRuns) Latest(ctx context.Context) (*models.SelectionRun, error) {
	run, err := r.SelectionRunRepository.Latest(ctx)
	r.cache.Invalidate(ctx)
	return run, err
}

func TestSelectionLatestDoesNotCacheRankingInvalidatedMidRead(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	seedCohort(t, env, 60, 70, 80)

	run, err := env.selectionService(nil).Run(context.Background(), admin, dto.SelectionRunRequest{Mode: "count", Value: floatPtr(1)})
	require.NoError(t, err)
	env.cache.Invalidate(context.Background())

	racing := *env
	racing.runs = invalidatingRuns{SelectionRunRepository: env.runs, cache: env.cache}

	latest, err := racing.selectionService(nil).Latest(context.Background(), admin)
	require.NoError(t, err)
	require.Equal(t, run.ID, latest.ID)
	require.False(t, env.miniredis.Exists("test:selection:latest"))

	_, err = env.selectionService(nil).Latest(context.Background(), admin)
	require.NoError(t, err)
	require.True(t, env.miniredis.Exists("test:selection:latest"))
}
