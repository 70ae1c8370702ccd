package service

import (
	"context"
	"encoding/json"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/repository"
)

func TestResultPublisherWritesRedisStream(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	publisher := NewResultPublisher(env.redis, nil, "test", testLogger())

	rank := 1
	err := publisher.Publish(context.Background(),
		ResultEvent{Type: EventResultSelected, StudentID: 4, RunID: "run-1", Status: "selected", Rank: &rank, Message: "<b>Congratulations</b>"},
		ResultEvent{Type: EventResultRejected, StudentID: 5, RunID: "run-1", Status: "rejected"},
	)
	require.NoError(t, err)

	entries, err := env.redis.XRange(context.Background(), "test:results", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, EventResultSelected, entries[0].Values["type"])

	var envelope resultEnvelope
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &envelope))
	require.NotEmpty(t, envelope.Source)
	require.Equal(t, uint(4), envelope.Event.StudentID)
	require.Equal(t, "Congratulations", envelope.Event.Message)
	require.False(t, envelope.Event.OccurredAt.IsZero())
}

func TestResultPublisherWithoutTransports(t *testing.T) {
	publisher := NewResultPublisher(nil, nil, "", testLogger())
	require.NoError(t, publisher.Publish(context.Background(), ResultEvent{Type: EventResultsReleased, RunID: "r"}))
	require.NoError(t, publisher.Publish(context.Background()))
}

func TestResultPublisherReportsRedisFailure(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	server.Close()

	publisher := NewResultPublisher(client, nil, "test", testLogger())

	err = publisher.Publish(context.Background(), ResultEvent{Type: EventResultsReleased, RunID: "r"})
	require.Error(t, err)
}
