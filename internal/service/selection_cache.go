package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/observability"
)

// SelectionCache keeps the latest ranking in Redis. A nil client disables it.
// Any ledger write invalidates the entry because ranks may have been cleared.
// Invalidate also bumps a generation counter; Set only stores a ranking read
// under the current generation.
type SelectionCache struct {
	client *redis.Client
	key    string
	genKey string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSelectionCache constructs the cache under "<channel>:selection:latest"
// with its generation counter at "<channel>:selection:generation".
func NewSelectionCache(client *redis.Client, channel string, ttl time.Duration, logger zerolog.Logger) *SelectionCache {
	if channel == "" {
		channel = "gema"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SelectionCache{
		client: client,
		key:    channel + ":selection:latest",
		genKey: channel + ":selection:generation",
		ttl:    ttl,
		logger: logger.With().Str("component", "selection_cache").Logger(),
	}
}

// Get returns the cached latest run, if any.
func (c *SelectionCache) Get(ctx context.Context) (dto.SelectionRunResponse, bool) {
	if c == nil || c.client == nil {
		return dto.SelectionRunResponse{}, false
	}

	cached, err := c.client.Get(ctx, c.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read selection cache")
		}
		observability.SelectionCacheLookups().WithLabelValues("miss").Inc()
		return dto.SelectionRunResponse{}, false
	}

	var response dto.SelectionRunResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed selection cache entry")
		observability.SelectionCacheLookups().WithLabelValues("miss").Inc()
		return dto.SelectionRunResponse{}, false
	}

	observability.SelectionCacheLookups().WithLabelValues("hit").Inc()
	return response, true
}

// Generation returns the invalidation counter to pass to Set. ok is false
// when Redis cannot be read, in which case nothing should be cached.
func (c *SelectionCache) Generation(ctx context.Context) (int64, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	gen, err := c.client.Get(ctx, c.genKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		c.logger.Warn().Err(err).Msg("failed to read selection cache generation")
		return 0, false
	}
	return gen, true
}

// Set stores the latest run if no invalidation happened since generation was
// read. The check and the write run in one WATCH/MULTI transaction.
func (c *SelectionCache) Set(ctx context.Context, generation int64, response dto.SelectionRunResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode selection cache entry")
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, payload, c.ttl)
			return nil
		})
		return err
	}, c.genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug().Int64("generation", generation).Msg("skipped caching a stale selection")
	default:
		c.logger.Warn().Err(err).Msg("failed to store selection cache")
	}
}

// Invalidate drops the cached run and bumps the generation.
func (c *SelectionCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate selection cache")
	}
}

var errStaleGeneration = errors.New("selection cache generation changed")
