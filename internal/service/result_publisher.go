package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-selection-api/internal/observability"
)

// Result event types handed to the notification dispatcher.
const (
	EventResultSelected  = "result.selected"
	EventResultRejected  = "result.rejected"
	EventResultsReleased = "results.released"
)

// ResultEvent describes a status transition or a release.
type ResultEvent struct {
	Type       string    `json:"type"`
	StudentID  uint      `json:"student_id,omitempty"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status,omitempty"`
	Rank       *int      `json:"rank,omitempty"`
	FinalScore *float64  `json:"final_score,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ResultPublisher hands result events to downstream notification delivery.
// Delivery guarantees are the dispatcher's concern.
type ResultPublisher interface {
	Publish(ctx context.Context, events ...ResultEvent) error
}

type resultEnvelope struct {
	Source string      `json:"source"`
	Event  ResultEvent `json:"event"`
}

type resultPublisher struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	nodeID      string
}

// NewResultPublisher publishes to the Redis stream "<channel>:results" and the
// NATS subject "<channel>.results". Either transport may be nil.
func NewResultPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ResultPublisher {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":results"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".results"
	}

	return &resultPublisher{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "result_publisher").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-selection-api/internal/service/result_publisher"),
		nodeID:      uuid.NewString(),
	}
}

func (p *resultPublisher) Publish(ctx context.Context, events ...ResultEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "results.publish", trace.WithAttributes(
		attribute.Int("results.event_count", len(events)),
	))
	defer span.End()

	var errs []error
	for _, event := range events {
		event.Message = strings.TrimSpace(p.sanitizer.Sanitize(event.Message))
		if event.OccurredAt.IsZero() {
			event.OccurredAt = time.Now().UTC()
		}

		payload, err := json.Marshal(resultEnvelope{Source: p.nodeID, Event: event})
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if p.redis != nil && p.redisStream != "" {
			if err := p.redis.XAdd(ctx, &redis.XAddArgs{
				Stream: p.redisStream,
				Values: map[string]interface{}{"type": event.Type, "payload": string(payload)},
			}).Err(); err != nil {
				errs = append(errs, err)
				continue
			}
		}

		if p.nats != nil && p.natsSubject != "" {
			if err := p.nats.Publish(p.natsSubject, payload); err != nil {
				errs = append(errs, err)
				continue
			}
		}

		observability.ResultEventsPublished().WithLabelValues(event.Type).Inc()
	}

	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
