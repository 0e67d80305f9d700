package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nordlys/crmx/pkg/redis"
)

// Publisher emits snapshot lifecycle events. The ingest runner treats
// publishing as best-effort: a failed publish is logged, never fatal.
type Publisher interface {
	PublishSnapshotCompleted(ctx context.Context, payload SnapshotCompleted) error
	PublishSnapshotFailed(ctx context.Context, payload SnapshotFailed) error
}

// StreamPublisher publishes envelopes to a Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	source string
	logger *zap.Logger
}

// NewStreamPublisher creates a publisher bound to one stream.
func NewStreamPublisher(client *redis.Client, stream, source string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		source: source,
		logger: logger,
	}
}

func (p *StreamPublisher) publish(ctx context.Context, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}

	encoded, err := Encode(env)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, p.stream, map[string]interface{}{
		"type": eventType,
		"data": encoded,
	})
	if err != nil {
		return err
	}

	p.logger.Info("Published event",
		zap.String("type", eventType),
		zap.String("stream", p.stream),
		zap.String("message_id", id),
	)
	return nil
}

// PublishSnapshotCompleted announces a finished ingestion run.
func (p *StreamPublisher) PublishSnapshotCompleted(ctx context.Context, payload SnapshotCompleted) error {
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, TypeSnapshotCompleted, payload)
}

// PublishSnapshotFailed announces a failed ingestion run.
func (p *StreamPublisher) PublishSnapshotFailed(ctx context.Context, payload SnapshotFailed) error {
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	return p.publish(ctx, TypeSnapshotFailed, payload)
}

var _ Publisher = (*StreamPublisher)(nil)
