package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/common/messaging"
	"github.com/techview-systems/leadpixel-stack/common/messaging/nats"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/metrics"
)

// JetStreamQueue writes failed events to NATS JetStream so every funnel
// instance shares one dead-letter stream.
type JetStreamQueue struct {
	js      *nats.JetStreamClient
	stream  jetstream.Stream
	written atomic.Uint64
}

// NewJetStreamQueue creates the DLQ stream if needed.
func NewJetStreamQueue(ctx context.Context, js *nats.JetStreamClient) (*JetStreamQueue, error) {
	if js == nil {
		return nil, fmt.Errorf("jetstream client is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, nats.CAPIDLQStream)
	if err != nil {
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	slog.Info("DLQ stream ready", slog.String("stream", nats.CAPIDLQStream.Name))

	return &JetStreamQueue{js: js, stream: stream}, nil
}

// Write publishes a failed event on capi.dlq.<reason>. The event id doubles
// as the JetStream message id, so the same event dead-lettered twice
// inside the stream's duplicate window is stored once.
func (q *JetStreamQueue) Write(ctx context.Context, failed *FailedEvent) error {
	stamp(failed, time.Now().UTC())

	data, err := json.Marshal(failed)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal DLQ entry", logging.Error(err))
		return err
	}

	msgID := ""
	if failed.Event != nil {
		msgID = failed.Event.EventID
	}
	msg := &messaging.Message{
		Subject: messaging.DLQSubject(failed.Reason),
		Data:    data,
		Metadata: map[string]string{
			"operator_id": failed.OperatorID,
			"reason":      failed.Reason,
		},
	}
	if _, err := q.js.PublishSync(ctx, msg, msgID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish DLQ entry", eventIDAttr(failed), logging.Error(err))
		return err
	}

	q.written.Add(1)
	metrics.DLQEvents.WithLabelValues(failed.Reason).Inc()
	slog.WarnContext(ctx, "Server event dead-lettered",
		logging.OperatorID(failed.OperatorID),
		eventIDAttr(failed),
		slog.String("reason", failed.Reason),
	)
	return nil
}

// Stats returns DLQ figures from the stream.
func (q *JetStreamQueue) Stats(ctx context.Context) map[string]any {
	info, err := q.stream.Info(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to get DLQ stream info", logging.Error(err))
		return map[string]any{
			"enabled":       true,
			"backend":       "jetstream",
			"written_local": q.written.Load(),
			"error":         err.Error(),
		}
	}

	return map[string]any{
		"enabled":        true,
		"backend":        "jetstream",
		"written_local":  q.written.Load(),
		"total_messages": info.State.Msgs,
		"total_bytes":    info.State.Bytes,
		"first_seq":      info.State.FirstSeq,
		"last_seq":       info.State.LastSeq,
		"consumer_count": info.State.Consumers,
	}
}

// List reads up to limit failed events through an ephemeral consumer.
func (q *JetStreamQueue) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	consumer, err := q.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{messaging.SubjectCAPIDLQAll},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create list consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	events := make([]FailedEvent, 0, limit)
	for msg := range msgs.Messages() {
		var failed FailedEvent
		if err := json.Unmarshal(nats.MessageFromJetStream(msg).Data, &failed); err != nil {
			slog.WarnContext(ctx, "Skipping unreadable DLQ message", logging.Error(err))
			continue
		}
		events = append(events, failed)
	}
	if err := msgs.Error(); err != nil {
		slog.WarnContext(ctx, "DLQ fetch completed with error", logging.Error(err))
	}
	return events, nil
}

// Purge removes all events from the DLQ stream.
func (q *JetStreamQueue) Purge(ctx context.Context) error {
	if err := q.stream.Purge(ctx); err != nil {
		return fmt.Errorf("purge dlq stream: %w", err)
	}
	slog.InfoContext(ctx, "DLQ purged", slog.String("stream", nats.CAPIDLQStream.Name))
	return nil
}
