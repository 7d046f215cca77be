package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/techview-systems/leadpixel-stack/common/messaging"
)

// JetStreamClient extends Client with JetStream persistence capabilities.
type JetStreamClient struct {
	*Client
	js jetstream.JetStream
}

// StreamConfig defines a JetStream stream configuration.
type StreamConfig struct {
	Name      string
	Subjects  []string
	MaxAge    time.Duration
	MaxBytes  int64
	MaxMsgs   int64
	Retention jetstream.RetentionPolicy
	Storage   jetstream.StorageType
	// Duplicates is the window in which a repeated Nats-Msg-Id is dropped.
	Duplicates time.Duration
}

// CAPIDLQStream holds server events that could not be delivered.
var CAPIDLQStream = StreamConfig{
	Name:       "CAPI_DLQ",
	Subjects:   []string{messaging.SubjectCAPIDLQAll},
	MaxAge:     7 * 24 * time.Hour,
	MaxBytes:   256 * 1024 * 1024,
	MaxMsgs:    500000,
	Retention:  jetstream.LimitsPolicy,
	Storage:    jetstream.FileStorage,
	Duplicates: 10 * time.Minute,
}

// NewJetStreamClient creates a JetStream-enabled client.
func NewJetStreamClient(cfg Config) (*JetStreamClient, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(client.conn)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamClient{Client: client, js: js}, nil
}

// CreateOrUpdateStream creates or updates a stream.
func (c *JetStreamClient) CreateOrUpdateStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	stream, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Name,
		Subjects:   cfg.Subjects,
		MaxAge:     cfg.MaxAge,
		MaxBytes:   cfg.MaxBytes,
		MaxMsgs:    cfg.MaxMsgs,
		Retention:  cfg.Retention,
		Storage:    cfg.Storage,
		Duplicates: cfg.Duplicates,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", cfg.Name, err)
	}
	return stream, nil
}

// PublishSync publishes a message and waits for the stream acknowledgment.
// A non-empty msgID lets the stream drop duplicates inside its window.
func (c *JetStreamClient) PublishSync(ctx context.Context, msg *messaging.Message, msgID string) (*jetstream.PubAck, error) {
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	return c.js.PublishMsg(ctx, toNatsMsg(msg), opts...)
}

// MessageFromJetStream converts a fetched JetStream message.
func MessageFromJetStream(msg jetstream.Msg) *messaging.Message {
	m := &messaging.Message{
		Subject:  msg.Subject(),
		Data:     msg.Data(),
		Metadata: headersToMetadata(msg.Headers()),
	}
	if meta, err := msg.Metadata(); err == nil {
		m.Timestamp = meta.Timestamp
	}
	return m
}
