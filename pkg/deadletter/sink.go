package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// Attribute keys set on every dead-lettered Pub/Sub message.
const (
	AttrOriginalMessageID = "original_message_id"
	AttrReason            = "dead_letter_reason"
	AttrDeadLetteredAt    = "dead_lettered_at"
)

// MaxAttributeValueBytes is Pub/Sub's limit on a single attribute value.
const MaxAttributeValueBytes = 1024

// LogSink records dead-lettered messages in the log and nowhere else.
// It is the fallback when no dead-letter topic is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "LogDeadLetterSink").Logger()}
}

// Send logs msg and cause. It never fails.
func (s *LogSink) Send(_ context.Context, msg types.InboundMessage, cause error) error {
	s.logger.Error().
		Err(cause).
		Str("msg_id", msg.ID).
		Int("body_bytes", len(msg.Body)).
		Str("body", string(msg.Body)).
		Msg("Message dead-lettered.")
	return nil
}

// PubSubSinkConfig holds configuration for the Pub/Sub dead-letter sink.
type PubSubSinkConfig struct {
	TopicID string `yaml:"topic_id"`
	// PublishTimeout bounds waiting for the publish result. Zero uses the caller's context.
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// PubSubSink republishes dead-lettered messages, body unchanged, to a topic.
type PubSubSink struct {
	topic   *pubsub.Topic
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewPubSubSink creates a sink publishing to cfg.TopicID. The topic must exist.
func NewPubSubSink(ctx context.Context, client *pubsub.Client, cfg PubSubSinkConfig, logger zerolog.Logger) (*PubSubSink, error) {
	if client == nil {
		return nil, errors.New("pubsub client cannot be nil for dead-letter sink")
	}
	if cfg.TopicID == "" {
		return nil, fmt.Errorf("%w: dead-letter topic id is required", types.ErrConfiguration)
	}

	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check existence of dead-letter topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: dead-letter topic %s does not exist", types.ErrConfiguration, cfg.TopicID)
	}

	return &PubSubSink{
		topic:   topic,
		timeout: cfg.PublishTimeout,
		logger:  logger.With().Str("component", "PubSubDeadLetterSink").Str("topic_id", cfg.TopicID).Logger(),
		now:     time.Now,
	}, nil
}

// Send publishes msg and waits for the server to accept it.
func (s *PubSubSink) Send(ctx context.Context, msg types.InboundMessage, cause error) error {
	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}
	attrs := make(map[string]string, len(msg.Attributes)+3)
	for k, v := range msg.Attributes {
		attrs[k] = truncateValue(v)
	}
	attrs[AttrOriginalMessageID] = msg.ID
	attrs[AttrReason] = truncateValue(reason)
	attrs[AttrDeadLetteredAt] = s.now().UTC().Format(time.RFC3339Nano)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result := s.topic.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: attrs})
	serverID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish dead-letter message %s: %w", msg.ID, err)
	}
	s.logger.Info().Str("msg_id", msg.ID).Str("server_id", serverID).Msg("Published dead-letter message.")
	return nil
}

// Stop flushes pending publishes.
func (s *PubSubSink) Stop() {
	s.topic.Stop()
}

// truncateValue cuts v to MaxAttributeValueBytes without splitting a UTF-8 rune.
func truncateValue(v string) string {
	if len(v) <= MaxAttributeValueBytes {
		return v
	}
	cut := MaxAttributeValueBytes
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut]
}
