package loadgen

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// IDAttribute carries the publisher-generated idempotency key on every message.
const IDAttribute = "message_id"

// PubSubClient publishes generated messages to a Pub/Sub topic.
type PubSubClient struct {
	projectID string
	topicID   string
	opts      []option.ClientOption
	logger    zerolog.Logger

	client *pubsub.Client
	topic  *pubsub.Topic
	newID  func() string
}

// NewPubSubClient creates a client for topicID. It connects on Connect.
func NewPubSubClient(projectID, topicID string, opts []option.ClientOption, logger zerolog.Logger) *PubSubClient {
	return &PubSubClient{
		projectID: projectID,
		topicID:   topicID,
		opts:      opts,
		logger:    logger.With().Str("component", "PubSubLoadClient").Str("topic_id", topicID).Logger(),
		newID:     func() string { return uuid.New().String() },
	}
}

// Connect creates the Pub/Sub client and checks that the topic exists.
func (c *PubSubClient) Connect(ctx context.Context) error {
	client, err := pubsub.NewClient(ctx, c.projectID, c.opts...)
	if err != nil {
		return fmt.Errorf("pubsub.NewClient: %w", err)
	}
	topic := client.Topic(c.topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to check topic %s: %w", c.topicID, err)
	}
	if !exists {
		_ = client.Close()
		return fmt.Errorf("topic %s does not exist", c.topicID)
	}
	c.client, c.topic = client, topic
	return nil
}

// Disconnect flushes pending publishes and closes the client.
func (c *PubSubClient) Disconnect() {
	if c.topic != nil {
		c.topic.Stop()
	}
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Error closing Pub/Sub client")
		}
	}
}

// Publish sends one generated message and waits for the broker to accept it.
func (c *PubSubClient) Publish(ctx context.Context, source *Source) (bool, error) {
	if c.topic == nil {
		return false, errors.New("client is not connected")
	}
	if source.PayloadGenerator == nil {
		return false, fmt.Errorf("source %s has no payload generator", source.ID)
	}
	payload, err := source.PayloadGenerator.GeneratePayload(source)
	if err != nil {
		return false, fmt.Errorf("failed to generate payload: %w", err)
	}

	id := c.newID()
	res := c.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{IDAttribute: id, "source": source.ID},
	})
	if _, err := res.Get(ctx); err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("publish %s: %w", id, err)
	}
	c.logger.Debug().Str("msg_id", id).Str("source_id", source.ID).Msg("Published message")
	return true, nil
}
