package messagepipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// stopTimeout bounds how long Stop waits for in-flight Receive callbacks.
const stopTimeout = 30 * time.Second

// GooglePubsubConsumerConfig holds configuration for the Pub/Sub consumer.
type GooglePubsubConsumerConfig struct {
	ProjectID              string `yaml:"project_id"`
	SubscriptionID         string `yaml:"subscription_id"`
	CredentialsFile        string `yaml:"credentials_file"`
	MaxOutstandingMessages int    `yaml:"max_outstanding_messages"`
	NumGoroutines          int    `yaml:"num_goroutines"`
}

// LoadGooglePubsubConsumerConfigFromEnv loads consumer configuration from environment variables.
func LoadGooglePubsubConsumerConfigFromEnv() (*GooglePubsubConsumerConfig, error) {
	cfg := &GooglePubsubConsumerConfig{
		ProjectID:              os.Getenv("GCP_PROJECT_ID"),
		SubscriptionID:         os.Getenv("PUBSUB_SUBSCRIPTION_ID"),
		CredentialsFile:        os.Getenv("GCP_PUBSUB_CREDENTIALS_FILE"),
		MaxOutstandingMessages: 100,
		NumGoroutines:          5,
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID environment variable not set for Pub/Sub consumer")
	}
	if cfg.SubscriptionID == "" {
		return nil, errors.New("PUBSUB_SUBSCRIPTION_ID environment variable not set for Pub/Sub consumer")
	}
	return cfg, nil
}

// GooglePubsubConsumer receives messages from a Pub/Sub subscription and emits
// them as InboundMessages. Ack and Nack are wired to the Pub/Sub message.
type GooglePubsubConsumer struct {
	client             *pubsub.Client
	subscription       *pubsub.Subscription
	logger             zerolog.Logger
	outputChan         chan types.InboundMessage
	stopOnce           sync.Once
	cancelSubscription context.CancelFunc
	doneChan           chan struct{}
}

// NewGooglePubsubConsumer creates a consumer with its own client. The
// subscription must already exist.
func NewGooglePubsubConsumer(ctx context.Context, cfg *GooglePubsubConsumerConfig, opts []option.ClientOption, logger zerolog.Logger) (*GooglePubsubConsumer, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient for subscription %s: %w", cfg.SubscriptionID, err)
	}

	sub := client.Subscription(cfg.SubscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("subscription.Exists check for %s: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub subscription %s does not exist in project %s", cfg.SubscriptionID, cfg.ProjectID)
	}

	if cfg.MaxOutstandingMessages > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	}
	if cfg.NumGoroutines > 0 {
		sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines
	}
	bufferSize := cfg.MaxOutstandingMessages
	if bufferSize <= 0 {
		bufferSize = 100
	}

	return &GooglePubsubConsumer{
		client:       client,
		subscription: sub,
		logger:       logger.With().Str("component", "GooglePubsubConsumer").Str("subscription_id", cfg.SubscriptionID).Logger(),
		outputChan:   make(chan types.InboundMessage, bufferSize),
		doneChan:     make(chan struct{}),
	}, nil
}

// Messages returns the channel of received messages. It is closed when the
// consumer stops.
func (c *GooglePubsubConsumer) Messages() <-chan types.InboundMessage { return c.outputChan }

// DeliveryAttemptAttribute carries the broker's delivery count when the
// subscription has a dead-letter policy.
const DeliveryAttemptAttribute = "delivery_attempt"

// Start begins receiving in the background until ctx is cancelled or Stop is called.
func (c *GooglePubsubConsumer) Start(ctx context.Context) error {
	c.logger.Info().Msg("Starting Pub/Sub message consumption...")
	receiveCtx, cancel := context.WithCancel(ctx)
	c.cancelSubscription = cancel
	go c.receiveLoop(receiveCtx)
	return nil
}

func (c *GooglePubsubConsumer) receiveLoop(ctx context.Context) {
	defer close(c.doneChan)
	defer close(c.outputChan)

	err := c.subscription.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		select {
		case c.outputChan <- toInboundMessage(msg):
		case <-ctx.Done():
			// Not handed on, so nobody else will settle it.
			msg.Nack()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error().Err(err).Msg("Pub/Sub Receive call exited with error")
	}
	c.logger.Info().Msg("Pub/Sub Receive loop stopped.")
}

func toInboundMessage(msg *pubsub.Message) types.InboundMessage {
	attrs := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	if msg.DeliveryAttempt != nil {
		attrs[DeliveryAttemptAttribute] = strconv.Itoa(*msg.DeliveryAttempt)
	}
	return types.InboundMessage{
		ID:          msg.ID,
		Body:        bytes.Clone(msg.Data),
		PublishTime: msg.PublishTime,
		Attributes:  attrs,
		Ack:         msg.Ack,
		Nack:        msg.Nack,
	}
}

// Stop cancels receiving, waits for the receive loop to exit and closes the client.
func (c *GooglePubsubConsumer) Stop() error {
	var closeErr error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping Pub/Sub consumer...")
		if c.cancelSubscription != nil {
			c.cancelSubscription()
			select {
			case <-c.doneChan:
			case <-time.After(stopTimeout):
				c.logger.Error().Dur("timeout", stopTimeout).Msg("Pub/Sub Receive loop did not stop in time.")
			}
		} else {
			close(c.outputChan)
			close(c.doneChan)
		}
		if err := c.client.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Error closing Pub/Sub client")
			closeErr = err
		}
	})
	return closeErr
}

// Done returns a channel that is closed once the consumer has stopped.
func (c *GooglePubsubConsumer) Done() <-chan struct{} { return c.doneChan }
