//go:build integration

package messagepipeline_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-queueingest/helpers/emulators"
	"github.com/illmade-knight/go-queueingest/pkg/deadletter"
	"github.com/illmade-knight/go-queueingest/pkg/ingest"
	"github.com/illmade-knight/go-queueingest/pkg/messagepipeline"
	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_EmulatorPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	const projectID = "test-project"
	opts, cleanup := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	defer cleanup()

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	require.NoError(t, err)
	defer client.Close()

	ingestTopic, err := client.CreateTopic(ctx, "ingest")
	require.NoError(t, err)
	_, err = client.CreateSubscription(ctx, "ingest-sub", pubsub.SubscriptionConfig{Topic: ingestTopic, AckDeadline: 20 * time.Second})
	require.NoError(t, err)
	dlqTopic, err := client.CreateTopic(ctx, "ingest-dlq")
	require.NoError(t, err)
	dlqSub, err := client.CreateSubscription(ctx, "ingest-dlq-watch", pubsub.SubscriptionConfig{Topic: dlqTopic})
	require.NoError(t, err)

	sink, err := deadletter.NewPubSubSink(ctx, client, deadletter.PubSubSinkConfig{TopicID: "ingest-dlq", PublishTimeout: 10 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	defer sink.Stop()

	store := recordstore.NewMemoryWriter(zerolog.Nop())
	handler, err := ingest.NewHandler(store, ingest.HandlerConfig{Concurrency: 4}, zerolog.Nop())
	require.NoError(t, err)
	ingester, err := messagepipeline.NewBatchIngester(messagepipeline.BatchIngesterConfig{
		BatchSize:    10,
		FlushTimeout: 100 * time.Millisecond,
	}, handler, ingest.NewReporter(sink, zerolog.Nop()), zerolog.Nop())
	require.NoError(t, err)

	consumer, err := messagepipeline.NewGooglePubsubConsumer(ctx, &messagepipeline.GooglePubsubConsumerConfig{
		ProjectID:      projectID,
		SubscriptionID: "ingest-sub",
	}, opts, zerolog.Nop())
	require.NoError(t, err)
	service, err := messagepipeline.NewProcessingService(4, consumer, ingester,
		messagepipeline.IDFromAttribute(messagepipeline.DefaultIDAttribute), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, service.Start(ctx))

	const valid = 25
	msgs := make([]*pubsub.Message, 0, valid+1)
	for i := 0; i < valid; i++ {
		msgs = append(msgs, &pubsub.Message{
			Data:       []byte(fmt.Sprintf(`{"reading":%d}`, i)),
			Attributes: map[string]string{messagepipeline.DefaultIDAttribute: fmt.Sprintf("reading-%03d", i)},
		})
	}
	// A blank key fails validation and goes straight to the dead-letter topic.
	msgs = append(msgs, &pubsub.Message{
		Data:       []byte("unkeyed"),
		Attributes: map[string]string{messagepipeline.DefaultIDAttribute: " "},
	})
	for _, m := range msgs {
		_, err := ingestTopic.Publish(ctx, m).Get(ctx)
		require.NoError(t, err)
	}
	ingestTopic.Stop()

	require.Eventually(t, func() bool { return store.Len() == valid }, 30*time.Second, 100*time.Millisecond)

	receiveCtx, stopReceive := context.WithTimeout(ctx, 30*time.Second)
	var dead *pubsub.Message
	err = dlqSub.Receive(receiveCtx, func(_ context.Context, m *pubsub.Message) {
		m.Ack()
		dead = m
		stopReceive()
	})
	stopReceive()
	require.NoError(t, err)
	require.NotNil(t, dead, "expected a dead-lettered message")
	assert.Equal(t, []byte("unkeyed"), dead.Data)
	assert.Contains(t, dead.Attributes[deadletter.AttrReason], "message id is empty")

	service.Stop()

	got, ok := store.Get("reading-007")
	require.True(t, ok)
	assert.Equal(t, `{"reading":7}`, got)
}
