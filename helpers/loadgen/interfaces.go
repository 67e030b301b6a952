package loadgen

import (
	"context"
)

// PayloadGenerator produces the body of the next message for a source.
type PayloadGenerator interface {
	GeneratePayload(source *Source) ([]byte, error)
}

// Client publishes generated messages to a queue.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	// Publish generates a payload for source and sends it. The boolean reports
	// whether the broker accepted the message.
	Publish(ctx context.Context, source *Source) (bool, error)
}
