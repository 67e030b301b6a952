package messagepipeline

import (
	"context"

	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// ====================================================================================
// This file defines the interfaces of the long-running consumer pipeline: a source
// of inbound messages, a processor that persists them, and an optional transformation
// step in between.
// ====================================================================================

// MessageProcessor receives inbound messages and is responsible for acking or
// nacking every one of them. BatchIngester is the production implementation.
type MessageProcessor interface {
	// Input returns a write-only channel for handing messages to the processor.
	Input() chan<- types.InboundMessage
	// Start begins the processor's operations.
	Start()
	// Stop gracefully shuts down the processor, settling any buffered messages.
	Stop()
}

// MessageConsumer defines the interface for a message source (e.g., Pub/Sub).
type MessageConsumer interface {
	// Messages returns a read-only channel from which messages can be consumed.
	Messages() <-chan types.InboundMessage
	// Start initiates the consumption of messages.
	Start(ctx context.Context) error
	// Stop gracefully ceases message consumption.
	Stop() error
	// Done returns a channel that is closed when the consumer has fully stopped.
	Done() <-chan struct{}
}

// MessageTransformer rewrites a message before it is handed to the processor.
// It returns the message to forward, whether it should be skipped (acked
// without being persisted), and an error if the message cannot be handled.
type MessageTransformer func(msg types.InboundMessage) (out types.InboundMessage, skip bool, err error)
