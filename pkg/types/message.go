package types

import (
	"time"
)

// InboundMessage is a single delivery taken off the upstream queue.
// The system never owns or mutates it; it only reads ID and Body.
type InboundMessage struct {
	// ID is the unique identifier for the delivery, assigned by the source broker.
	ID string
	// Body is the raw, unvalidated payload.
	Body []byte
	// PublishTime is the timestamp when the message was originally enqueued.
	PublishTime time.Time
	// Attributes carries broker-specific metadata (SQS attributes, Pub/Sub attributes).
	Attributes map[string]string
	// Ack is a function to call to acknowledge that the message has been
	// durably persisted. It is nil for sources that settle a batch as a whole (SQS).
	Ack func()
	// Nack is a function to call to signal that the message should be redelivered.
	Nack func()
}
