package sqsingest

import (
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// FromSQSEvent converts the records of an SQS event into inbound messages, in
// delivery order. System attributes are copied as-is; string message attributes
// are added under their own names unless they collide with a system attribute.
// SQS acknowledgement is driven by the invocation response, so Ack and Nack are
// left nil.
func FromSQSEvent(ev events.SQSEvent) []types.InboundMessage {
	msgs := make([]types.InboundMessage, 0, len(ev.Records))
	for _, rec := range ev.Records {
		attrs := make(map[string]string, len(rec.Attributes)+len(rec.MessageAttributes))
		for k, v := range rec.Attributes {
			attrs[k] = v
		}
		for k, v := range rec.MessageAttributes {
			if v.StringValue == nil {
				continue
			}
			if _, exists := attrs[k]; !exists {
				attrs[k] = *v.StringValue
			}
		}

		msgs = append(msgs, types.InboundMessage{
			ID:          rec.MessageId,
			Body:        []byte(rec.Body),
			PublishTime: sentTimestamp(rec.Attributes),
			Attributes:  attrs,
		})
	}
	return msgs
}

// sentTimestamp parses the SentTimestamp system attribute (epoch milliseconds).
func sentTimestamp(attrs map[string]string) time.Time {
	raw, ok := attrs["SentTimestamp"]
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
