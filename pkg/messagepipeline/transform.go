package messagepipeline

import (
	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// DefaultIDAttribute is the attribute publishers use to carry their own
// idempotency key.
const DefaultIDAttribute = "message_id"

// IDFromAttribute keys messages by a publisher-supplied attribute instead of the
// broker-assigned id. Pub/Sub assigns a new id every time a message is
// published, so a publisher that retries a publish needs its own key for the
// write to stay idempotent. Messages without the attribute keep their broker id.
func IDFromAttribute(name string) MessageTransformer {
	return func(msg types.InboundMessage) (types.InboundMessage, bool, error) {
		if id := msg.Attributes[name]; id != "" {
			msg.ID = id
		}
		return msg, false, nil
	}
}
