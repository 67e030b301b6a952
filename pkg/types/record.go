package types

import (
	"fmt"
	"strings"
)

// PersistedRecord is the durable form of an InboundMessage.
// Key is the message ID and Content is the body, untouched.
type PersistedRecord struct {
	Key     string
	Content string
}

// NewPersistedRecord derives the record for msg. A blank ID is a validation
// failure: the message cannot be keyed and must not reach the store.
func NewPersistedRecord(msg InboundMessage) (PersistedRecord, error) {
	if strings.TrimSpace(msg.ID) == "" {
		return PersistedRecord{}, fmt.Errorf("%w: message id is empty", ErrValidation)
	}
	return PersistedRecord{
		Key:     msg.ID,
		Content: string(msg.Body),
	}, nil
}
