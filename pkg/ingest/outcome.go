package ingest

import (
	"errors"

	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// FailureKind classifies why a message was not persisted.
type FailureKind int

const (
	// KindNone means the record was written.
	KindNone FailureKind = iota
	// KindTransient covers throttling, timeouts and writes never attempted
	// because the batch ran out of time. Safe to redeliver.
	KindTransient
	// KindValidation means the message cannot be keyed (missing id).
	KindValidation
	// KindRejected means the store refused the record itself.
	KindRejected
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "succeeded"
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindRejected:
		return "rejected"
	}
	return "unknown"
}

// Retryable reports whether redelivering the message could succeed.
func (k FailureKind) Retryable() bool {
	return k == KindTransient
}

func classify(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, types.ErrValidation):
		return KindValidation
	case errors.Is(err, types.ErrRecordRejected):
		return KindRejected
	default:
		return KindTransient
	}
}

// ItemResult is the outcome for one message, at its position in the batch.
type ItemResult struct {
	Index     int
	MessageID string
	Kind      FailureKind
	Err       error
}

// Succeeded reports whether the record was durably written.
func (r ItemResult) Succeeded() bool {
	return r.Kind == KindNone && r.Err == nil
}

// BatchOutcome holds one result per input message, in input order.
// It is built fresh for each batch and never persisted.
type BatchOutcome struct {
	Results []ItemResult
}

// Len is the number of messages accounted for.
func (o *BatchOutcome) Len() int {
	return len(o.Results)
}

// AllSucceeded reports whether every message was written.
func (o *BatchOutcome) AllSucceeded() bool {
	for _, r := range o.Results {
		if !r.Succeeded() {
			return false
		}
	}
	return true
}

// SuccessCount is the number of messages written.
func (o *BatchOutcome) SuccessCount() int {
	n := 0
	for _, r := range o.Results {
		if r.Succeeded() {
			n++
		}
	}
	return n
}

// FailureCount is the number of messages not written.
func (o *BatchOutcome) FailureCount() int {
	return len(o.Results) - o.SuccessCount()
}

// Succeeded returns the ids written successfully, in first-seen order.
// An id with any failed delivery in the batch is reported only as failed.
func (o *BatchOutcome) Succeeded() []string {
	failed := o.Failed()
	seen := make(map[string]struct{}, len(o.Results))
	ids := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		if !r.Succeeded() {
			continue
		}
		if _, bad := failed[r.MessageID]; bad {
			continue
		}
		if _, dup := seen[r.MessageID]; dup {
			continue
		}
		seen[r.MessageID] = struct{}{}
		ids = append(ids, r.MessageID)
	}
	return ids
}

// Failed maps each failed id to the reason it was not written. Multiple
// failures for a duplicated id are joined.
func (o *BatchOutcome) Failed() map[string]error {
	failed := make(map[string]error)
	for _, r := range o.Results {
		if r.Succeeded() {
			continue
		}
		failed[r.MessageID] = errors.Join(failed[r.MessageID], r.Err)
	}
	return failed
}
