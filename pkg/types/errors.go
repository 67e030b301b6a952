package types

import "errors"

// These sentinels classify every failure the ingestion path can report.
// Callers wrap them with fmt.Errorf and test with errors.Is.
var (
	// ErrValidation marks a message that can never be persisted as delivered
	// (missing id). It is not retryable.
	ErrValidation = errors.New("message validation failed")

	// ErrTransientStore marks a store write that may succeed on redelivery:
	// throttling, timeouts, connection loss, or a write never attempted
	// because the batch ran out of time.
	ErrTransientStore = errors.New("transient store failure")

	// ErrRecordRejected marks a write the store refused outright, such as a key
	// it cannot represent. Redelivering the same record would fail again.
	ErrRecordRejected = errors.New("record rejected by store")

	// ErrConfiguration marks a startup configuration problem. It is fatal.
	ErrConfiguration = errors.New("invalid configuration")
)
