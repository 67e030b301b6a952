package ingest

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// ====================================================================================
// This file turns a BatchOutcome into instructions for the upstream queue: which
// messages are acknowledged for good, which must be redelivered, and which are moved
// to the dead-letter path because redelivery could never succeed.
// ====================================================================================

// DeadLetterSink receives messages that must not be redelivered.
type DeadLetterSink interface {
	Send(ctx context.Context, msg types.InboundMessage, cause error) error
}

// Disposition is what should happen to one message after its batch is processed.
type Disposition int

const (
	DispositionAck Disposition = iota
	DispositionRedeliver
	DispositionDeadLetter
)

func (d Disposition) String() string {
	switch d {
	case DispositionAck:
		return "ack"
	case DispositionRedeliver:
		return "redeliver"
	case DispositionDeadLetter:
		return "dead_letter"
	}
	return "unknown"
}

// ToRedeliveryInstruction returns the ids the queue must redeliver: every id
// with a retryable failure, once each, in input order. Succeeded ids are never
// included.
func ToRedeliveryInstruction(outcome *BatchOutcome) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range outcome.Results {
		if r.Succeeded() || !r.Kind.Retryable() {
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

// Settlement holds a disposition for each message of a batch, by index.
type Settlement struct {
	Dispositions []Disposition
	ids          []string
}

// RedeliveryIDs returns the ids to redeliver, once each, in input order.
// Messages without an id cannot be addressed by id and are left out; sources
// that settle per message use Dispositions instead.
func (s Settlement) RedeliveryIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	for i, d := range s.Dispositions {
		id := s.ids[i]
		if d != DispositionRedeliver || id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// UnaddressableRedeliveries counts messages that must be redelivered but carry
// no id. An id-based redelivery instruction cannot name them.
func (s Settlement) UnaddressableRedeliveries() int {
	n := 0
	for i, d := range s.Dispositions {
		if d == DispositionRedeliver && s.ids[i] == "" {
			n++
		}
	}
	return n
}

// Reporter settles batch outcomes. Without a sink, non-retryable failures are
// redelivered so that the queue's own redrive policy can dead-letter them.
type Reporter struct {
	sink   DeadLetterSink
	logger zerolog.Logger
}

// NewReporter creates a Reporter. sink may be nil.
func NewReporter(sink DeadLetterSink, logger zerolog.Logger) *Reporter {
	return &Reporter{
		sink:   sink,
		logger: logger.With().Str("component", "BatchReporter").Logger(),
	}
}

// Settle decides a disposition for every message in msgs, which must be the
// batch outcome was produced from. Non-retryable failures are sent to the
// dead-letter sink; if that send fails they fall back to redelivery, so no
// message is ever dropped.
func (r *Reporter) Settle(ctx context.Context, msgs []types.InboundMessage, outcome *BatchOutcome) Settlement {
	s := Settlement{
		Dispositions: make([]Disposition, len(outcome.Results)),
		ids:          make([]string, len(outcome.Results)),
	}
	for i, res := range outcome.Results {
		s.ids[i] = res.MessageID
		switch {
		case res.Succeeded():
			s.Dispositions[i] = DispositionAck
		case res.Kind.Retryable() || r.sink == nil:
			s.Dispositions[i] = DispositionRedeliver
		default:
			s.Dispositions[i] = r.deadLetter(ctx, msgs, res)
		}
	}
	return s
}

func (r *Reporter) deadLetter(ctx context.Context, msgs []types.InboundMessage, res ItemResult) Disposition {
	if res.Index < 0 || res.Index >= len(msgs) {
		r.logger.Error().Int("index", res.Index).Msg("Result index outside batch, redelivering.")
		return DispositionRedeliver
	}
	if err := r.sink.Send(ctx, msgs[res.Index], res.Err); err != nil {
		r.logger.Error().Err(err).Str("msg_id", res.MessageID).Msg("Dead-letter send failed, redelivering instead.")
		return DispositionRedeliver
	}
	r.logger.Warn().Str("msg_id", res.MessageID).Str("failure_kind", res.Kind.String()).Msg("Message dead-lettered.")
	return DispositionDeadLetter
}

// StatusResponse is the coarse invocation result: 200 when every message was
// written, 500 otherwise.
type StatusResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// StatusFor summarises outcome as a StatusResponse.
func StatusFor(outcome *BatchOutcome) StatusResponse {
	if outcome.AllSucceeded() {
		return StatusResponse{
			StatusCode: 200,
			Body:       fmt.Sprintf("%d messages inserted successfully.", outcome.Len()),
		}
	}
	return StatusResponse{
		StatusCode: 500,
		Body:       fmt.Sprintf("%d of %d messages could not be inserted.", outcome.FailureCount(), outcome.Len()),
	}
}
