package sqsingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/illmade-knight/go-queueingest/pkg/ingest"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// ResponseMode selects how a batch result is reported back to Lambda.
type ResponseMode string

const (
	// ResponsePartial reports a partial batch response so that only failed
	// messages are redelivered. The event source mapping must enable
	// ReportBatchItemFailures.
	ResponsePartial ResponseMode = "partial"
	// ResponseStatus reports a status code and body. Any failure also returns
	// an error so the whole batch is redelivered.
	ResponseStatus ResponseMode = "status"
)

// ErrBatchIncomplete is returned when a batch was not fully written and the
// whole batch must be redelivered.
var ErrBatchIncomplete = errors.New("batch not fully persisted")

// Handler adapts SQS invocations to the ingest handler.
type Handler struct {
	ingest   *ingest.Handler
	reporter *ingest.Reporter
	logger   zerolog.Logger
}

// NewHandler creates a Handler. reporter settles failures; a Reporter with a nil
// sink leaves every failure to the queue's redrive policy.
func NewHandler(h *ingest.Handler, reporter *ingest.Reporter, logger zerolog.Logger) (*Handler, error) {
	if h == nil {
		return nil, errors.New("ingest handler cannot be nil")
	}
	if reporter == nil {
		reporter = ingest.NewReporter(nil, logger)
	}
	return &Handler{
		ingest:   h,
		reporter: reporter,
		logger:   logger.With().Str("component", "SQSHandler").Logger(),
	}, nil
}

// HandlePartial processes ev and returns the ids SQS must redeliver. A message
// that needs redelivery but has no id cannot be listed, so the invocation fails
// and SQS redelivers the whole batch.
func (h *Handler) HandlePartial(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	msgs := FromSQSEvent(ev)
	outcome := h.ingest.ProcessBatch(ctx, msgs)
	settlement := h.settle(ctx, msgs, outcome)

	if n := settlement.UnaddressableRedeliveries(); n > 0 {
		h.logger.Error().Int("without_id", n).Int("batch_size", len(msgs)).Msg("Failed messages have no id, failing the whole batch.")
		return events.SQSEventResponse{}, fmt.Errorf("%w: %d failed messages have no id", ErrBatchIncomplete, n)
	}

	resp := events.SQSEventResponse{BatchItemFailures: []events.SQSBatchItemFailure{}}
	for _, id := range settlement.RedeliveryIDs() {
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	if len(resp.BatchItemFailures) > 0 {
		h.logger.Warn().Int("redeliver", len(resp.BatchItemFailures)).Int("batch_size", len(msgs)).Msg("Reporting partial batch failure.")
	}
	return resp, nil
}

// HandleStatus processes ev and returns a coarse status. When any message still
// needs redelivery the error is non-nil, so the invocation is not treated as a
// success.
func (h *Handler) HandleStatus(ctx context.Context, ev events.SQSEvent) (ingest.StatusResponse, error) {
	msgs := FromSQSEvent(ev)
	outcome := h.ingest.ProcessBatch(ctx, msgs)
	settlement := h.settle(ctx, msgs, outcome)

	status := ingest.StatusFor(outcome)
	for _, d := range settlement.Dispositions {
		if d == ingest.DispositionRedeliver {
			return status, fmt.Errorf("%w: %s", ErrBatchIncomplete, status.Body)
		}
	}
	return status, nil
}

// settle runs within the invocation's reserved deadline margin.
func (h *Handler) settle(ctx context.Context, msgs []types.InboundMessage, outcome *ingest.BatchOutcome) ingest.Settlement {
	settleCtx, cancel := h.ingest.SettleContext(ctx)
	defer cancel()
	return h.reporter.Settle(settleCtx, msgs, outcome)
}

// Invoke returns the handler function for mode, ready for lambda.Start.
func (h *Handler) Invoke(mode ResponseMode) (any, error) {
	switch mode {
	case ResponsePartial, "":
		return h.HandlePartial, nil
	case ResponseStatus:
		return h.HandleStatus, nil
	}
	return nil, fmt.Errorf("unknown response mode %q", mode)
}
