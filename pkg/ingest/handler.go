package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ====================================================================================
// This file contains the ingestion handler: it turns a batch of inbound messages into
// records and upserts each one, capturing a per-message result instead of stopping at
// the first failure.
// ====================================================================================

// RecordWriter is the store write path the handler depends on.
// Implementations must be safe for concurrent use.
type RecordWriter interface {
	Put(ctx context.Context, key, content string) error
}

// HandlerConfig tunes how a batch is written.
type HandlerConfig struct {
	// Concurrency is the number of ids written in parallel. Values <= 1 write
	// the batch sequentially in input order.
	Concurrency int `yaml:"concurrency"`
	// WriteTimeout bounds each individual write. Zero relies on the batch context.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// DeadlineMargin is reserved before the batch context's deadline so that a
	// result can still be reported after writing stops.
	DeadlineMargin time.Duration `yaml:"deadline_margin"`
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithMetrics records batch and message counts on m.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler processes batches. It holds no per-batch state, so one Handler serves
// any number of concurrent ProcessBatch calls.
type Handler struct {
	writer  RecordWriter
	cfg     HandlerConfig
	metrics *Metrics
	logger  zerolog.Logger
}

// NewHandler creates a Handler writing through writer.
func NewHandler(writer RecordWriter, cfg HandlerConfig, logger zerolog.Logger, opts ...Option) (*Handler, error) {
	if writer == nil {
		return nil, errors.New("record writer cannot be nil")
	}
	if cfg.WriteTimeout < 0 || cfg.DeadlineMargin < 0 {
		return nil, fmt.Errorf("%w: handler timeouts cannot be negative", types.ErrConfiguration)
	}
	h := &Handler{
		writer: writer,
		cfg:    cfg,
		logger: logger.With().Str("component", "IngestHandler").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ProcessBatch writes every message in msgs and reports one result per message.
// A failed write never prevents the next one from being attempted. Once ctx is
// done, the remaining messages are reported as transient failures without a write.
func (h *Handler) ProcessBatch(ctx context.Context, msgs []types.InboundMessage) *BatchOutcome {
	outcome := &BatchOutcome{Results: make([]ItemResult, len(msgs))}
	if len(msgs) == 0 {
		return outcome
	}

	start := time.Now()
	batchCtx, cancel := h.batchContext(ctx)
	defer cancel()

	h.logger.Info().Int("batch_size", len(msgs)).Int("concurrency", h.cfg.Concurrency).Msg("Batch received.")

	if h.cfg.Concurrency <= 1 {
		for i := range msgs {
			outcome.Results[i] = h.processOne(batchCtx, i, msgs[i])
		}
	} else {
		h.processGrouped(batchCtx, msgs, outcome.Results)
	}

	elapsed := time.Since(start)
	h.metrics.observe(outcome, elapsed)

	event := h.logger.Info()
	if !outcome.AllSucceeded() {
		event = h.logger.Warn()
	}
	event.Int("batch_size", outcome.Len()).
		Int("succeeded", outcome.SuccessCount()).
		Int("failed", outcome.FailureCount()).
		Dur("elapsed", elapsed).
		Msg("Batch processed.")
	return outcome
}

func (h *Handler) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && h.cfg.DeadlineMargin > 0 {
		return context.WithDeadline(ctx, deadline.Add(-h.cfg.DeadlineMargin))
	}
	return context.WithCancel(ctx)
}

// SettleContext bounds settling a processed batch to the reserved deadline
// margin. It ends halfway through the margin so the result can still be
// returned before ctx's deadline.
func (h *Handler) SettleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && h.cfg.DeadlineMargin > 0 {
		return context.WithDeadline(ctx, deadline.Add(-h.cfg.DeadlineMargin/2))
	}
	return context.WithCancel(ctx)
}

// processGrouped writes distinct ids in parallel. All deliveries of one id are
// written by the same goroutine in input order, so the later body still wins.
func (h *Handler) processGrouped(ctx context.Context, msgs []types.InboundMessage, results []ItemResult) {
	order := make([]string, 0, len(msgs))
	groups := make(map[string][]int, len(msgs))
	for i, m := range msgs {
		if _, ok := groups[m.ID]; !ok {
			order = append(order, m.ID)
		}
		groups[m.ID] = append(groups[m.ID], i)
	}

	var g errgroup.Group
	g.SetLimit(h.cfg.Concurrency)
	for _, id := range order {
		indices := groups[id]
		g.Go(func() error {
			for _, i := range indices {
				results[i] = h.processOne(ctx, i, msgs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (h *Handler) processOne(ctx context.Context, index int, msg types.InboundMessage) ItemResult {
	result := ItemResult{Index: index, MessageID: msg.ID}

	record, err := types.NewPersistedRecord(msg)
	if err != nil {
		result.Kind, result.Err = KindValidation, err
		h.logger.Warn().Err(err).Int("index", index).Msg("Message failed validation.")
		return result
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.Kind = KindTransient
		result.Err = fmt.Errorf("%w: write not attempted: %w", types.ErrTransientStore, ctxErr)
		h.logger.Warn().Str("msg_id", msg.ID).Msg("Batch deadline reached, message left for redelivery.")
		return result
	}

	writeCtx := ctx
	if h.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, h.cfg.WriteTimeout)
		defer cancel()
	}

	if err := h.writer.Put(writeCtx, record.Key, record.Content); err != nil {
		result.Kind = classify(err)
		if result.Kind == KindTransient && !errors.Is(err, types.ErrTransientStore) {
			err = fmt.Errorf("%w: %w", types.ErrTransientStore, err)
		}
		result.Err = err
		h.logger.Error().Err(err).Str("msg_id", msg.ID).Str("failure_kind", result.Kind.String()).Msg("Failed to persist message.")
		return result
	}

	h.logger.Debug().Str("msg_id", msg.ID).Int("content_bytes", len(record.Content)).Msg("Message persisted.")
	return result
}
