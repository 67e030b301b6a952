package messagepipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/ingest"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// ====================================================================================
// This file contains the BatchIngester, the MessageProcessor that groups consumed
// messages into bounded batches, persists them through the ingest Handler and then
// acks or nacks each message according to its own outcome.
// ====================================================================================

// BatchIngesterConfig holds configuration for the BatchIngester.
type BatchIngesterConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	// FlushDeadline bounds the time one batch may spend writing. Messages not
	// written by then are nacked.
	FlushDeadline time.Duration `yaml:"flush_deadline"`
}

// BatchIngester batches messages and settles each one individually.
type BatchIngester struct {
	config    BatchIngesterConfig
	handler   *ingest.Handler
	reporter  *ingest.Reporter
	logger    zerolog.Logger
	inputChan chan types.InboundMessage
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewBatchIngester creates a BatchIngester.
func NewBatchIngester(cfg BatchIngesterConfig, handler *ingest.Handler, reporter *ingest.Reporter, logger zerolog.Logger) (*BatchIngester, error) {
	if handler == nil {
		return nil, errors.New("ingest handler cannot be nil")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = time.Second
	}
	if cfg.FlushDeadline <= 0 {
		cfg.FlushDeadline = 30 * time.Second
	}
	if reporter == nil {
		reporter = ingest.NewReporter(nil, logger)
	}
	return &BatchIngester{
		config:    cfg,
		handler:   handler,
		reporter:  reporter,
		logger:    logger.With().Str("component", "BatchIngester").Logger(),
		inputChan: make(chan types.InboundMessage, cfg.BatchSize*2),
	}, nil
}

// Start begins the batching worker.
func (b *BatchIngester) Start() {
	b.logger.Info().
		Int("batch_size", b.config.BatchSize).
		Dur("flush_timeout", b.config.FlushTimeout).
		Msg("Starting BatchIngester worker...")
	b.wg.Add(1)
	go b.worker()
}

// Stop closes the input, flushes whatever is buffered and waits for the worker.
// No message may be sent to Input after Stop is called.
func (b *BatchIngester) Stop() {
	b.stopOnce.Do(func() {
		b.logger.Info().Msg("Stopping BatchIngester...")
		close(b.inputChan)
		b.wg.Wait()
		b.logger.Info().Msg("BatchIngester stopped.")
	})
}

// Input returns the channel to which messages should be sent.
func (b *BatchIngester) Input() chan<- types.InboundMessage {
	return b.inputChan
}

func (b *BatchIngester) worker() {
	defer b.wg.Done()
	batch := make([]types.InboundMessage, 0, b.config.BatchSize)
	ticker := time.NewTicker(b.config.FlushTimeout)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-b.inputChan:
			if !ok {
				b.flush(batch)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= b.config.BatchSize {
				b.flush(batch)
				batch = make([]types.InboundMessage, 0, b.config.BatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = make([]types.InboundMessage, 0, b.config.BatchSize)
			}
		}
	}
}

// flush persists batch and acks or nacks every message by its disposition.
// Dead-lettered messages are acked since they now live on the dead-letter path.
func (b *BatchIngester) flush(batch []types.InboundMessage) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.config.FlushDeadline)
	defer cancel()

	outcome := b.handler.ProcessBatch(ctx, batch)
	settlement := b.reporter.Settle(ctx, batch, outcome)

	acked, nacked := 0, 0
	for i, d := range settlement.Dispositions {
		msg := batch[i]
		switch d {
		case ingest.DispositionAck, ingest.DispositionDeadLetter:
			if msg.Ack != nil {
				msg.Ack()
			}
			acked++
		default:
			if msg.Nack != nil {
				msg.Nack()
			}
			nacked++
		}
	}
	b.logger.Info().Int("batch_size", len(batch)).Int("acked", acked).Int("nacked", nacked).Msg("Flushed batch.")
}
