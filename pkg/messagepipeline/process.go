package messagepipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// ====================================================================================
// This file contains the service that pumps messages from a MessageConsumer through
// an optional MessageTransformer into a MessageProcessor.
// ====================================================================================

// ProcessingService orchestrates consuming, transforming and processing messages.
type ProcessingService struct {
	numWorkers   int
	consumer     MessageConsumer
	processor    MessageProcessor
	transformer  MessageTransformer
	logger       zerolog.Logger
	wg           sync.WaitGroup
	shutdownFunc context.CancelFunc
	stopOnce     sync.Once
}

// NewProcessingService creates a ProcessingService. transformer may be nil, in
// which case messages are forwarded unchanged.
func NewProcessingService(
	numWorkers int,
	consumer MessageConsumer,
	processor MessageProcessor,
	transformer MessageTransformer,
	logger zerolog.Logger,
) (*ProcessingService, error) {
	if consumer == nil {
		return nil, errors.New("message consumer cannot be nil")
	}
	if processor == nil {
		return nil, errors.New("message processor cannot be nil")
	}
	if numWorkers <= 0 {
		numWorkers = 5
	}
	return &ProcessingService{
		numWorkers:  numWorkers,
		consumer:    consumer,
		processor:   processor,
		transformer: transformer,
		logger:      logger.With().Str("service", "ProcessingService").Logger(),
	}, nil
}

// Start starts the processor, then the consumer, then the worker pool.
func (s *ProcessingService) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting ProcessingService...")

	shutdownCtx, shutdownFunc := context.WithCancel(ctx)
	s.shutdownFunc = shutdownFunc

	s.processor.Start()

	if err := s.consumer.Start(shutdownCtx); err != nil {
		shutdownFunc()
		s.processor.Stop()
		return fmt.Errorf("failed to start message consumer: %w", err)
	}
	s.logger.Info().Msg("Message consumer started.")

	s.logger.Info().Int("worker_count", s.numWorkers).Msg("Starting processing workers...")
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return nil
}

// worker forwards messages until the consumer closes its channel, so nothing
// the consumer handed over is left unsettled.
func (s *ProcessingService) worker(workerID int) {
	defer s.wg.Done()
	s.logger.Debug().Int("worker_id", workerID).Msg("Processing worker started.")

	for msg := range s.consumer.Messages() {
		s.processMessage(msg, workerID)
	}
	s.logger.Debug().Int("worker_id", workerID).Msg("Consumer channel closed, worker exiting.")
}

func (s *ProcessingService) processMessage(msg types.InboundMessage, workerID int) {
	if s.transformer != nil {
		out, skip, err := s.transformer(msg)
		if err != nil {
			s.logger.Error().Err(err).Str("msg_id", msg.ID).Msg("Failed to transform message, Nacking.")
			if msg.Nack != nil {
				msg.Nack()
			}
			return
		}
		if skip {
			s.logger.Debug().Str("msg_id", msg.ID).Msg("Transformer signaled to skip message, Acking.")
			if msg.Ack != nil {
				msg.Ack()
			}
			return
		}
		msg = out
	}

	s.processor.Input() <- msg
	s.logger.Debug().Int("worker_id", workerID).Str("msg_id", msg.ID).Msg("Message sent to processor.")
}

// Stop shuts down in order: consumer, then workers, then the processor, which
// settles anything still buffered.
func (s *ProcessingService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info().Msg("Stopping ProcessingService...")
		if s.shutdownFunc != nil {
			s.shutdownFunc()
		}

		if err := s.consumer.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("Error stopping message consumer.")
		}
		<-s.consumer.Done()
		s.logger.Info().Msg("Message consumer stopped.")

		s.wg.Wait()
		s.logger.Info().Msg("All processing workers completed.")

		s.processor.Stop()
		s.logger.Info().Msg("ProcessingService stopped gracefully.")
	})
}
