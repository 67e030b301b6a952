package service

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/illmade-knight/go-queueingest/pkg/config"
	"github.com/illmade-knight/go-queueingest/pkg/deadletter"
	"github.com/illmade-knight/go-queueingest/pkg/ingest"
	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// ====================================================================================
// This file wires configuration into the shared ingestion components. Every entry
// point builds these once at start-up and reuses them for every batch.
// ====================================================================================

// Options carries dependencies that are injected rather than configured.
type Options struct {
	// Registerer receives the ingest metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// PubSubOptions are passed to the dead-letter Pub/Sub client.
	PubSubOptions []option.ClientOption
}

// Components are the long-lived pieces shared by all batches.
type Components struct {
	Writer   recordstore.Writer
	Handler  *ingest.Handler
	Reporter *ingest.Reporter
	closers  []func() error
	logger   zerolog.Logger
}

// Build creates the store writer, ingest handler and reporter described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Components, error) {
	c := &Components{logger: logger.With().Str("component", "Components").Logger()}

	writer, err := recordstore.New(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store: %w", err)
	}
	c.Writer = writer
	c.closers = append(c.closers, writer.Close)

	var handlerOpts []ingest.Option
	if opts.Registerer != nil {
		metrics, err := ingest.NewMetrics(opts.Registerer)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		handlerOpts = append(handlerOpts, ingest.WithMetrics(metrics))
	}

	c.Handler, err = ingest.NewHandler(writer, cfg.Ingest, logger, handlerOpts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	sink, err := c.deadLetterSink(ctx, cfg, logger, opts)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Reporter = ingest.NewReporter(sink, logger)

	logger.Info().
		Str("backend", string(cfg.Store.Backend)).
		Str("table_name", cfg.Store.TableName).
		Int("concurrency", cfg.Ingest.Concurrency).
		Bool("dead_letter_sink", sink != nil).
		Msg("Ingestion components ready.")
	return c, nil
}

func (c *Components) deadLetterSink(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (ingest.DeadLetterSink, error) {
	switch {
	case cfg.DeadLetter.TopicID != "":
		client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts.PubSubOptions...)
		if err != nil {
			return nil, fmt.Errorf("pubsub.NewClient for dead-letter topic: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		sink, err := deadletter.NewPubSubSink(ctx, client, cfg.DeadLetter.PubSubSinkConfig, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { sink.Stop(); return nil })
		return sink, nil
	case cfg.DeadLetter.LogOnly:
		return deadletter.NewLogSink(logger), nil
	}
	return nil, nil
}

// Check runs the store health check. A writer that cannot be checked is
// logged and treated as healthy.
func (c *Components) Check(ctx context.Context) error {
	hc, ok := c.Writer.(recordstore.HealthChecker)
	if !ok {
		c.logger.Warn().Str("writer", fmt.Sprintf("%T", c.Writer)).Msg("Store writer has no health check, none was run.")
		return nil
	}
	err := hc.Check(ctx)
	if errors.Is(err, recordstore.ErrNoHealthCheck) {
		c.logger.Warn().Str("writer", fmt.Sprintf("%T", c.Writer)).Msg("Store writer has no health check, none was run.")
		return nil
	}
	return err
}

// Close releases everything Build created, newest first.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
