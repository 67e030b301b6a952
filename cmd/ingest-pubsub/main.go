package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/config"
	"github.com/illmade-knight/go-queueingest/pkg/messagepipeline"
	"github.com/illmade-knight/go-queueingest/pkg/service"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment from .env")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.ValidatePubSub(); err != nil {
		log.Fatal().Err(err).Msg("Invalid Pub/Sub configuration")
	}
	logger := cfg.Logger().With().Str("service", "ingest-pubsub").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Service exited with error")
	}
	logger.Info().Msg("Service stopped.")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	components, err := service.Build(ctx, cfg, logger, service.Options{Registerer: reg})
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing ingestion components")
		}
	}()
	if err := components.Check(ctx); err != nil {
		return err
	}

	consumer, err := messagepipeline.NewGooglePubsubConsumer(ctx, &cfg.PubSub.Consumer, nil, logger)
	if err != nil {
		return err
	}
	ingester, err := messagepipeline.NewBatchIngester(cfg.PubSub.Batch, components.Handler, components.Reporter, logger)
	if err != nil {
		return err
	}
	var transformer messagepipeline.MessageTransformer
	if cfg.PubSub.IDAttribute != "" {
		transformer = messagepipeline.IDFromAttribute(cfg.PubSub.IDAttribute)
	}
	pipeline, err := messagepipeline.NewProcessingService(cfg.PubSub.NumWorkers, consumer, ingester, transformer, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           service.NewRouter(reg, components.Check),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics and health checks.")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := pipeline.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received, draining pipeline...")
		pipeline.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
