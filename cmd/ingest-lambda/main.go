package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/illmade-knight/go-queueingest/pkg/config"
	"github.com/illmade-knight/go-queueingest/pkg/service"
	"github.com/illmade-knight/go-queueingest/pkg/sqsingest"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// A .env file is only present for local runs.
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment from .env")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	logger := cfg.Logger().With().Str("service", "ingest-lambda").Logger()

	// The store client is built once per container and shared by every invocation.
	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	components, err := service.Build(initCtx, cfg, logger, service.Options{})
	if err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("Failed to build ingestion components")
	}
	if cfg.Lambda.VerifyStore {
		if err := components.Check(initCtx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("Record store health check failed")
		}
		logger.Info().Msg("Record store reachable.")
	}
	cancel()

	handler, err := sqsingest.NewHandler(components.Handler, components.Reporter, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create SQS handler")
	}
	fn, err := handler.Invoke(cfg.Lambda.ResponseMode)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to select response mode")
	}

	logger.Info().
		Str("response_mode", string(cfg.Lambda.ResponseMode)).
		Str("table_name", cfg.Store.TableName).
		Msg("Starting Lambda handler.")
	lambda.Start(fn)
}
