package recordstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cockroachdb/pebble"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// New builds the configured backend. The returned writer owns every client it
// created and closes them on Close. It is built once at process start and shared
// by all batches.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With().Str("backend", string(cfg.Backend)).Str("table_name", cfg.TableName).Logger()

	switch cfg.Backend {
	case BackendDynamoDB:
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.DynamoDB.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.DynamoDB.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				logger.Info().Str("endpoint", cfg.DynamoDB.Endpoint).Msg("Using custom DynamoDB endpoint.")
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		return NewDynamoDBWriter(client, cfg.TableName, logger)

	case BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("firestore.NewClient: %w", err)
		}
		w, err := NewFirestoreWriter(client, cfg.TableName, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &ownedWriter{Writer: w, closers: []func() error{client.Close}}, nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		w, err := NewRedisWriter(client, cfg.TableName, cfg.Redis.TTL, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &ownedWriter{Writer: w, closers: []func() error{client.Close}}, nil

	case BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		w, err := NewPostgresWriter(pool, cfg.TableName, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if cfg.Postgres.EnsureSchema {
			if err := w.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &ownedWriter{Writer: w, closers: []func() error{func() error { pool.Close(); return nil }}}, nil

	case BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage.NewClient: %w", err)
		}
		w, err := NewGCSWriter(NewBucketUploader(client, cfg.TableName), cfg.GCS.ObjectPrefix, logger)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &ownedWriter{Writer: w, closers: []func() error{client.Close}}, nil

	case BackendPebble:
		return OpenPebbleWriter(cfg.Pebble.Path, cfg.TableName, &pebble.Options{}, logger)

	case BackendMemory:
		logger.Warn().Msg("Using in-memory record store; records are not durable.")
		return NewMemoryWriter(logger), nil
	}

	return nil, fmt.Errorf("unhandled store backend %q", cfg.Backend)
}
