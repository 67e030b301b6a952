package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// ====================================================================================
// This file defines the store write contract shared by every backend and the
// configuration used to select one. Every backend upserts by key: writing the same
// key twice leaves the last content in place.
// ====================================================================================

// Writer is the durable key-value write path. Put must be safe for concurrent use.
type Writer interface {
	// Put creates or overwrites the record stored under key.
	Put(ctx context.Context, key, content string) error
	// Close releases any resources owned by the writer.
	Close() error
}

// HealthChecker is implemented by writers that can verify their backing store
// is reachable and the configured table exists.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// ErrNoHealthCheck is returned by wrappers whose underlying writer cannot be checked.
var ErrNoHealthCheck = errors.New("writer has no health check")

// Backend names a store implementation.
type Backend string

const (
	BackendDynamoDB  Backend = "dynamodb"
	BackendFirestore Backend = "firestore"
	BackendRedis     Backend = "redis"
	BackendPostgres  Backend = "postgres"
	BackendGCS       Backend = "gcs"
	BackendPebble    Backend = "pebble"
	BackendMemory    Backend = "memory"
)

// Config selects and configures a backend. TableName is the store's logical
// name: a DynamoDB table, a Firestore collection, a Redis key prefix, a Postgres
// table, a GCS bucket or a Pebble key prefix.
type Config struct {
	Backend   Backend         `yaml:"backend"`
	TableName string          `yaml:"table_name"`
	DynamoDB  DynamoDBConfig  `yaml:"dynamodb"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	GCS       GCSConfig       `yaml:"gcs"`
	Pebble    PebbleConfig    `yaml:"pebble"`
}

// DynamoDBConfig holds the AWS settings for the DynamoDB backend.
type DynamoDBConfig struct {
	Region string `yaml:"region"`
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string `yaml:"endpoint"`
}

// FirestoreConfig holds the GCP settings for the Firestore backend.
type FirestoreConfig struct {
	ProjectID string `yaml:"project_id"`
}

// RedisConfig holds configuration for the Redis client.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`     // e.g., "localhost:6379"
	Password string        `yaml:"password"` // Leave empty if no password
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // Zero keeps records forever
}

// PostgresConfig holds the connection settings for the Postgres backend.
type PostgresConfig struct {
	URL          string `yaml:"url"`
	EnsureSchema bool   `yaml:"ensure_schema"`
}

// GCSConfig holds settings for the Cloud Storage backend.
type GCSConfig struct {
	ObjectPrefix string `yaml:"object_prefix"`
}

// PebbleConfig holds settings for the embedded Pebble backend.
type PebbleConfig struct {
	Path string `yaml:"path"`
}

// Validate reports configuration problems before any client is built.
func (c Config) Validate() error {
	if c.TableName == "" {
		return fmt.Errorf("%w: store table name is empty", types.ErrConfiguration)
	}
	switch c.Backend {
	case BackendDynamoDB, BackendFirestore, BackendGCS, BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis backend requires an address", types.ErrConfiguration)
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres backend requires a connection url", types.ErrConfiguration)
		}
		if !validPostgresIdentifier(c.TableName) {
			return fmt.Errorf("%w: %q is not a valid postgres table name", types.ErrConfiguration, c.TableName)
		}
	case BackendPebble:
		if c.Pebble.Path == "" {
			return fmt.Errorf("%w: pebble backend requires a path", types.ErrConfiguration)
		}
	case "":
		return fmt.Errorf("%w: store backend is empty", types.ErrConfiguration)
	default:
		return fmt.Errorf("%w: unknown store backend %q", types.ErrConfiguration, c.Backend)
	}
	return nil
}

// ownedWriter closes the clients the factory created on behalf of a writer.
// Writers built directly from injected clients never close them.
type ownedWriter struct {
	Writer
	closers []func() error
}

func (o *ownedWriter) Close() error {
	errs := []error{o.Writer.Close()}
	for _, c := range o.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Check forwards to the wrapped writer's health check.
func (o *ownedWriter) Check(ctx context.Context) error {
	if hc, ok := o.Writer.(HealthChecker); ok {
		return hc.Check(ctx)
	}
	return ErrNoHealthCheck
}
