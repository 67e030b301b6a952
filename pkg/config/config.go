package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/deadletter"
	"github.com/illmade-knight/go-queueingest/pkg/ingest"
	"github.com/illmade-knight/go-queueingest/pkg/messagepipeline"
	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/illmade-knight/go-queueingest/pkg/sqsingest"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file.
const ConfigFileEnv = "INGEST_CONFIG_FILE"

// Config is the complete configuration of the ingestion commands.
type Config struct {
	LogLevel    string               `yaml:"log_level"`
	ProjectID   string               `yaml:"project_id"`
	MetricsAddr string               `yaml:"metrics_addr"`
	Store       recordstore.Config   `yaml:"store"`
	Ingest      ingest.HandlerConfig `yaml:"ingest"`
	DeadLetter  DeadLetterConfig     `yaml:"dead_letter"`
	Lambda      LambdaConfig         `yaml:"lambda"`
	PubSub      PubSubConfig         `yaml:"pubsub"`
}

// DeadLetterConfig selects where non-retryable messages go. With a topic they
// are republished there; with LogOnly they are logged and acknowledged; with
// neither they are redelivered until the queue's own redrive policy moves them.
type DeadLetterConfig struct {
	deadletter.PubSubSinkConfig `yaml:",inline"`
	LogOnly bool `yaml:"log_only"`
}

// LambdaConfig holds settings specific to the Lambda entry point.
type LambdaConfig struct {
	ResponseMode sqsingest.ResponseMode `yaml:"response_mode"`
	// VerifyStore runs the store health check at cold start.
	VerifyStore bool `yaml:"verify_store"`
}

// PubSubConfig holds settings for the long-running Pub/Sub service.
type PubSubConfig struct {
	Consumer   messagepipeline.GooglePubsubConsumerConfig `yaml:"consumer"`
	Batch      messagepipeline.BatchIngesterConfig        `yaml:"batch"`
	NumWorkers int                                        `yaml:"num_workers"`
	// IDAttribute, when set, keys records by this message attribute instead of
	// the broker-assigned message id.
	IDAttribute string `yaml:"id_attribute"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() *Config {
	return &Config{
		LogLevel:    "info",
		MetricsAddr: ":9090",
		Store: recordstore.Config{
			Backend: recordstore.BackendDynamoDB,
		},
		Ingest: ingest.HandlerConfig{
			Concurrency:    1,
			DeadlineMargin: time.Second,
		},
		DeadLetter: DeadLetterConfig{
			PubSubSinkConfig: deadletter.PubSubSinkConfig{PublishTimeout: 10 * time.Second},
		},
		Lambda: LambdaConfig{
			ResponseMode: sqsingest.ResponsePartial,
		},
		PubSub: PubSubConfig{
			Consumer: messagepipeline.GooglePubsubConsumerConfig{
				MaxOutstandingMessages: 100,
				NumGoroutines:          5,
			},
			Batch: messagepipeline.BatchIngesterConfig{
				BatchSize:     10,
				FlushTimeout:  time.Second,
				FlushDeadline: 30 * time.Second,
			},
			NumWorkers: 5,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// INGEST_CONFIG_FILE (if any), then environment overrides, and validates the result.
func Load(getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path := getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv is Load using the process environment.
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read config file %s: %w", types.ErrConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: failed to parse config file %s: %w", types.ErrConfiguration, path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	setInt := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("LOG_LEVEL", &c.LogLevel)
	setString("METRICS_ADDR", &c.MetricsAddr)
	setString("GCP_PROJECT_ID", &c.ProjectID)

	setString("TABLE_NAME", &c.Store.TableName)
	if v := getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = recordstore.Backend(v)
	}
	setString("AWS_REGION", &c.Store.DynamoDB.Region)
	setString("DYNAMODB_ENDPOINT", &c.Store.DynamoDB.Endpoint)
	setString("REDIS_ADDR", &c.Store.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Store.Redis.Password)
	setInt("REDIS_DB", &c.Store.Redis.DB)
	setString("DATABASE_URL", &c.Store.Postgres.URL)
	setString("PEBBLE_PATH", &c.Store.Pebble.Path)

	setInt("INGEST_CONCURRENCY", &c.Ingest.Concurrency)
	setDuration("INGEST_WRITE_TIMEOUT", &c.Ingest.WriteTimeout)
	setDuration("INGEST_DEADLINE_MARGIN", &c.Ingest.DeadlineMargin)

	setString("DEAD_LETTER_TOPIC_ID", &c.DeadLetter.TopicID)
	setBool("DEAD_LETTER_LOG_ONLY", &c.DeadLetter.LogOnly)
	if v := getenv("RESPONSE_MODE"); v != "" {
		c.Lambda.ResponseMode = sqsingest.ResponseMode(v)
	}

	setBool("INGEST_VERIFY_STORE", &c.Lambda.VerifyStore)

	setString("PUBSUB_SUBSCRIPTION_ID", &c.PubSub.Consumer.SubscriptionID)
	setString("GCP_PUBSUB_CREDENTIALS_FILE", &c.PubSub.Consumer.CredentialsFile)
	setInt("PUBSUB_BATCH_SIZE", &c.PubSub.Batch.BatchSize)
	setDuration("PUBSUB_FLUSH_TIMEOUT", &c.PubSub.Batch.FlushTimeout)
	setInt("PUBSUB_NUM_WORKERS", &c.PubSub.NumWorkers)
	setString("PUBSUB_ID_ATTRIBUTE", &c.PubSub.IDAttribute)

	if len(errs) > 0 {
		return fmt.Errorf("%w: invalid environment: %w", types.ErrConfiguration, errors.Join(errs...))
	}

	// The GCP project is shared by every Google client unless set per component.
	if c.Store.Firestore.ProjectID == "" {
		c.Store.Firestore.ProjectID = c.ProjectID
	}
	if c.PubSub.Consumer.ProjectID == "" {
		c.PubSub.Consumer.ProjectID = c.ProjectID
	}
	return nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: invalid log level %q", types.ErrConfiguration, c.LogLevel)
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Store.Backend == recordstore.BackendFirestore && c.Store.Firestore.ProjectID == "" {
		return fmt.Errorf("%w: firestore backend requires GCP_PROJECT_ID", types.ErrConfiguration)
	}
	if c.Ingest.Concurrency < 0 || c.Ingest.WriteTimeout < 0 || c.Ingest.DeadlineMargin < 0 {
		return fmt.Errorf("%w: ingest settings cannot be negative", types.ErrConfiguration)
	}
	switch c.Lambda.ResponseMode {
	case sqsingest.ResponsePartial, sqsingest.ResponseStatus:
	default:
		return fmt.Errorf("%w: unknown response mode %q", types.ErrConfiguration, c.Lambda.ResponseMode)
	}
	if c.DeadLetter.TopicID != "" && c.ProjectID == "" {
		return fmt.Errorf("%w: dead-letter topic requires GCP_PROJECT_ID", types.ErrConfiguration)
	}
	return nil
}

// ValidatePubSub checks the extra settings the Pub/Sub service needs.
func (c *Config) ValidatePubSub() error {
	if c.PubSub.Consumer.ProjectID == "" {
		return fmt.Errorf("%w: GCP_PROJECT_ID is required for the Pub/Sub consumer", types.ErrConfiguration)
	}
	if c.PubSub.Consumer.SubscriptionID == "" {
		return fmt.Errorf("%w: PUBSUB_SUBSCRIPTION_ID is required", types.ErrConfiguration)
	}
	if c.PubSub.Batch.BatchSize <= 0 || c.PubSub.NumWorkers <= 0 {
		return fmt.Errorf("%w: pubsub batch size and worker count must be positive", types.ErrConfiguration)
	}
	if c.PubSub.Batch.FlushTimeout <= 0 {
		return fmt.Errorf("%w: pubsub flush timeout must be positive", types.ErrConfiguration)
	}
	return nil
}

// Logger builds the root logger at the configured level.
func (c *Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
