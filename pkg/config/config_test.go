package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/config"
	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/illmade-knight/go-queueingest/pkg/sqsingest"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(envFrom(map[string]string{"TABLE_NAME": "messages"}))
	require.NoError(t, err)

	assert.Equal(t, recordstore.BackendDynamoDB, cfg.Store.Backend)
	assert.Equal(t, "messages", cfg.Store.TableName)
	assert.Equal(t, sqsingest.ResponsePartial, cfg.Lambda.ResponseMode)
	assert.Equal(t, 1, cfg.Ingest.Concurrency)
	assert.Equal(t, time.Second, cfg.Ingest.DeadlineMargin)
	assert.Equal(t, 10, cfg.PubSub.Batch.BatchSize)
}

func TestLoad_MissingTableName(t *testing.T) {
	_, err := config.Load(envFrom(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := config.Load(envFrom(map[string]string{
		"TABLE_NAME":             "events",
		"STORE_BACKEND":          "redis",
		"REDIS_ADDR":             "localhost:6379",
		"REDIS_DB":               "2",
		"INGEST_CONCURRENCY":     "8",
		"INGEST_WRITE_TIMEOUT":   "250ms",
		"INGEST_DEADLINE_MARGIN": "3s",
		"RESPONSE_MODE":          "status",
		"GCP_PROJECT_ID":         "proj",
		"PUBSUB_SUBSCRIPTION_ID": "sub",
		"PUBSUB_BATCH_SIZE":      "25",
		"PUBSUB_FLUSH_TIMEOUT":   "2s",
		"LOG_LEVEL":              "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, recordstore.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 8, cfg.Ingest.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.WriteTimeout)
	assert.Equal(t, 3*time.Second, cfg.Ingest.DeadlineMargin)
	assert.Equal(t, sqsingest.ResponseStatus, cfg.Lambda.ResponseMode)
	assert.Equal(t, "proj", cfg.PubSub.Consumer.ProjectID)
	assert.Equal(t, "proj", cfg.Store.Firestore.ProjectID)
	assert.Equal(t, 25, cfg.PubSub.Batch.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.PubSub.Batch.FlushTimeout)
	require.NoError(t, cfg.ValidatePubSub())
}

func TestLoad_InvalidValues(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad integer", env: map[string]string{"TABLE_NAME": "t", "INGEST_CONCURRENCY": "many"}},
		{name: "bad duration", env: map[string]string{"TABLE_NAME": "t", "INGEST_WRITE_TIMEOUT": "soon"}},
		{name: "unknown backend", env: map[string]string{"TABLE_NAME": "t", "STORE_BACKEND": "cassandra"}},
		{name: "unknown response mode", env: map[string]string{"TABLE_NAME": "t", "RESPONSE_MODE": "maybe"}},
		{name: "bad log level", env: map[string]string{"TABLE_NAME": "t", "LOG_LEVEL": "loud"}},
		{name: "redis without address", env: map[string]string{"TABLE_NAME": "t", "STORE_BACKEND": "redis"}},
		{name: "firestore without project", env: map[string]string{"TABLE_NAME": "t", "STORE_BACKEND": "firestore"}},
		{name: "dead letter without project", env: map[string]string{"TABLE_NAME": "t", "DEAD_LETTER_TOPIC_ID": "dlq"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(envFrom(tc.env))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConfiguration)
		})
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	yamlDoc := `
log_level: warn
store:
  backend: pebble
  table_name: from-file
  pebble:
    path: /tmp/pebble
ingest:
  concurrency: 4
  write_timeout: 2s
pubsub:
  batch:
    batch_size: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := config.Load(envFrom(map[string]string{
		config.ConfigFileEnv: path,
		"TABLE_NAME":         "from-env",
	}))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, recordstore.BackendPebble, cfg.Store.Backend)
	assert.Equal(t, "from-env", cfg.Store.TableName, "environment overrides the file")
	assert.Equal(t, 4, cfg.Ingest.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Ingest.WriteTimeout)
	assert.Equal(t, 50, cfg.PubSub.Batch.BatchSize)
	assert.Equal(t, time.Second, cfg.PubSub.Batch.FlushTimeout, "unset file values keep their defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(envFrom(map[string]string{config.ConfigFileEnv: "/does/not/exist.yaml", "TABLE_NAME": "t"}))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestValidatePubSub(t *testing.T) {
	cfg, err := config.Load(envFrom(map[string]string{"TABLE_NAME": "t"}))
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.ValidatePubSub(), types.ErrConfiguration)
}

func TestLoad_DeadLetterAndLambdaFlags(t *testing.T) {
	cfg, err := config.Load(envFrom(map[string]string{
		"TABLE_NAME":           "t",
		"DEAD_LETTER_LOG_ONLY": "true",
		"INGEST_VERIFY_STORE":  "1",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.DeadLetter.LogOnly)
	assert.True(t, cfg.Lambda.VerifyStore)
	assert.Equal(t, 10*time.Second, cfg.DeadLetter.PublishTimeout)

	_, err = config.Load(envFrom(map[string]string{"TABLE_NAME": "t", "DEAD_LETTER_LOG_ONLY": "perhaps"}))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
