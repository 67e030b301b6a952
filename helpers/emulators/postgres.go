package emulators

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresConfig struct {
	ImageContainer
	Database string
	User     string
	Password string
}

func GetDefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		ImageContainer: ImageContainer{Image: "postgres:16-alpine", Port: "5432"},
		Database:       "ingest",
		User:           "ingest",
		Password:       "ingest",
	}
}

// SetupPostgresContainer starts Postgres and returns a connection URL for it.
func SetupPostgresContainer(t *testing.T, ctx context.Context, cfg PostgresConfig) (string, func()) {
	t.Helper()
	port := cfg.tcpPort()
	container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"POSTGRES_DB":       cfg.Database,
			"POSTGRES_USER":     cfg.User,
			"POSTGRES_PASSWORD": cfg.Password,
		},
		// The server restarts once after initdb; the second ready line is the real one.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, port)

	url := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", cfg.User, cfg.Password, addr, cfg.Database)
	return url, terminate(ctx, container, "postgres")
}
