package emulators

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type RedisConfig struct {
	ImageContainer
}

func GetDefaultRedisConfig() RedisConfig {
	return RedisConfig{ImageContainer: ImageContainer{Image: "redis:7-alpine", Port: "6379"}}
}

// SetupRedisContainer starts a Redis server and returns its host:port address.
func SetupRedisContainer(t *testing.T, ctx context.Context, cfg RedisConfig) (string, func()) {
	t.Helper()
	port := cfg.tcpPort()
	container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{string(port)},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, port)
	return addr, terminate(ctx, container, "redis")
}
