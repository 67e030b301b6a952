package emulators

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"google.golang.org/api/option"
)

type PubsubConfig struct {
	GCImageContainer
}

func GetDefaultPubsubConfig(projectID string) PubsubConfig {
	return PubsubConfig{GCImageContainer: GCImageContainer{
		ImageContainer: ImageContainer{Image: gcloudEmulatorImage, Port: "8085"},
		ProjectID:      projectID,
	}}
}

// SetupPubsubEmulator starts the Pub/Sub emulator and points PUBSUB_EMULATOR_HOST at it.
// Topics and subscriptions are left to the caller.
func SetupPubsubEmulator(t *testing.T, ctx context.Context, cfg PubsubConfig) ([]option.ClientOption, func()) {
	t.Helper()
	port := cfg.tcpPort()
	container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{string(port)},
		Cmd:          cfg.gcloudCmd("pubsub"),
		WaitingFor:   wait.ForListeningPort(port),
	}, port)

	t.Setenv("PUBSUB_EMULATOR_HOST", addr)
	opts := []option.ClientOption{option.WithEndpoint(addr), option.WithoutAuthentication()}
	return opts, terminate(ctx, container, "pubsub")
}
