package emulators

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type FirestoreConfig struct {
	GCImageContainer
}

func GetDefaultFirestoreConfig(projectID string) FirestoreConfig {
	return FirestoreConfig{GCImageContainer: GCImageContainer{
		ImageContainer: ImageContainer{Image: gcloudEmulatorImage, Port: "8080"},
		ProjectID:      projectID,
	}}
}

// SetupFirestoreEmulator starts the Firestore emulator and returns a client bound to it.
func SetupFirestoreEmulator(t *testing.T, ctx context.Context, cfg FirestoreConfig) (*firestore.Client, func()) {
	t.Helper()
	port := cfg.tcpPort()
	container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{string(port)},
		Cmd:          cfg.gcloudCmd("firestore"),
		WaitingFor:   wait.ForListeningPort(port),
	}, port)

	// The Firestore client only honours the environment variable.
	t.Setenv("FIRESTORE_EMULATOR_HOST", addr)
	client, err := firestore.NewClient(ctx, cfg.ProjectID)
	require.NoError(t, err)

	stop := terminate(ctx, container, "firestore")
	return client, func() {
		_ = client.Close()
		stop()
	}
}
