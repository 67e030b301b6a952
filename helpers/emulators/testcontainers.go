// Package emulators starts throwaway backing services in containers for integration tests.
package emulators

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// ImageContainer names an image and the port the service listens on inside it.
type ImageContainer struct {
	Image string
	Port  string
}

func (c ImageContainer) tcpPort() nat.Port {
	return nat.Port(fmt.Sprintf("%s/tcp", c.Port))
}

// GCImageContainer is an ImageContainer for a Google Cloud emulator.
type GCImageContainer struct {
	ImageContainer
	ProjectID string
}

const gcloudEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func (c GCImageContainer) gcloudCmd(service string) []string {
	return []string{"gcloud", "beta", "emulators", service, "start",
		fmt.Sprintf("--project=%s", c.ProjectID),
		fmt.Sprintf("--host-port=0.0.0.0:%s", c.Port)}
}

// startContainer runs req and returns the container plus the host:port mapped to port.
func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (testcontainers.Container, string) {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err, "failed to start %s", req.Image)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	addr := net.JoinHostPort(host, mapped.Port())
	t.Logf("%s started, listening on %s", req.Image, addr)
	return container, addr
}

func terminate(ctx context.Context, container testcontainers.Container, name string) func() {
	return func() {
		if err := container.Terminate(ctx); err != nil {
			log.Warn().Err(err).Str("container", name).Msg("Failed to terminate container")
		}
	}
}
