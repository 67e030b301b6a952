package emulators

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"google.golang.org/api/option"
)

// GCSConfig describes a fake-gcs-server and the bucket records are written to.
type GCSConfig struct {
	GCImageContainer
	Bucket string
}

func GetDefaultGCSConfig(projectID, bucket string) GCSConfig {
	return GCSConfig{
		GCImageContainer: GCImageContainer{
			ImageContainer: ImageContainer{Image: "fsouza/fake-gcs-server:1.49", Port: "4443"},
			ProjectID:      projectID,
		},
		Bucket: bucket,
	}
}

// SetupGCSEmulator starts fake-gcs-server over plain HTTP, creates the bucket
// and returns a storage client bound to it.
func SetupGCSEmulator(t *testing.T, ctx context.Context, cfg GCSConfig) (*storage.Client, func()) {
	t.Helper()
	port := cfg.tcpPort()
	container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        cfg.Image,
		ExposedPorts: []string{string(port)},
		Cmd:          []string{"-scheme", "http", "-port", cfg.Port},
		// Any response from the bucket listing means the server is up.
		WaitingFor: wait.ForHTTP("/storage/v1/b").WithPort(port).
			WithStatusCodeMatcher(func(status int) bool { return status > 0 }).
			WithStartupTimeout(20 * time.Second),
	}, port)

	endpoint := "http://" + addr
	t.Setenv("STORAGE_EMULATOR_HOST", endpoint)
	client, err := storage.NewClient(ctx, option.WithoutAuthentication(), option.WithEndpoint(endpoint+"/storage/v1/"))
	require.NoError(t, err)
	require.NoError(t, client.Bucket(cfg.Bucket).Create(ctx, cfg.ProjectID, nil), "failed to create bucket %s", cfg.Bucket)

	stop := terminate(ctx, container, "gcs")
	return client, func() {
		_ = client.Close()
		stop()
	}
}
