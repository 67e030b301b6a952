package recordstore_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

type mockUploader struct {
	sync.Mutex
	bucket    string
	objects   map[string]string
	uploadErr error
	bucketErr error
}

func newMockUploader(bucket string) *mockUploader {
	return &mockUploader{bucket: bucket, objects: make(map[string]string)}
}

func (m *mockUploader) Bucket() string { return m.bucket }

func (m *mockUploader) Upload(_ context.Context, name string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[name] = string(data)
	return nil
}

func (m *mockUploader) CheckBucket(_ context.Context) error {
	m.Lock()
	defer m.Unlock()
	return m.bucketErr
}

func (m *mockUploader) content(name string) (string, bool) {
	m.Lock()
	defer m.Unlock()
	c, ok := m.objects[name]
	return c, ok
}

func TestGCSRecordWriter_Put(t *testing.T) {
	uploader := newMockUploader("messages-bucket")
	w, err := recordstore.NewGCSWriter(uploader, "records", zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Put(ctx, "dup", "first"))
	require.NoError(t, w.Put(ctx, "dup", "second"))

	got, ok := uploader.content("records/dup")
	require.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestGCSRecordWriter_Errors(t *testing.T) {
	t.Run("newline in key is rejected", func(t *testing.T) {
		w, err := recordstore.NewGCSWriter(newMockUploader("b"), "", zerolog.Nop())
		require.NoError(t, err)
		assert.ErrorIs(t, w.Put(context.Background(), "bad\nkey", "x"), types.ErrRecordRejected)
	})

	t.Run("bad request is rejected", func(t *testing.T) {
		uploader := newMockUploader("b")
		uploader.uploadErr = &googleapi.Error{Code: http.StatusBadRequest, Message: "invalid"}
		w, err := recordstore.NewGCSWriter(uploader, "", zerolog.Nop())
		require.NoError(t, err)
		assert.ErrorIs(t, w.Put(context.Background(), "k", "x"), types.ErrRecordRejected)
	})

	t.Run("server error is not rejected", func(t *testing.T) {
		uploader := newMockUploader("b")
		uploader.uploadErr = &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "unavailable"}
		w, err := recordstore.NewGCSWriter(uploader, "", zerolog.Nop())
		require.NoError(t, err)

		err = w.Put(context.Background(), "k", "x")
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrRecordRejected)
	})

	t.Run("bucket name required", func(t *testing.T) {
		_, err := recordstore.NewGCSWriter(newMockUploader(""), "", zerolog.Nop())
		assert.ErrorIs(t, err, types.ErrConfiguration)
	})
}

func TestGCSRecordWriter_Check(t *testing.T) {
	uploader := newMockUploader("messages-bucket")
	w, err := recordstore.NewGCSWriter(uploader, "records", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Check(context.Background()))

	uploader.Lock()
	uploader.bucketErr = fmt.Errorf("%w: bucket messages-bucket does not exist", types.ErrConfiguration)
	uploader.Unlock()
	err = w.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
