package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

// GCSRecordWriter stores each record as one object named <prefix>/<key>.
// Uploading to an existing name replaces the object.
type GCSRecordWriter struct {
	uploader ObjectUploader
	prefix   string
	logger   zerolog.Logger
}

// NewGCSWriter creates a writer storing objects through uploader.
func NewGCSWriter(uploader ObjectUploader, prefix string, logger zerolog.Logger) (*GCSRecordWriter, error) {
	if uploader == nil {
		return nil, errors.New("GCS uploader cannot be nil")
	}
	if uploader.Bucket() == "" {
		return nil, fmt.Errorf("%w: GCS bucket name is required", types.ErrConfiguration)
	}
	return &GCSRecordWriter{
		uploader: uploader,
		prefix:   prefix,
		logger:   logger.With().Str("component", "GCSRecordWriter").Str("bucket", uploader.Bucket()).Logger(),
	}, nil
}

// ObjectName returns the object a record is stored under.
func (w *GCSRecordWriter) ObjectName(key string) string {
	if w.prefix == "" {
		return key
	}
	return path.Join(w.prefix, key)
}

// Put implements Writer.
func (w *GCSRecordWriter) Put(ctx context.Context, key, content string) error {
	name := w.ObjectName(key)
	if len(name) > 1024 || !utf8.ValidString(name) || strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q cannot be used as a GCS object name", types.ErrRecordRejected, name)
	}

	if err := w.uploader.Upload(ctx, name, strings.NewReader(content)); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
			return fmt.Errorf("%w: GCS upload for %s: %w", types.ErrRecordRejected, name, err)
		}
		return fmt.Errorf("GCS upload for %s: %w", name, err)
	}
	w.logger.Debug().Str("object_name", name).Msg("Record uploaded to GCS.")
	return nil
}

// Check implements HealthChecker.
func (w *GCSRecordWriter) Check(ctx context.Context) error {
	if err := w.uploader.CheckBucket(ctx); err != nil {
		return fmt.Errorf("GCS check on %s: %w", w.uploader.Bucket(), err)
	}
	return nil
}

// Close does not close the underlying storage client.
func (w *GCSRecordWriter) Close() error {
	return nil
}
