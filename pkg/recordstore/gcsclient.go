package recordstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// ObjectUploader writes whole objects into a single bucket.
type ObjectUploader interface {
	Bucket() string
	Upload(ctx context.Context, name string, body io.Reader) error
	// CheckBucket verifies the bucket exists and is readable.
	CheckBucket(ctx context.Context) error
}

type bucketUploader struct {
	bucket *storage.BucketHandle
	name   string
}

// NewBucketUploader binds a storage client to bucket.
func NewBucketUploader(client *storage.Client, bucket string) ObjectUploader {
	if client == nil {
		return nil
	}
	return &bucketUploader{bucket: client.Bucket(bucket), name: bucket}
}

func (u *bucketUploader) Bucket() string { return u.name }

// Upload streams body into the object. The object only becomes visible once
// the writer is closed, so a failed copy still closes to release the upload.
func (u *bucketUploader) Upload(ctx context.Context, name string, body io.Reader) error {
	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	_, copyErr := io.Copy(w, body)
	return errors.Join(copyErr, w.Close())
}

func (u *bucketUploader) CheckBucket(ctx context.Context) error {
	_, err := u.bucket.Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: bucket %s does not exist", types.ErrConfiguration, u.name)
	}
	return err
}
