package recordstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var reservedFirestoreID = regexp.MustCompile(`^__.*__$`)

// firestoreRecord is the document shape, matching the DynamoDB item layout.
type firestoreRecord struct {
	MessageID string `firestore:"messageId"`
	Content   string `firestore:"content"`
}

// FirestoreWriter implements Writer using Google Cloud Firestore.
// Document ID is the record key; Set replaces the whole document.
type FirestoreWriter struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestoreWriter creates a writer for collection. It takes an existing
// *firestore.Client; the caller owns its lifecycle.
func NewFirestoreWriter(client *firestore.Client, collection string, logger zerolog.Logger) (*FirestoreWriter, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if collection == "" || strings.Contains(collection, "/") {
		return nil, fmt.Errorf("%w: invalid firestore collection %q", types.ErrConfiguration, collection)
	}
	return &FirestoreWriter{
		client:     client,
		collection: collection,
		logger:     logger.With().Str("component", "FirestoreWriter").Str("collection", collection).Logger(),
	}, nil
}

// Put implements Writer.
func (w *FirestoreWriter) Put(ctx context.Context, key, content string) error {
	if !validFirestoreID(key) {
		return fmt.Errorf("%w: %q cannot be used as a firestore document id", types.ErrRecordRejected, key)
	}
	_, err := w.client.Collection(w.collection).Doc(key).Set(ctx, firestoreRecord{MessageID: key, Content: content})
	if err != nil {
		if status.Code(err) == codes.InvalidArgument {
			return fmt.Errorf("%w: firestore Set for %s: %w", types.ErrRecordRejected, key, err)
		}
		return fmt.Errorf("firestore Set for %s: %w", key, err)
	}
	w.logger.Debug().Str("key", key).Msg("Document written to Firestore.")
	return nil
}

// Check reads at most one document from the collection. An empty collection
// is healthy.
func (w *FirestoreWriter) Check(ctx context.Context) error {
	iter := w.client.Collection(w.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore check on %s: %w", w.collection, err)
	}
	return nil
}

// Close does not close the injected client.
func (w *FirestoreWriter) Close() error {
	return nil
}

func validFirestoreID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > 1500 {
		return false
	}
	return !strings.Contains(id, "/") && !reservedFirestoreID.MatchString(id)
}
