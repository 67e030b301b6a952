package recordstore_test

import (
	"context"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Keys Firestore cannot hold are rejected before any RPC, so an unreachable
// emulator address is enough here.
func TestFirestoreWriter_RejectsInvalidDocumentIDs(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:1")
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "test-project")
	require.NoError(t, err)
	defer client.Close()

	w, err := recordstore.NewFirestoreWriter(client, "messages", zerolog.Nop())
	require.NoError(t, err)

	for _, key := range []string{"a/b", ".", "..", "__reserved__"} {
		err := w.Put(ctx, key, "x")
		assert.ErrorIs(t, err, types.ErrRecordRejected, "key %q", key)
	}
}

func TestNewFirestoreWriter_Validation(t *testing.T) {
	_, err := recordstore.NewFirestoreWriter(nil, "messages", zerolog.Nop())
	assert.Error(t, err)
}
