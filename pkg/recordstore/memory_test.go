package recordstore_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/illmade-knight/go-queueingest/pkg/recordstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWriter_Upsert(t *testing.T) {
	w := recordstore.NewMemoryWriter(zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, w.Put(ctx, "dup", "first"))
	require.NoError(t, w.Put(ctx, "dup", "second"))

	got, ok := w.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "second", got)
	assert.Equal(t, 1, w.Len())
}

func TestMemoryWriter_CancelledContext(t *testing.T) {
	w := recordstore.NewMemoryWriter(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Put(ctx, "k", "v")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, w.Len())
}

func TestMemoryWriter_ConcurrentPuts(t *testing.T) {
	w := recordstore.NewMemoryWriter(zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.Put(ctx, fmt.Sprintf("key-%d", i), "v"))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, w.Len())
	assert.Len(t, w.Snapshot(), 50)
}

func TestMemoryWriter_Check(t *testing.T) {
	w := recordstore.NewMemoryWriter(zerolog.Nop())
	assert.NoError(t, w.Check(context.Background()))
}
