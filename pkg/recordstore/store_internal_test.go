package recordstore

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type uncheckedWriter struct{}

func (uncheckedWriter) Put(context.Context, string, string) error { return nil }
func (uncheckedWriter) Close() error                              { return nil }

func TestOwnedWriter_Check(t *testing.T) {
	t.Run("forwards to wrapped writer", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		o := &ownedWriter{Writer: NewMemoryWriter(zerolog.Nop())}
		assert.ErrorIs(t, o.Check(ctx), context.Canceled)
	})

	t.Run("reports missing health check", func(t *testing.T) {
		o := &ownedWriter{Writer: uncheckedWriter{}}
		assert.ErrorIs(t, o.Check(context.Background()), ErrNoHealthCheck)
	})
}
