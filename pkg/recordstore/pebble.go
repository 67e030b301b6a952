package recordstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/illmade-knight/go-queueingest/pkg/types"
	"github.com/rs/zerolog"
)

// PebbleWriter stores records in an embedded Pebble database for local runs.
// Keys are "<prefix>/<key>"; every write is synced.
type PebbleWriter struct {
	db     *pebble.DB
	prefix string
	logger zerolog.Logger
}

// OpenPebbleWriter opens (or creates) the database at path.
func OpenPebbleWriter(path, prefix string, opts *pebble.Options, logger zerolog.Logger) (*PebbleWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: pebble path is empty", types.ErrConfiguration)
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: pebble key prefix is empty", types.ErrConfiguration)
	}
	if opts == nil {
		opts = &pebble.Options{}
	}
	if opts.FS == nil {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create pebble directory %s: %w", path, err)
		}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("pebble.Open %s: %w", path, err)
	}
	logger.Info().Str("path", path).Msg("Pebble record store opened.")
	return &PebbleWriter{
		db:     db,
		prefix: prefix,
		logger: logger.With().Str("component", "PebbleWriter").Logger(),
	}, nil
}

func (w *PebbleWriter) dbKey(key string) []byte {
	return []byte(w.prefix + "/" + key)
}

// Put implements Writer.
func (w *PebbleWriter) Put(ctx context.Context, key, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.db.Set(w.dbKey(key), []byte(content), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set for %s: %w", key, err)
	}
	return nil
}

// Get returns the content stored under key.
func (w *PebbleWriter) Get(key string) (string, bool, error) {
	v, closer, err := w.db.Get(w.dbKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()
	return string(v), true, nil
}

// Check performs a point read against the database. A missing key still
// proves the read path works.
func (w *PebbleWriter) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, closer, err := w.db.Get(w.dbKey(""))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pebble check: %w", err)
	}
	return closer.Close()
}

// Close closes the database, which this writer owns.
func (w *PebbleWriter) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}
