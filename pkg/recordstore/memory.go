package recordstore

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryWriter implements Writer using a simple in-memory map.
// It's primarily for testing and dry runs; nothing survives a restart.
type MemoryWriter struct {
	mu      sync.RWMutex
	records map[string]string
	logger  zerolog.Logger
}

// NewMemoryWriter creates an empty in-memory store.
func NewMemoryWriter(logger zerolog.Logger) *MemoryWriter {
	return &MemoryWriter{
		records: make(map[string]string),
		logger:  logger.With().Str("component", "MemoryWriter").Logger(),
	}
}

// Put implements Writer.
func (m *MemoryWriter) Put(ctx context.Context, key, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = content
	m.logger.Debug().Str("key", key).Msg("Record written to memory store.")
	return nil
}

// Get returns the content stored under key.
func (m *MemoryWriter) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.records[key]
	return content, ok
}

// Len returns the number of distinct keys stored.
func (m *MemoryWriter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Snapshot returns a copy of every stored record.
func (m *MemoryWriter) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}

// Check always succeeds; there is nothing to reach.
func (m *MemoryWriter) Check(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Writer.
func (m *MemoryWriter) Close() error {
	return nil
}
