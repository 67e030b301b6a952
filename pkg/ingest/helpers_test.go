package ingest_test

import (
	"context"
	"sync"

	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// mockRecordWriter is an upserting in-memory writer that records every call.
// PutFn, when set, runs before the write and can fail it.
type mockRecordWriter struct {
	mu      sync.Mutex
	records map[string]string
	calls   []string
	PutFn   func(ctx context.Context, key, content string) error
}

func newMockRecordWriter() *mockRecordWriter {
	return &mockRecordWriter{records: make(map[string]string)}
}

func (m *mockRecordWriter) Put(ctx context.Context, key, content string) error {
	m.mu.Lock()
	m.calls = append(m.calls, key)
	fn := m.PutFn
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, key, content); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = content
	return nil
}

func (m *mockRecordWriter) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRecordWriter) getRecords() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out
}

// mockDeadLetterSink collects dead-lettered messages. SendFn can fail a send.
type mockDeadLetterSink struct {
	mu     sync.Mutex
	sent   []types.InboundMessage
	causes []error
	SendFn func(msg types.InboundMessage) error
}

func (m *mockDeadLetterSink) Send(ctx context.Context, msg types.InboundMessage, cause error) error {
	if m.SendFn != nil {
		if err := m.SendFn(msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	m.causes = append(m.causes, cause)
	return nil
}

func (m *mockDeadLetterSink) getSent() []types.InboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.InboundMessage(nil), m.sent...)
}

func msg(id, body string) types.InboundMessage {
	return types.InboundMessage{ID: id, Body: []byte(body)}
}
