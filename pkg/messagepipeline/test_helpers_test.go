package messagepipeline_test

import (
	"context"
	"sync"
	"time"

	"github.com/illmade-knight/go-queueingest/pkg/types"
)

// ====================================================================================
// This file contains mocks for the interfaces defined in this package.
// ====================================================================================

// --- MockMessageConsumer ---

// MockMessageConsumer simulates a message source.
type MockMessageConsumer struct {
	msgChan    chan types.InboundMessage
	doneChan   chan struct{}
	stopOnce   sync.Once
	startErr   error
	mu         sync.Mutex
	startCount int
	stopCount  int
}

// NewMockMessageConsumer creates a new mock consumer with a buffered channel.
func NewMockMessageConsumer(bufferSize int) *MockMessageConsumer {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &MockMessageConsumer{
		msgChan:  make(chan types.InboundMessage, bufferSize),
		doneChan: make(chan struct{}),
	}
}

func (m *MockMessageConsumer) Messages() <-chan types.InboundMessage {
	return m.msgChan
}

func (m *MockMessageConsumer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCount++
	return m.startErr
}

// Stop closes the message channel; anything still buffered is drained by the
// service's workers.
func (m *MockMessageConsumer) Stop() error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopCount++
		m.mu.Unlock()
		close(m.msgChan)
		close(m.doneChan)
	})
	return nil
}

func (m *MockMessageConsumer) Done() <-chan struct{} {
	return m.doneChan
}

// Push injects a message into the consumer's channel.
func (m *MockMessageConsumer) Push(msg types.InboundMessage) {
	m.msgChan <- msg
}

func (m *MockMessageConsumer) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

func (m *MockMessageConsumer) GetStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

func (m *MockMessageConsumer) GetStopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

// --- MockMessageProcessor ---

// MockMessageProcessor records every message it receives and optionally acks it.
type MockMessageProcessor struct {
	InputChan    chan types.InboundMessage
	received     []types.InboundMessage
	mu           sync.Mutex
	wg           sync.WaitGroup
	startCount   int
	stopCount    int
	processDelay time.Duration
	ackOnProcess bool
}

func NewMockMessageProcessor(bufferSize int) *MockMessageProcessor {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &MockMessageProcessor{InputChan: make(chan types.InboundMessage, bufferSize)}
}

func (m *MockMessageProcessor) Input() chan<- types.InboundMessage {
	return m.InputChan
}

func (m *MockMessageProcessor) Start() {
	m.mu.Lock()
	m.startCount++
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range m.InputChan {
			m.mu.Lock()
			delay := m.processDelay
			ack := m.ackOnProcess
			m.mu.Unlock()
			if delay > 0 {
				time.Sleep(delay)
			}
			m.mu.Lock()
			m.received = append(m.received, msg)
			m.mu.Unlock()
			if ack && msg.Ack != nil {
				msg.Ack()
			}
		}
	}()
}

func (m *MockMessageProcessor) Stop() {
	m.mu.Lock()
	m.stopCount++
	m.mu.Unlock()
	close(m.InputChan)
	m.wg.Wait()
}

func (m *MockMessageProcessor) GetStartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCount
}

func (m *MockMessageProcessor) GetStopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCount
}

func (m *MockMessageProcessor) GetReceived() []types.InboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.InboundMessage, len(m.received))
	copy(out, m.received)
	return out
}

func (m *MockMessageProcessor) SetProcessDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processDelay = d
}

func (m *MockMessageProcessor) SetAckOnProcess(b bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ackOnProcess = b
}

// --- messageState ---

// messageState tracks Ack/Nack calls for one message.
type messageState struct {
	mu         sync.Mutex
	ackCalled  int
	nackCalled int
}

func (ms *messageState) Ack() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.ackCalled++
}

func (ms *messageState) Nack() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.nackCalled++
}

func (ms *messageState) IsAcked() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.ackCalled > 0
}

func (ms *messageState) IsNacked() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.nackCalled > 0
}

func (ms *messageState) Settled() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.ackCalled+ms.nackCalled > 0
}

// trackedMessage builds a message whose Ack/Nack calls are recorded in the returned state.
func trackedMessage(id, body string) (types.InboundMessage, *messageState) {
	state := &messageState{}
	return types.InboundMessage{ID: id, Body: []byte(body), Ack: state.Ack, Nack: state.Nack}, state
}
