package dialogue

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Provider for testing.
type Mock struct {
	mu sync.RWMutex

	// State
	connected bool

	// Callbacks
	onTranscript    func(role Role, text string)
	onResponseText  func(text string)
	onResponseDone  func()
	onSpeechStarted func()
	onSpeechStopped func()
	onError         func(err error)

	// Configurable behavior
	ConnectFunc         func(ctx context.Context) error
	CloseFunc           func() error
	SendAudioFunc       func(audio []byte) error
	RequestResponseFunc func() error

	// Captured calls for assertions
	AudioSent        [][]byte
	ResponseRequests int
}

// Compile-time interface check.
var _ Provider = (*Mock)(nil)

// NewMock creates a new Mock provider.
func NewMock() *Mock {
	return &Mock{}
}

// Connect implements Provider.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected implements Provider.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SendAudio implements Provider.
func (m *Mock) SendAudio(audio []byte) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(audio)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, audio)
	return nil
}

// RequestResponse implements Provider.
func (m *Mock) RequestResponse() error {
	if m.RequestResponseFunc != nil {
		return m.RequestResponseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.ResponseRequests++
	return nil
}

// OnTranscript implements Provider.
func (m *Mock) OnTranscript(fn func(role Role, text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTranscript = fn
}

// OnResponseText implements Provider.
func (m *Mock) OnResponseText(fn func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResponseText = fn
}

// OnResponseDone implements Provider.
func (m *Mock) OnResponseDone(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResponseDone = fn
}

// OnSpeechStarted implements Provider.
func (m *Mock) OnSpeechStarted(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSpeechStarted = fn
}

// OnSpeechStopped implements Provider.
func (m *Mock) OnSpeechStopped(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSpeechStopped = fn
}

// OnError implements Provider.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// SimulateTranscript triggers the transcript callback.
func (m *Mock) SimulateTranscript(role Role, text string) {
	m.mu.RLock()
	fn := m.onTranscript
	m.mu.RUnlock()
	if fn != nil {
		fn(role, text)
	}
}

// SimulateResponseText triggers the response text callback.
func (m *Mock) SimulateResponseText(text string) {
	m.mu.RLock()
	fn := m.onResponseText
	m.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

// SimulateResponseDone triggers the response-finished callback.
func (m *Mock) SimulateResponseDone() {
	m.mu.RLock()
	fn := m.onResponseDone
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateSpeechStarted triggers the speech-started callback.
func (m *Mock) SimulateSpeechStarted() {
	m.mu.RLock()
	fn := m.onSpeechStarted
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateSpeechStopped triggers the speech-stopped callback.
func (m *Mock) SimulateSpeechStopped() {
	m.mu.RLock()
	fn := m.onSpeechStopped
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateError triggers the error callback.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SentAudio returns a copy of the captured audio chunks.
func (m *Mock) SentAudio() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.AudioSent))
	copy(out, m.AudioSent)
	return out
}

// Requests returns the number of response requests made.
func (m *Mock) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ResponseRequests
}
