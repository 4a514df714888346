package synth

import (
	"context"
	"sync"
)

// Mock is a mock implementation of Provider for testing.
type Mock struct {
	mu sync.Mutex

	// Configurable behavior
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	StreamFunc     func(ctx context.Context, text string) (AudioStream, error)
	HealthFunc     func(ctx context.Context) error

	// Audio returned by the default Synthesize/Stream when no func is set.
	Audio []byte

	// Captured calls for assertions
	SynthesizedTexts []string
	StreamedTexts    []string
	closed           bool
}

// NewMock creates a new Mock provider. By default every call succeeds and
// returns Audio (empty unless set).
func NewMock() *Mock {
	return &Mock{}
}

// Synthesize implements Provider.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.mu.Lock()
	m.SynthesizedTexts = append(m.SynthesizedTexts, text)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	return &AudioResult{Audio: m.Audio, CharCount: len(text)}, nil
}

// Stream implements Provider.
func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.mu.Lock()
	m.StreamedTexts = append(m.StreamedTexts, text)
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	return &bufferStream{data: m.Audio}, nil
}

// Health implements Provider.
func (m *Mock) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Texts returns a copy of all texts passed to Stream.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.StreamedTexts))
	copy(out, m.StreamedTexts)
	return out
}

// NewBufferStream wraps raw audio as an AudioStream, for tests and the
// greeting cache.
func NewBufferStream(data []byte) AudioStream {
	return &bufferStream{data: data}
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
