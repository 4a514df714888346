package dialogue

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	realtimeURL        = "wss://api.openai.com/v1/realtime"
	transcriptionModel = "whisper-1"
)

// Realtime implements Provider over the OpenAI Realtime API, used here as a
// combined recognizer and response generator: text modality only, with input
// transcription enabled.
type Realtime struct {
	config *Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     ConnectionState
	cancelCtx context.CancelFunc

	// Callbacks
	onTranscript    func(role Role, text string)
	onResponseText  func(text string)
	onResponseDone  func()
	onSpeechStarted func()
	onSpeechStopped func()
	onError         func(err error)

	// Metrics
	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// Compile-time interface check.
var _ Provider = (*Realtime)(nil)

// NewRealtime creates a Realtime dialogue provider.
func NewRealtime(opts ...Option) (*Realtime, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = realtimeURL
	}

	return &Realtime{
		config: cfg,
		logger: cfg.Logger.With("component", "dialogue.realtime"),
		state:  StateDisconnected,
	}, nil
}

// Connect establishes the WebSocket session and configures it for text
// responses with caller-audio transcription.
func (r *Realtime) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateConnected {
		r.mu.Unlock()
		return ErrAlreadyConnected
	}
	r.state = StateConnecting
	r.mu.Unlock()

	url := fmt.Sprintf("%s?model=%s", r.config.BaseURL, r.config.Model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+r.config.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: r.config.Timeout,
	}

	r.logger.Info("connecting to realtime API", "model", r.config.Model)

	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		r.mu.Lock()
		r.state = StateDisconnected
		r.mu.Unlock()
		if resp != nil {
			return NewConnectionError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return NewConnectionError("dial failed", err, true)
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.conn = conn
	r.state = StateConnected
	r.cancelCtx = cancel
	r.mu.Unlock()

	go r.handleMessages(msgCtx)

	if err := r.configureSession(); err != nil {
		_ = r.Close()
		return err
	}

	r.logger.Info("connected to realtime API")
	return nil
}

// configureSession sets text-only modality, mu-law input, input
// transcription, and server-side VAD.
func (r *Realtime) configureSession() error {
	msg := sessionUpdateMsg{
		Type: msgSessionUpdate,
		Session: sessionConfig{
			Modalities:       []string{"text"},
			Instructions:     r.config.SystemPrompt,
			InputAudioFormat: r.config.InputFormat,
			InputAudioTranscription: &transcriptionCfg{
				Model: transcriptionModel,
			},
			TurnDetection: &turnDetectionCfg{Type: "server_vad"},
			Temperature:   r.config.Temperature,
		},
	}
	return r.writeJSON(msg, "configure session")
}

// Close gracefully closes the session.
func (r *Realtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDisconnected {
		return nil
	}

	if r.cancelCtx != nil {
		r.cancelCtx()
	}

	if r.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = r.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		r.conn.Close()
		r.conn = nil
	}

	r.state = StateDisconnected
	r.logger.Info("disconnected from realtime API")
	return nil
}

// IsConnected returns true if connected.
func (r *Realtime) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateConnected
}

// SendAudio streams one chunk of caller audio.
func (r *Realtime) SendAudio(audio []byte) error {
	msg := audioAppendMsg{
		Type:  msgAudioAppend,
		Audio: base64.StdEncoding.EncodeToString(audio),
	}
	return r.writeJSON(msg, "send audio")
}

// RequestResponse asks for a response from the conversation so far. The
// caller enforces the single-outstanding-response contract.
func (r *Realtime) RequestResponse() error {
	return r.writeJSON(responseCreateMsg{Type: msgResponseCreate}, "request response")
}

// OnTranscript sets the transcript callback.
func (r *Realtime) OnTranscript(fn func(role Role, text string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTranscript = fn
}

// OnResponseText sets the response text callback.
func (r *Realtime) OnResponseText(fn func(text string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResponseText = fn
}

// OnResponseDone sets the response-finished callback.
func (r *Realtime) OnResponseDone(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResponseDone = fn
}

// OnSpeechStarted sets the caller-started-speaking callback.
func (r *Realtime) OnSpeechStarted(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSpeechStarted = fn
}

// OnSpeechStopped sets the caller-stopped-speaking callback.
func (r *Realtime) OnSpeechStopped(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSpeechStopped = fn
}

// OnError sets the error callback.
func (r *Realtime) OnError(fn func(err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// writeJSON serializes and sends a client message under the write lock.
func (r *Realtime) writeJSON(msg any, op string) error {
	r.mu.RLock()
	conn := r.conn
	state := r.state
	r.mu.RUnlock()

	if state != StateConnected || conn == nil {
		return ErrNotConnected
	}

	r.mu.Lock()
	err := conn.WriteJSON(msg)
	r.mu.Unlock()

	if err != nil {
		return NewConnectionError(op+" failed", err, true)
	}
	r.messagesSent.Add(1)
	return nil
}

// handleMessages processes incoming WebSocket messages until the session
// closes.
func (r *Realtime) handleMessages(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		if r.state == StateConnected {
			r.state = StateDisconnected
		}
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(r.config.ReadTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Info("session closed normally")
				return
			}
			r.logger.Error("read error", "error", err)
			r.emitError(NewConnectionError("read failed", err, true))
			return
		}

		r.messagesReceived.Add(1)

		evt, err := decodeServerEvent(data)
		if err != nil {
			r.logger.Error("undecodable server event", "error", err)
			r.emitError(err)
			continue
		}

		r.handleEvent(evt)
	}
}

// handleEvent dispatches one decoded server event to the callbacks.
func (r *Realtime) handleEvent(evt *serverEvent) {
	switch evt.Type {
	case evtTranscriptCompleted:
		text := strings.TrimSpace(evt.Transcript.Transcript)
		r.logger.Debug("caller transcript", "text", text)
		if text == "" {
			return
		}
		r.mu.RLock()
		fn := r.onTranscript
		r.mu.RUnlock()
		if fn != nil {
			fn(RoleCaller, text)
		}

	case evtResponseTextDone:
		text := strings.TrimSpace(evt.TextDone.Text)
		r.logger.Debug("response text", "len", len(text))
		if text == "" {
			return
		}
		r.mu.RLock()
		fn := r.onResponseText
		r.mu.RUnlock()
		if fn != nil {
			fn(text)
		}

	case evtResponseDone:
		r.logger.Debug("response done", "status", evt.ResponseDone.Response.Status)
		r.mu.RLock()
		fn := r.onResponseDone
		r.mu.RUnlock()
		if fn != nil {
			fn()
		}

	case evtSpeechStarted:
		r.mu.RLock()
		fn := r.onSpeechStarted
		r.mu.RUnlock()
		if fn != nil {
			fn()
		}

	case evtSpeechStopped:
		r.mu.RLock()
		fn := r.onSpeechStopped
		r.mu.RUnlock()
		if fn != nil {
			fn()
		}

	case evtError:
		apiErr := &APIError{
			Code:    evt.Error.Error.Code,
			Message: evt.Error.Error.Message,
		}
		r.logger.Error("API error", "code", apiErr.Code, "message", apiErr.Message)
		r.emitError(apiErr)
	}
}

// emitError invokes the error callback if set.
func (r *Realtime) emitError(err error) {
	r.mu.RLock()
	fn := r.onError
	r.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Stats returns message counters for diagnostics.
func (r *Realtime) Stats() (sent, received int64) {
	return r.messagesSent.Load(), r.messagesReceived.Load()
}
