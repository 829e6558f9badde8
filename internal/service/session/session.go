// Package session owns the duplex websocket connection to the
// transcription backend for the duration of one run: it streams outbound
// audio while concurrently consuming inbound token batches, and executes
// the configuration and finalize handshakes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rt-transcribe/internal/models"
	"rt-transcribe/internal/observability/logging"
	"rt-transcribe/internal/observability/metrics"
	"rt-transcribe/internal/service/segment"
)

const (
	// finalizeWait gives the backend time to deliver trailing results
	// between the finalize message and the stream terminator.
	finalizeWait = 500 * time.Millisecond

	// cancelWait is the shorter pause used by the best-effort finalize
	// handshake during cancellation.
	cancelWait = 100 * time.Millisecond

	// yieldEvery is the outbound chunk interval at which a continuous
	// session briefly sleeps so the inbound side never starves.
	yieldEvery = 10
)

// Config holds session manager configuration.
type Config struct {
	// URL defaults to DefaultURL.
	URL    string
	APIKey string
	Params Params
	// Metrics defaults to metrics.DefaultMetrics.
	Metrics *metrics.Metrics
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Manager runs one transcription session. A Manager is single-use: Run
// may be called once.
type Manager struct {
	id      string
	url     string
	apiKey  string
	params  Params
	dialer  *websocket.Dialer
	metrics *metrics.Metrics
	log     zerolog.Logger

	state atomic.Int32

	mu  sync.Mutex
	err error
}

// New creates a session manager. The zero values of Config fall back to
// the package defaults.
func New(cfg Config) *Manager {
	id := uuid.NewString()
	m := &Manager{
		id:      id,
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		params:  cfg.Params,
		dialer:  cfg.Dialer,
		metrics: cfg.Metrics,
		log:     logging.WithSession(id, cfg.Params.Continuous),
	}
	if m.url == "" {
		m.url = DefaultURL
	}
	if m.dialer == nil {
		m.dialer = websocket.DefaultDialer
	}
	if m.metrics == nil {
		m.metrics = metrics.DefaultMetrics
	}
	return m
}

// ID returns the session's identifier, used as the event key.
func (m *Manager) ID() string {
	return m.id
}

// State returns the session's current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Err returns the fatal session error, if any. Valid once the segment
// channel has closed. Backend-reported errors are not fatal; they arrive
// as error segments instead.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Run opens the transport, performs the configuration handshake, and
// starts the streaming state: audio chunks are drawn from source and
// every produced segment is delivered on the returned channel, which
// closes when the session ends. Cancelling ctx triggers the best-effort
// finalize handshake and a clean shutdown; it is never reported as an
// error.
func (m *Manager) Run(ctx context.Context, source <-chan []byte) (<-chan models.Segment, error) {
	m.setState(StateConnecting)
	conn, resp, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		m.setState(StateClosed)
		if resp != nil {
			return nil, fmt.Errorf("connect %s: %w (status %s)", m.url, err, resp.Status)
		}
		return nil, fmt.Errorf("connect %s: %w", m.url, err)
	}

	m.setState(StateConfiguring)
	if err := conn.WriteJSON(buildConfig(m.apiKey, m.params)); err != nil {
		conn.Close()
		m.setState(StateClosed)
		return nil, fmt.Errorf("send config: %w", err)
	}

	m.setState(StateStreaming)
	m.log.Info().Str("url", m.url).Bool("translate", m.params.Translate).Msg("Session streaming")

	segments := make(chan models.Segment, 16)
	go m.stream(ctx, conn, source, segments)
	return segments, nil
}

func (m *Manager) stream(ctx context.Context, conn *websocket.Conn, source <-chan []byte, segments chan<- models.Segment) {
	start := time.Now()
	m.metrics.RecordSessionStart()
	defer func() {
		conn.Close()
		m.setState(StateClosed)
		close(segments)
		m.metrics.RecordSessionEnd(time.Since(start).Seconds())
		m.log.Info().Dur("duration", time.Since(start)).Msg("Session closed")
	}()

	inDone := make(chan struct{})
	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		if err := m.outbound(ctx, conn, source, inDone); err != nil {
			m.setErr(err)
			m.metrics.RecordTransportError("outbound")
			// Unblock the inbound read; the session is over.
			conn.Close()
		}
	}()

	m.inbound(ctx, conn, segments)
	close(inDone)
	<-outDone
}

// outbound forwards audio chunks as binary frames until the source is
// exhausted or the session is cancelled. It is the connection's only
// writer once streaming starts.
func (m *Manager) outbound(ctx context.Context, conn *websocket.Conn, source <-chan []byte, inDone <-chan struct{}) error {
	chunks := 0
	for {
		select {
		case <-ctx.Done():
			m.setState(StateFinalizing)
			m.bestEffortFinalize(conn)
			conn.Close()
			return nil
		case <-inDone:
			// The inbound side ended first; the transport is going away.
			return nil
		case chunk, ok := <-source:
			if !ok {
				if m.params.Continuous {
					// Live source closed without cancellation; leave the
					// connection to the backend.
					return nil
				}
				m.setState(StateFinalizing)
				return m.finalize(conn)
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send audio: %w", err)
			}
			m.metrics.RecordAudioSent(len(chunk))
			chunks++
			if m.params.Continuous && chunks%yieldEvery == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// finalize runs the end-of-stream handshake for a finite session: the
// finalize message, a pause for trailing results, then the empty
// terminator frame.
func (m *Manager) finalize(conn *websocket.Conn) error {
	if err := conn.WriteJSON(finalizeMessage{Type: "finalize"}); err != nil {
		return fmt.Errorf("send finalize: %w", err)
	}
	time.Sleep(finalizeWait)
	if err := conn.WriteMessage(websocket.TextMessage, []byte{}); err != nil {
		return fmt.Errorf("send terminator: %w", err)
	}
	return nil
}

// bestEffortFinalize runs the same handshake during cancellation. The
// transport may already be gone, so every failure here is swallowed.
func (m *Manager) bestEffortFinalize(conn *websocket.Conn) {
	if err := conn.WriteJSON(finalizeMessage{Type: "finalize"}); err != nil {
		return
	}
	time.Sleep(cancelWait)
	_ = conn.WriteMessage(websocket.TextMessage, []byte{})
}

// inbound reads backend messages until the transport closes, routing
// token batches through the segmenter or the pairing engine. It is the
// sole writer of both, so no locking is needed.
func (m *Manager) inbound(ctx context.Context, conn *websocket.Conn, segments chan<- models.Segment) {
	var (
		seg  *segment.Segmenter
		pair *segment.Pairing
	)
	if m.params.Translate {
		pair = segment.NewPairing()
	} else {
		seg = segment.NewSegmenter()
	}

	// At end of stream trailing text may never see closing punctuation,
	// so whatever the active engine still buffers is flushed on the way
	// out.
	drain := func() {
		var out []models.Segment
		if pair != nil {
			out = pair.Flush()
		} else if final, ok := seg.Flush(); ok {
			out = append(out, final)
		}
		for _, s := range out {
			if !m.deliver(ctx, segments, s) {
				return
			}
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.expectedClose(ctx, err) {
				drain()
				return
			}
			m.metrics.RecordTransportError("inbound")
			m.log.Warn().Err(err).Msg("Transport fault during streaming")
			m.deliver(ctx, segments, errorSegment(fmt.Sprintf("connection lost: %v", err)))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed inbound messages are skipped, not fatal.
			continue
		}

		if msg.hasError() {
			m.log.Warn().Str("backendError", msg.errorText()).Msg("Backend reported an error")
			m.deliver(ctx, segments, errorSegment(msg.errorText()))
			return
		}

		if len(msg.Tokens) == 0 {
			continue
		}
		finals := 0
		for _, t := range msg.Tokens {
			if t.IsFinal {
				finals++
			}
		}
		m.metrics.RecordTokens(finals, len(msg.Tokens)-finals)

		var out []models.Segment
		if pair != nil {
			out = pair.Process(msg.Tokens)
		} else {
			out = seg.Process(msg.Tokens)
		}
		for _, s := range out {
			if !m.deliver(ctx, segments, s) {
				return
			}
		}
	}
}

func (m *Manager) deliver(ctx context.Context, segments chan<- models.Segment, s models.Segment) bool {
	switch {
	case !s.IsFinal:
		m.metrics.RecordSegment("partial")
	case s.Confidence == nil && s.Language == "":
		m.metrics.RecordSegment("error")
	default:
		m.metrics.RecordSegment("final")
	}
	select {
	case segments <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

// expectedClose reports whether a read error is part of a normal
// shutdown: caller cancellation, the remote peer closing after the
// finalize handshake, or teardown after an outbound fault (which is
// already surfaced through Err).
func (m *Manager) expectedClose(ctx context.Context, err error) bool {
	if ctx.Err() != nil || m.Err() != nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return false
}

// errorSegment converts a backend or transport problem into data, so
// consumers of the segment stream never need a separate error path for
// ordinary backend-reported failures.
func errorSegment(text string) models.Segment {
	return models.Segment{
		Text:    fmt.Sprintf("[transcription error: %s]", text),
		IsFinal: true,
	}
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.err = err
	}
}
