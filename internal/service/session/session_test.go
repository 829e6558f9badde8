package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rt-transcribe/internal/models"
)

// backendScript drives a fake transcription backend for one connection.
// It receives the decoded config message and the raw connection and is
// responsible for closing it.
type backendScript func(t *testing.T, cfg map[string]any, conn *websocket.Conn)

// startBackend runs an in-process websocket backend that reads the
// configuration handshake and then hands control to script.
func startBackend(t *testing.T, script backendScript) (url string, done <-chan struct{}) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	finished := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer close(finished)

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read config: %v", err)
			return
		}
		var cfg map[string]any
		if err := json.Unmarshal(data, &cfg); err != nil {
			t.Errorf("decode config: %v", err)
			return
		}
		script(t, cfg, conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), finished
}

func sendTokens(t *testing.T, conn *websocket.Conn, tokens ...models.Token) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"tokens": tokens})
	if err != nil {
		t.Fatalf("marshal tokens: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Errorf("write tokens: %v", err)
	}
}

func closeNormally(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}

func collect(t *testing.T, segments <-chan models.Segment) []models.Segment {
	t.Helper()
	var out []models.Segment
	timeout := time.After(10 * time.Second)
	for {
		select {
		case seg, ok := <-segments:
			if !ok {
				return out
			}
			out = append(out, seg)
		case <-timeout:
			t.Fatal("timed out waiting for the segment channel to close")
		}
	}
}

func chunkSource(chunks ...[]byte) <-chan []byte {
	out := make(chan []byte, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out
}

func TestSession_TranscribesTokenBatches(t *testing.T) {
	conf := 0.9
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		// Drain audio and the finalize handshake, replying with tokens
		// after the first audio frame.
		replied := false
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage && !replied {
				replied = true
				sendTokens(t, conn,
					models.Token{Text: "Hello", Language: "en", Confidence: &conf, IsFinal: true},
					models.Token{Text: " world.", Language: "en", Confidence: &conf, IsFinal: true},
				)
			}
			if msgType == websocket.TextMessage && len(data) == 0 {
				closeNormally(conn)
				return
			}
		}
	})

	mgr := New(Config{
		URL:    url,
		APIKey: "test-key",
		Params: Params{PrimaryLanguage: "en", ForeignLanguage: "hr"},
	})

	segments, err := mgr.Run(context.Background(), chunkSource(make([]byte, 256)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := collect(t, segments)
	if len(got) != 1 {
		t.Fatalf("expected 1 segment, got %d: %v", len(got), got)
	}
	if got[0].Text != "Hello world." {
		t.Errorf("expected 'Hello world.', got %q", got[0].Text)
	}
	if !got[0].IsFinal || got[0].Language != "en" {
		t.Errorf("unexpected segment: %+v", got[0])
	}
	if err := mgr.Err(); err != nil {
		t.Errorf("unexpected session error: %v", err)
	}
	if mgr.State() != StateClosed {
		t.Errorf("expected CLOSED, got %v", mgr.State())
	}
}

func TestSession_ConfigHandshake(t *testing.T) {
	cfgCh := make(chan map[string]any, 1)
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		cfgCh <- cfg
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && len(data) == 0 {
				closeNormally(conn)
				return
			}
		}
	})

	mgr := New(Config{
		URL:    url,
		APIKey: "secret",
		Params: Params{
			PrimaryLanguage: "en",
			ForeignLanguage: "hr",
			Translate:       true,
		},
	})
	segments, err := mgr.Run(context.Background(), chunkSource())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	collect(t, segments)

	cfg := <-cfgCh
	if cfg["api_key"] != "secret" {
		t.Errorf("expected api_key forwarded, got %v", cfg["api_key"])
	}
	if cfg["model"] != "stt-rt-preview" {
		t.Errorf("expected default model, got %v", cfg["model"])
	}
	if cfg["audio_format"] != "auto" {
		t.Errorf("file session should use auto format, got %v", cfg["audio_format"])
	}
	if cfg["enable_endpoint_detection"] != true {
		t.Error("file session must enable endpoint detection")
	}
	if cfg["enable_speaker_diarization"] != false {
		t.Error("diarization must stay disabled")
	}
	tr, ok := cfg["translation"].(map[string]any)
	if !ok {
		t.Fatalf("expected translation object, got %v", cfg["translation"])
	}
	if tr["type"] != "two_way" || tr["language_a"] != "en" || tr["language_b"] != "hr" {
		t.Errorf("unexpected translation config: %v", tr)
	}
	hints, _ := cfg["language_hints"].([]any)
	if len(hints) != 2 || hints[0] != "en" || hints[1] != "hr" {
		t.Errorf("expected both languages hinted, got %v", cfg["language_hints"])
	}
	if _, present := cfg["sample_rate"]; present {
		t.Error("file session must not send PCM parameters")
	}
}

func TestSession_ContinuousConfig(t *testing.T) {
	cfgCh := make(chan map[string]any, 1)
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		cfgCh <- cfg
		closeNormally(conn)
	})

	mgr := New(Config{
		URL:    url,
		APIKey: "k",
		Params: Params{
			PrimaryLanguage: "en",
			ForeignLanguage: "hr",
			LanguageHint:    "hr",
			Continuous:      true,
		},
	})
	segments, err := mgr.Run(context.Background(), chunkSource())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	collect(t, segments)

	cfg := <-cfgCh
	if cfg["audio_format"] != "pcm_s16le" {
		t.Errorf("continuous session should use pcm_s16le, got %v", cfg["audio_format"])
	}
	if cfg["enable_endpoint_detection"] != false {
		t.Error("continuous session must disable endpoint detection")
	}
	if cfg["sample_rate"] != float64(16000) {
		t.Errorf("expected sample_rate 16000, got %v", cfg["sample_rate"])
	}
	if cfg["num_channels"] != float64(1) {
		t.Errorf("expected num_channels 1, got %v", cfg["num_channels"])
	}
	if cfg["max_silence_ms"] != float64(2000) {
		t.Errorf("expected max_silence_ms 2000, got %v", cfg["max_silence_ms"])
	}
	hints, _ := cfg["language_hints"].([]any)
	if len(hints) != 1 || hints[0] != "hr" {
		t.Errorf("expected single hint hr, got %v", cfg["language_hints"])
	}
}

func TestSession_FinalizeHandshake(t *testing.T) {
	type frame struct {
		msgType int
		data    []byte
	}
	frames := make(chan frame, 16)
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- frame{msgType, data}
			if msgType == websocket.TextMessage && len(data) == 0 {
				closeNormally(conn)
				return
			}
		}
	})

	mgr := New(Config{URL: url, APIKey: "k", Params: Params{PrimaryLanguage: "en", ForeignLanguage: "hr"}})
	segments, err := mgr.Run(context.Background(), chunkSource([]byte{1, 2}, []byte{3, 4}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	collect(t, segments)
	close(frames)

	var got []frame
	for f := range frames {
		got = append(got, f)
	}
	if len(got) != 4 {
		t.Fatalf("expected audio, audio, finalize, terminator; got %d frames", len(got))
	}
	if got[0].msgType != websocket.BinaryMessage || got[1].msgType != websocket.BinaryMessage {
		t.Error("expected the first two frames to be binary audio")
	}
	var fin map[string]string
	if err := json.Unmarshal(got[2].data, &fin); err != nil || fin["type"] != "finalize" {
		t.Errorf("expected finalize message, got %s", got[2].data)
	}
	if got[3].msgType != websocket.TextMessage || len(got[3].data) != 0 {
		t.Error("expected empty terminator frame last")
	}
}

func TestSession_BackendErrorBecomesSegment(t *testing.T) {
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		payload := []byte(`{"error_code": "X", "error_message": "bad audio"}`)
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			t.Errorf("write error message: %v", err)
		}
		// Keep the connection up briefly; the session must end on its own.
		time.Sleep(200 * time.Millisecond)
		conn.Close()
	})

	mgr := New(Config{URL: url, APIKey: "k", Params: Params{PrimaryLanguage: "en", ForeignLanguage: "hr", Continuous: true}})
	source := make(chan []byte) // never closed; live source
	segments, err := mgr.Run(context.Background(), source)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := collect(t, segments)
	if len(got) != 1 {
		t.Fatalf("expected exactly one error segment, got %d: %v", len(got), got)
	}
	seg := got[0]
	if !seg.IsFinal {
		t.Error("error segment must be final")
	}
	if !strings.Contains(seg.Text, "bad audio") {
		t.Errorf("expected error text to carry the backend message, got %q", seg.Text)
	}
	if seg.Confidence != nil {
		t.Error("error segment must carry no confidence")
	}
	if err := mgr.Err(); err != nil {
		t.Errorf("backend errors are data, not faults; got %v", err)
	}
}

func TestSession_MalformedMessagesSkipped(t *testing.T) {
	conf := 1.0
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		sendTokens(t, conn, models.Token{Text: "Fine.", Language: "en", Confidence: &conf, IsFinal: true})
		// Drain until the terminator, then close.
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && len(data) == 0 {
				closeNormally(conn)
				return
			}
		}
	})

	mgr := New(Config{URL: url, APIKey: "k", Params: Params{PrimaryLanguage: "en", ForeignLanguage: "hr"}})
	segments, err := mgr.Run(context.Background(), chunkSource([]byte{0}))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	got := collect(t, segments)
	if len(got) != 1 || got[0].Text != "Fine." {
		t.Fatalf("expected the valid batch to survive the malformed one, got %v", got)
	}
}

func TestSession_CancellationIsClean(t *testing.T) {
	sawFinalize := make(chan struct{}, 1)
	url, _ := startBackend(t, func(t *testing.T, cfg map[string]any, conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage && len(data) > 0 {
				var fin map[string]string
				if json.Unmarshal(data, &fin) == nil && fin["type"] == "finalize" {
					select {
					case sawFinalize <- struct{}{}:
					default:
					}
				}
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	mgr := New(Config{URL: url, APIKey: "k", Params: Params{PrimaryLanguage: "en", ForeignLanguage: "hr", Continuous: true}})

	source := make(chan []byte)
	segments, err := mgr.Run(ctx, source)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	cancel()

	got := collect(t, segments)
	for _, seg := range got {
		if strings.Contains(seg.Text, "error") {
			t.Errorf("cancellation must not surface an error segment, got %q", seg.Text)
		}
	}
	select {
	case <-sawFinalize:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a best-effort finalize message on cancellation")
	}
	if err := mgr.Err(); err != nil {
		t.Errorf("cancellation must not be reported as an error, got %v", err)
	}
	if mgr.State() != StateClosed {
		t.Errorf("expected CLOSED after cancellation, got %v", mgr.State())
	}
}

func TestSession_DialFailure(t *testing.T) {
	mgr := New(Config{URL: "ws://127.0.0.1:1", APIKey: "k", Params: Params{}})
	_, err := mgr.Run(context.Background(), chunkSource())
	if err == nil {
		t.Fatal("expected a connect error")
	}
	if mgr.State() != StateClosed {
		t.Errorf("expected CLOSED after failed dial, got %v", mgr.State())
	}
}
