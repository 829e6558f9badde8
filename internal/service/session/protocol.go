package session

import (
	"encoding/json"

	"rt-transcribe/internal/models"
)

// Backend defaults.
const (
	// DefaultURL is the backend's realtime websocket endpoint.
	DefaultURL = "wss://stt-rt.soniox.com/transcribe-websocket"

	defaultModel = "stt-rt-preview"
)

// Audio constants for the backend's native format.
const (
	// SampleRate is the PCM sample rate the backend expects.
	SampleRate = 16000
	// Channels is mono.
	Channels = 1
	// ChunkSize is the outbound frame size in bytes. 4096 bytes of
	// 16 kHz mono s16le PCM is 128 ms of audio.
	ChunkSize = 4096
)

// Endpointing parameters for continuous (live) sessions.
const (
	speechThreshold        = 0.5
	maxSilenceMs           = 2000
	silenceTimeoutMs       = 60000
	maxNonFinalTokensDurMs = 4000
)

// translationRequest enables backend-side two-way translation between a
// language pair.
type translationRequest struct {
	Type      string `json:"type"`
	LanguageA string `json:"language_a"`
	LanguageB string `json:"language_b"`
}

// configMessage is the one-time configuration handshake sent right after
// connecting, before any audio.
type configMessage struct {
	APIKey                       string              `json:"api_key"`
	Model                        string              `json:"model"`
	AudioFormat                  string              `json:"audio_format"`
	EnableSpeakerDiarization     bool                `json:"enable_speaker_diarization"`
	EnableNonFinalTokens         bool                `json:"enable_non_final_tokens"`
	EnableEndpointDetection      bool                `json:"enable_endpoint_detection"`
	EnableLanguageIdentification bool                `json:"enable_language_identification"`
	EnableAutomaticPunctuation   bool                `json:"enable_automatic_punctuation"`
	EnableProfanityFilter        bool                `json:"enable_profanity_filter"`
	LanguageHints                []string            `json:"language_hints"`
	Translation                  *translationRequest `json:"translation,omitempty"`

	// PCM and endpointing parameters, continuous sessions only. For file
	// replay the backend sniffs the container format instead.
	NumChannels                 int     `json:"num_channels,omitempty"`
	SampleRate                  int     `json:"sample_rate,omitempty"`
	SpeechThreshold             float64 `json:"speech_threshold,omitempty"`
	MaxSilenceMs                int     `json:"max_silence_ms,omitempty"`
	SilenceTimeoutMs            int     `json:"silence_timeout_ms,omitempty"`
	MaxNonFinalTokensDurationMs int     `json:"max_non_final_tokens_duration_ms,omitempty"`
}

// finalizeMessage tells the backend no more audio is coming and to flush
// remaining results.
type finalizeMessage struct {
	Type string `json:"type"`
}

// serverMessage is one inbound frame from the backend: either a token
// batch or an error report.
type serverMessage struct {
	Tokens []models.Token `json:"tokens"`

	Error        string          `json:"error"`
	ErrorCode    json.RawMessage `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
}

func (m *serverMessage) hasError() bool {
	return m.Error != "" || len(m.ErrorCode) > 0 || m.ErrorMessage != ""
}

func (m *serverMessage) errorText() string {
	if m.Error != "" {
		return m.Error
	}
	if m.ErrorMessage != "" {
		return m.ErrorMessage
	}
	return "unknown error"
}

// Params configures one transcription session.
type Params struct {
	// PrimaryLanguage and ForeignLanguage are the configured language
	// pair, used for hints and two-way translation.
	PrimaryLanguage string
	ForeignLanguage string
	// LanguageHint narrows recognition: "auto" (or empty) hints both
	// configured languages, any other value hints that single tag.
	LanguageHint string
	// Translate enables backend-side two-way translation and switches
	// inbound routing to the pairing engine.
	Translate bool
	// Continuous marks a live, indefinite stream (as opposed to finite
	// file replay).
	Continuous bool
	// Model overrides the default recognition model.
	Model string
}

func (p Params) hints() []string {
	switch p.LanguageHint {
	case "", "auto":
		return []string{p.PrimaryLanguage, p.ForeignLanguage}
	default:
		return []string{p.LanguageHint}
	}
}

func (p Params) model() string {
	if p.Model != "" {
		return p.Model
	}
	return defaultModel
}

// buildConfig assembles the configuration handshake for one session.
func buildConfig(apiKey string, p Params) configMessage {
	cfg := configMessage{
		APIKey:                       apiKey,
		Model:                        p.model(),
		AudioFormat:                  "auto",
		EnableSpeakerDiarization:     false,
		EnableNonFinalTokens:         true,
		EnableEndpointDetection:      !p.Continuous,
		EnableLanguageIdentification: true,
		EnableAutomaticPunctuation:   true,
		EnableProfanityFilter:        false,
		LanguageHints:                p.hints(),
	}
	if p.Translate {
		cfg.Translation = &translationRequest{
			Type:      "two_way",
			LanguageA: p.PrimaryLanguage,
			LanguageB: p.ForeignLanguage,
		}
	}
	if p.Continuous {
		cfg.AudioFormat = "pcm_s16le"
		cfg.NumChannels = Channels
		cfg.SampleRate = SampleRate
		cfg.SpeechThreshold = speechThreshold
		cfg.MaxSilenceMs = maxSilenceMs
		cfg.SilenceTimeoutMs = silenceTimeoutMs
		cfg.MaxNonFinalTokensDurationMs = maxNonFinalTokensDurMs
	}
	return cfg
}
