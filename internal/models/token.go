// Package models defines the data structures exchanged with the
// transcription backend and emitted to consumers.
package models

// TranslationStatus marks a token's role in a two-way translation stream.
type TranslationStatus string

const (
	// TranslationNone - token is plain recognition output (wire value may
	// be "none" or the field may be absent entirely).
	TranslationNone TranslationStatus = "none"
	// TranslationOriginal - token belongs to the speaker's own utterance.
	TranslationOriginal TranslationStatus = "original"
	// TranslationTranslation - token belongs to the backend's translation
	// of a preceding original utterance.
	TranslationTranslation TranslationStatus = "translation"
)

// Active returns true if the token participates in translation pairing.
func (s TranslationStatus) Active() bool {
	return s == TranslationOriginal || s == TranslationTranslation
}

// Token is the atomic unit received from the backend. Optional wire fields
// are modeled as pointers; nil means the backend did not report them.
// Tokens are never mutated after decoding.
type Token struct {
	Text              string            `json:"text"`
	Language          string            `json:"language,omitempty"`
	Confidence        *float64          `json:"confidence,omitempty"`
	IsFinal           bool              `json:"is_final"`
	StartMs           *int64            `json:"start_ms,omitempty"`
	TranslationStatus TranslationStatus `json:"translation_status,omitempty"`
	SourceLanguage    string            `json:"source_language,omitempty"`
}

// StartSeconds returns the token's offset from stream start in seconds,
// or 0 when the backend did not report one.
func (t Token) StartSeconds() float64 {
	if t.StartMs == nil {
		return 0
	}
	return float64(*t.StartMs) / 1000.0
}
