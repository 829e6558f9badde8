package models

// Segment is the aggregated, caller-facing unit of transcribed or
// translated text built from one or more tokens. Every segment is
// self-contained; consumers only need CorrelationID to pair an original
// with its translation.
type Segment struct {
	Text string `json:"text"`
	// Language is the normalized language tag, empty when unknown.
	Language string `json:"language,omitempty"`
	// Confidence is the arithmetic mean of the contributing tokens'
	// confidences. Nil for partial previews and synthetic error segments.
	Confidence *float64 `json:"confidence,omitempty"`
	IsFinal    bool     `json:"is_final"`
	// Timestamp is the offset from stream start in seconds, derived from
	// the first contributing token.
	Timestamp         float64           `json:"timestamp"`
	TranslationStatus TranslationStatus `json:"translation_status,omitempty"`
	// SourceLanguage is set only on translation segments.
	SourceLanguage string `json:"source_language,omitempty"`
	// CorrelationID links an original segment to its translation. Empty
	// outside translation mode.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Block is a contiguous run of same-language text produced by the file
// replay post-processing step.
type Block struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}
