// Package segment turns the backend's unordered token stream into stable,
// displayable segments.
package segment

import (
	"strings"
	"unicode/utf8"

	"rt-transcribe/internal/language"
	"rt-transcribe/internal/models"
)

// flushPunctuation ends a plain segment.
const flushPunctuation = ".!?:;"

// maxBufferedTokens caps accumulation on non-punctuated speech.
const maxBufferedTokens = 10

// Sentinel markers the backend embeds at end of utterance.
var sentinels = []string{"<end>", "<fin>", "</s>", "[END]"}

// Segmenter accumulates finalized tokens into segments and surfaces the
// latest partial text as an ephemeral preview.
//
// Not safe for concurrent use. A session's inbound loop is the only
// writer; if processing is ever parallelized, access must be serialized.
type Segmenter struct {
	buffer      []models.Token
	lastPreview string
}

// NewSegmenter creates a segmenter with its buffer and preview state
// initialized eagerly.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		buffer: make([]models.Token, 0, maxBufferedTokens+1),
	}
}

// Process consumes one inbound token batch and returns the segments it
// produced: at most one flushed final segment followed by at most one
// partial preview. Empty batches are ignored.
func (s *Segmenter) Process(tokens []models.Token) []models.Segment {
	if len(tokens) == 0 {
		return nil
	}

	var finals, partials []models.Token
	for _, t := range tokens {
		if t.IsFinal {
			finals = append(finals, t)
		} else {
			partials = append(partials, t)
		}
	}

	var out []models.Segment
	if len(finals) > 0 {
		s.buffer = append(s.buffer, finals...)
		text := concatText(s.buffer)

		// Flush on sentence-ending punctuation, on the hard length cap,
		// or when the batch signals end of utterance (last token final,
		// no partials trailing it).
		endOfUtterance := tokens[len(tokens)-1].IsFinal && len(partials) == 0
		if endsWithAny(text, flushPunctuation) || len(s.buffer) > maxBufferedTokens || endOfUtterance {
			if seg, ok := s.Flush(); ok {
				out = append(out, seg)
			}
		}
	}

	if len(partials) > 0 {
		preview := concatText(partials)
		if preview != "" && preview != s.lastPreview {
			s.lastPreview = preview
			out = append(out, models.Segment{
				Text:      preview,
				Language:  partials[0].Language,
				IsFinal:   false,
				Timestamp: partials[0].StartSeconds(),
			})
		}
	}
	return out
}

// Flush converts the buffered tokens into one final segment and clears
// the buffer. Flushing an empty buffer is a no-op.
func (s *Segmenter) Flush() (models.Segment, bool) {
	if len(s.buffer) == 0 {
		return models.Segment{}, false
	}
	seg := models.Segment{
		Text:       CleanSentinels(concatText(s.buffer)),
		Language:   language.Normalize(s.buffer[0].Language),
		Confidence: meanConfidence(s.buffer),
		IsFinal:    true,
		Timestamp:  s.buffer[0].StartSeconds(),
	}
	s.buffer = s.buffer[:0]
	return seg, true
}

// BufferedTokens returns the number of tokens awaiting flush.
func (s *Segmenter) BufferedTokens() int {
	return len(s.buffer)
}

// CleanSentinels strips backend end-of-utterance markers and trims
// surrounding whitespace.
func CleanSentinels(text string) string {
	for _, m := range sentinels {
		text = strings.ReplaceAll(text, m, "")
	}
	return strings.TrimSpace(text)
}

// IsSentinel returns true if text is exactly one end-of-utterance marker.
func IsSentinel(text string) bool {
	for _, m := range sentinels {
		if text == m {
			return true
		}
	}
	return false
}

func concatText(tokens []models.Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

func endsWithAny(text, punctuation string) bool {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(punctuation, last)
}

// meanConfidence averages over all buffered tokens. A token with no
// reported confidence contributes 0 to the numerator but still counts in
// the denominator; this matches the backend's observed behavior.
func meanConfidence(tokens []models.Token) *float64 {
	if len(tokens) == 0 {
		return nil
	}
	var sum float64
	for _, t := range tokens {
		if t.Confidence != nil {
			sum += *t.Confidence
		}
	}
	mean := sum / float64(len(tokens))
	return &mean
}
