package segment

import (
	"github.com/google/uuid"

	"rt-transcribe/internal/language"
	"rt-transcribe/internal/models"
)

// pairingPunctuation ends a role's buffer. Unlike the plain segmenter the
// comma is included and the semicolon is not, so originals and their
// translations flush at comparable clause boundaries.
const pairingPunctuation = ".!?,:"

// Pairing segments the original-speech and translation-speech roles
// independently and links each original segment to the translation that
// follows it through a shared correlation id. Exactly one id is current
// at a time; flushing an original always mints a fresh one.
//
// Not safe for concurrent use; the session's inbound loop is the only
// writer.
type Pairing struct {
	original    []models.Token
	translation []models.Token
	currentID   string
	newID       func() string
}

// NewPairing creates a pairing engine with both role buffers initialized
// eagerly.
func NewPairing() *Pairing {
	return &Pairing{
		original:    make([]models.Token, 0, maxBufferedTokens),
		translation: make([]models.Token, 0, maxBufferedTokens),
		newID:       uuid.NewString,
	}
}

// Process consumes one inbound token batch and returns the segments
// flushed by it. Non-final tokens, tokens with empty text, and tokens
// without a translation role are ignored.
func (p *Pairing) Process(tokens []models.Token) []models.Segment {
	var out []models.Segment
	for _, t := range tokens {
		if t.Text == "" || !t.IsFinal {
			continue
		}
		switch t.TranslationStatus {
		case models.TranslationOriginal:
			p.original = append(p.original, t)
			if endsWithAny(concatText(p.original), pairingPunctuation) {
				out = append(out, p.flushOriginal())
			}
		case models.TranslationTranslation:
			p.translation = append(p.translation, t)
			if endsWithAny(concatText(p.translation), pairingPunctuation) {
				out = append(out, p.flushTranslation(t.SourceLanguage))
			}
		}
	}
	return out
}

// Flush drains whatever both buffers still hold, original first so the
// pair keeps its usual ordering. Used at end of stream, where trailing
// text may never see closing punctuation.
func (p *Pairing) Flush() []models.Segment {
	var out []models.Segment
	if len(p.original) > 0 {
		out = append(out, p.flushOriginal())
	}
	if len(p.translation) > 0 {
		src := p.translation[len(p.translation)-1].SourceLanguage
		out = append(out, p.flushTranslation(src))
	}
	return out
}

// CurrentID returns the correlation id the next translation flush will
// carry. Empty until the first flush.
func (p *Pairing) CurrentID() string {
	return p.currentID
}

func (p *Pairing) flushOriginal() models.Segment {
	p.currentID = p.newID()
	seg := p.buildSegment(p.original, models.TranslationOriginal)
	p.original = p.original[:0]
	return seg
}

func (p *Pairing) flushTranslation(sourceLanguage string) models.Segment {
	if p.currentID == "" {
		// No original has flushed yet this session; mint an orphan id so
		// the segment still carries a usable pairing key.
		p.currentID = p.newID()
	}
	seg := p.buildSegment(p.translation, models.TranslationTranslation)
	seg.SourceLanguage = sourceLanguage
	p.translation = p.translation[:0]
	return seg
}

func (p *Pairing) buildSegment(buf []models.Token, role models.TranslationStatus) models.Segment {
	last := buf[len(buf)-1]
	return models.Segment{
		Text:              CleanSentinels(concatText(buf)),
		Language:          language.Normalize(last.Language),
		Confidence:        meanConfidence(buf),
		IsFinal:           true,
		Timestamp:         buf[0].StartSeconds(),
		TranslationStatus: role,
		CorrelationID:     p.currentID,
	}
}
