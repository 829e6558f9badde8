// Package output renders segments to a terminal or a machine-readable
// stream. The text writer rewrites partial lines in place; json and csv
// writers only emit finals.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"rt-transcribe/internal/language"
	"rt-transcribe/internal/models"
)

// Format selects a writer implementation.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Writer renders transcription output.
type Writer interface {
	// WriteConfig emits a one-time header describing the session.
	WriteConfig(primary, foreign string, translate bool) error
	// WriteSegment renders one segment. Partial segments may be
	// rewritten by the next call.
	WriteSegment(seg models.Segment) error
	// WriteBlock renders one replay output block.
	WriteBlock(b models.Block) error
	// Flush forces buffered output out.
	Flush() error
}

// New returns a writer for the given format, printing to w.
func New(f Format, w io.Writer) (Writer, error) {
	switch f {
	case FormatText, "":
		return &textWriter{w: w}, nil
	case FormatJSON:
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	case FormatCSV:
		cw := &csvWriter{w: csv.NewWriter(w)}
		return cw, nil
	default:
		return nil, fmt.Errorf("output: unknown format %q", f)
	}
}

type textWriter struct {
	w           io.Writer
	partialOpen bool
}

func (t *textWriter) WriteConfig(primary, foreign string, translate bool) error {
	if !translate {
		_, err := fmt.Fprintf(t.w, "Transcribing (%s)\n", language.Name(primary))
		return err
	}
	_, err := fmt.Fprintf(t.w, "Transcribing with %s <-> %s translation\n",
		language.Name(primary), language.Name(foreign))
	return err
}

func (t *textWriter) WriteSegment(seg models.Segment) error {
	if seg.Text == "" {
		return nil
	}
	prefix := ""
	if seg.TranslationStatus == models.TranslationTranslation {
		prefix = "  -> "
	}
	if seg.IsFinal {
		if t.partialOpen {
			if _, err := fmt.Fprint(t.w, "\r\033[K"); err != nil {
				return err
			}
			t.partialOpen = false
		}
		_, err := fmt.Fprintf(t.w, "%s[%s] %s\n", prefix, seg.Language, seg.Text)
		return err
	}
	// Partial preview: rewrite the current line.
	t.partialOpen = true
	_, err := fmt.Fprintf(t.w, "\r\033[K%s[%s] %s", prefix, seg.Language, seg.Text)
	return err
}

func (t *textWriter) WriteBlock(b models.Block) error {
	_, err := fmt.Fprintf(t.w, "[%s]\n%s\n\n", language.Name(b.Language), b.Text)
	return err
}

func (t *textWriter) Flush() error {
	if t.partialOpen {
		t.partialOpen = false
		_, err := fmt.Fprintln(t.w)
		return err
	}
	return nil
}

type jsonWriter struct {
	enc *json.Encoder
}

type jsonConfig struct {
	Type               string `json:"type"`
	PrimaryLanguage    string `json:"primary_language"`
	PrimaryName        string `json:"primary_language_name"`
	ForeignLanguage    string `json:"foreign_language,omitempty"`
	ForeignName        string `json:"foreign_language_name,omitempty"`
	TranslationEnabled bool   `json:"translation_enabled"`
}

type jsonSegment struct {
	Type           string   `json:"type"`
	MessageID      string   `json:"message_id"`
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Role           string   `json:"role,omitempty"`
	SourceLanguage string   `json:"source_language,omitempty"`
	Direction      string   `json:"direction,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Timestamp      float64  `json:"timestamp"`
}

type jsonBlock struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

func (j *jsonWriter) WriteConfig(primary, foreign string, translate bool) error {
	cfg := jsonConfig{
		Type:               "config",
		PrimaryLanguage:    primary,
		PrimaryName:        language.Name(primary),
		TranslationEnabled: translate,
	}
	if translate {
		cfg.ForeignLanguage = foreign
		cfg.ForeignName = language.Name(foreign)
	}
	return j.enc.Encode(cfg)
}

func (j *jsonWriter) WriteSegment(seg models.Segment) error {
	if !seg.IsFinal || seg.Text == "" {
		return nil
	}
	id := seg.CorrelationID
	if id == "" {
		id = uuid.NewString()
	}
	out := jsonSegment{
		Type:       "segment",
		MessageID:  id,
		Text:       seg.Text,
		Language:   seg.Language,
		Confidence: seg.Confidence,
		Timestamp:  seg.Timestamp,
	}
	switch seg.TranslationStatus {
	case models.TranslationOriginal:
		out.Role = "original"
	case models.TranslationTranslation:
		out.Role = "translation"
		out.SourceLanguage = seg.SourceLanguage
		if seg.SourceLanguage != "" {
			out.Direction = seg.SourceLanguage + "->" + seg.Language
		}
	}
	return j.enc.Encode(out)
}

func (j *jsonWriter) WriteBlock(b models.Block) error {
	return j.enc.Encode(jsonBlock{Type: "block", Language: b.Language, Text: b.Text})
}

func (j *jsonWriter) Flush() error { return nil }

type csvWriter struct {
	w           *csv.Writer
	wroteHeader bool
}

var csvHeader = []string{"timestamp", "speaker", "language", "text", "confidence"}

func (c *csvWriter) WriteConfig(primary, foreign string, translate bool) error {
	return c.header()
}

func (c *csvWriter) header() error {
	if c.wroteHeader {
		return nil
	}
	c.wroteHeader = true
	return c.w.Write(csvHeader)
}

func (c *csvWriter) WriteSegment(seg models.Segment) error {
	if !seg.IsFinal || seg.Text == "" {
		return nil
	}
	if err := c.header(); err != nil {
		return err
	}
	conf := ""
	if seg.Confidence != nil {
		conf = strconv.FormatFloat(*seg.Confidence, 'f', 3, 64)
	}
	return c.w.Write([]string{
		strconv.FormatFloat(seg.Timestamp, 'f', 3, 64),
		"user",
		seg.Language,
		seg.Text,
		conf,
	})
}

func (c *csvWriter) WriteBlock(b models.Block) error {
	if err := c.header(); err != nil {
		return err
	}
	// One row per line so multi-sentence blocks stay readable.
	for _, line := range strings.Split(b.Text, "\n") {
		if line == "" {
			continue
		}
		if err := c.w.Write([]string{"", "user", b.Language, line, ""}); err != nil {
			return err
		}
	}
	return nil
}

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
