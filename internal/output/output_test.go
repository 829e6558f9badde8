package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"rt-transcribe/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New("yaml", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestTextWriter_FinalSegments(t *testing.T) {
	var buf bytes.Buffer
	w, err := New(FormatText, &buf)
	if err != nil {
		t.Fatal(err)
	}

	if err := w.WriteSegment(models.Segment{Text: "Hello world.", Language: "en", IsFinal: true}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteSegment(models.Segment{
		Text: "Bok svijete.", Language: "hr", IsFinal: true,
		TranslationStatus: models.TranslationTranslation,
	}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "[en] Hello world.\n") {
		t.Errorf("missing original line in %q", out)
	}
	if !strings.Contains(out, "-> [hr] Bok svijete.") {
		t.Errorf("missing translation marker in %q", out)
	}
}

func TestTextWriter_PartialRewrittenByFinal(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatText, &buf)

	w.WriteSegment(models.Segment{Text: "Hel", Language: "en"})
	w.WriteSegment(models.Segment{Text: "Hello.", Language: "en", IsFinal: true})

	out := buf.String()
	if !strings.Contains(out, "\r") {
		t.Errorf("expected carriage return for partial rewrite in %q", out)
	}
	if !strings.HasSuffix(out, "[en] Hello.\n") {
		t.Errorf("final line not last in %q", out)
	}
}

func TestTextWriter_ConfigBanner(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatText, &buf)

	if err := w.WriteConfig("en", "hr", true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "English <-> Croatian") {
		t.Errorf("banner = %q", buf.String())
	}
}

func TestJSONWriter_SegmentFields(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatJSON, &buf)

	seg := models.Segment{
		Text: "Bok.", Language: "hr", IsFinal: true,
		Confidence:        floatPtr(0.9),
		Timestamp:         1.5,
		TranslationStatus: models.TranslationTranslation,
		SourceLanguage:    "en",
		CorrelationID:     "msg-1",
	}
	if err := w.WriteSegment(seg); err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["type"] != "segment" || got["message_id"] != "msg-1" {
		t.Errorf("envelope = %v", got)
	}
	if got["role"] != "translation" || got["source_language"] != "en" {
		t.Errorf("role fields = %v", got)
	}
	if got["direction"] != "en->hr" {
		t.Errorf("direction = %v", got["direction"])
	}
}

func TestJSONWriter_MintsMessageID(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatJSON, &buf)

	w.WriteSegment(models.Segment{Text: "Hi.", Language: "en", IsFinal: true})

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	id, _ := got["message_id"].(string)
	if id == "" {
		t.Error("message_id not minted for segment without correlation id")
	}
}

func TestJSONWriter_SkipsPartials(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatJSON, &buf)

	w.WriteSegment(models.Segment{Text: "partial", Language: "en"})
	if buf.Len() != 0 {
		t.Errorf("partial emitted: %q", buf.String())
	}
}

func TestCSVWriter_RowsAndQuoting(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatCSV, &buf)

	w.WriteSegment(models.Segment{
		Text: `He said "stop", then left.`, Language: "en", IsFinal: true,
		Confidence: floatPtr(0.85), Timestamp: 2.25,
	})
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + row: %q", len(lines), buf.String())
	}
	if lines[0] != "timestamp,speaker,language,text,confidence" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"He said ""stop"", then left."`) {
		t.Errorf("row not quoted: %q", lines[1])
	}
	if !strings.HasPrefix(lines[1], "2.250,user,en,") {
		t.Errorf("row prefix = %q", lines[1])
	}
}

func TestCSVWriter_BlockSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	w, _ := New(FormatCSV, &buf)

	w.WriteBlock(models.Block{Language: "hr", Text: "Prva.\nDruga."})
	w.Flush()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows: %q", len(lines), buf.String())
	}
}
