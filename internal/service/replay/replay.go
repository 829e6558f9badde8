// Package replay feeds a static audio buffer through the streaming
// session at real-time pace and post-processes the resulting segments
// into per-language text blocks. It operates on already-conformant raw
// audio bytes; transcoding is the caller's problem.
package replay

import (
	"context"
	"strings"
	"time"

	"rt-transcribe/internal/models"
	"rt-transcribe/internal/service/segment"
	"rt-transcribe/internal/service/session"
)

const bytesPerSample = 2 // 16-bit PCM

// Source slices data into fixed-size chunks and delivers them at the
// pace the audio would play back, so the backend sees a live-like
// stream. The channel closes after the last chunk or when ctx is
// cancelled.
func Source(ctx context.Context, data []byte, chunkSize, sampleRate int) <-chan []byte {
	out := make(chan []byte)
	interval := time.Duration(chunkSize) * time.Second /
		time.Duration(sampleRate*bytesPerSample*session.Channels)

	go func() {
		defer close(out)
		for off := 0; off < len(data); off += chunkSize {
			end := off + chunkSize
			if end > len(data) {
				end = len(data)
			}
			select {
			case out <- data[off:end]:
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Transcribe runs one complete non-continuous session over raw audio
// bytes and returns the per-language blocks.
func Transcribe(ctx context.Context, mgr *session.Manager, data []byte) ([]models.Block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source := Source(ctx, data, session.ChunkSize, session.SampleRate)
	segments, err := mgr.Run(ctx, source)
	if err != nil {
		return nil, err
	}

	var finals []models.Segment
	for seg := range segments {
		if seg.IsFinal {
			finals = append(finals, seg)
		}
	}
	if err := mgr.Err(); err != nil {
		return nil, err
	}
	return GroupByLanguage(finals), nil
}

// GroupByLanguage merges consecutive same-language final segments into
// contiguous blocks, splitting only where the language tag changes.
// Pure sentinel segments are dropped and sentinel markers inside blocks
// are stripped.
func GroupByLanguage(segments []models.Segment) []models.Block {
	var blocks []models.Block
	for _, s := range segments {
		if !s.IsFinal {
			continue
		}
		text := strings.TrimSpace(s.Text)
		if text == "" || segment.IsSentinel(text) {
			continue
		}
		lang := s.Language
		if lang == "" {
			lang = "unknown"
		}
		if len(blocks) > 0 && blocks[len(blocks)-1].Language == lang {
			blocks[len(blocks)-1].Text += " " + text
		} else {
			blocks = append(blocks, models.Block{Text: text, Language: lang})
		}
	}
	for i := range blocks {
		blocks[i].Text = segment.CleanSentinels(blocks[i].Text)
	}
	return blocks
}
