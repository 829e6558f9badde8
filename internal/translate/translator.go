// Package translate provides LLM-backed translation and language
// detection between a configured language pair. Callers construct an
// explicit Translator; there is no process-global instance.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"rt-transcribe/internal/language"
	"rt-transcribe/internal/observability/logging"
)

// Default models. The detection prompt needs a single-token answer, so
// a cheaper model is enough.
const (
	DefaultModel       = "gpt-5"
	DefaultDetectModel = "gpt-3.5-turbo"
)

// croatianChars short-circuits detection for the most common foreign
// language without an API round trip.
const croatianChars = "čćžšđČĆŽŠĐ"

// Pair is the configured language pair.
type Pair struct {
	Primary string // e.g. "en"
	Foreign string // e.g. "hr"
}

// Config holds translator configuration.
type Config struct {
	APIKey string
	Pair   Pair
	// Model defaults to DefaultModel; DetectModel to DefaultDetectModel.
	Model       string
	DetectModel string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// Translator translates text between the configured language pair.
type Translator struct {
	client      openai.Client
	pair        Pair
	model       string
	detectModel string
	log         zerolog.Logger
}

// New creates a translator for one language pair.
func New(cfg Config) *Translator {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	detectModel := cfg.DetectModel
	if detectModel == "" {
		detectModel = DefaultDetectModel
	}
	return &Translator{
		client:      openai.NewClient(opts...),
		pair:        cfg.Pair,
		model:       model,
		detectModel: detectModel,
		log:         logging.WithComponent("translate"),
	}
}

// Detect classifies text as the primary or the foreign language. It
// falls back to the primary language when the model is unavailable or
// answers ambiguously.
func (t *Translator) Detect(ctx context.Context, text string) string {
	if t.pair.Foreign == "hr" && strings.ContainsAny(text, croatianChars) {
		return t.pair.Foreign
	}

	sample := text
	if len(sample) > 100 {
		sample = sample[:100]
	}
	system := fmt.Sprintf(
		"You are a language detector. Reply with ONLY '%s' for %s or '%s' for %s.",
		t.pair.Primary, language.Name(t.pair.Primary),
		t.pair.Foreign, language.Name(t.pair.Foreign),
	)

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: t.detectModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage("What language is this: " + sample),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(5),
	})
	if err != nil || len(resp.Choices) == 0 {
		t.log.Debug().Err(err).Msg("Language detection fell back to primary")
		return t.pair.Primary
	}

	answer := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	if strings.Contains(answer, t.pair.Foreign) {
		return t.pair.Foreign
	}
	return t.pair.Primary
}

// Result is one completed translation.
type Result struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

// Translate translates text between the pair. Empty sourceLang triggers
// detection; empty targetLang picks the other half of the pair. When
// source and target match, the text is returned unchanged.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	if sourceLang == "" {
		sourceLang = t.Detect(ctx, text)
	}
	if targetLang == "" {
		if sourceLang == t.pair.Primary {
			targetLang = t.pair.Foreign
		} else {
			targetLang = t.pair.Primary
		}
	}
	if sourceLang == targetLang {
		return Result{Text: text, SourceLanguage: sourceLang, TargetLanguage: targetLang}, nil
	}

	system := fmt.Sprintf(
		"You are a professional %s to %s translator. Translate the following text accurately and naturally to %s. Reply with ONLY the translation, no explanations.",
		language.Name(sourceLang), language.Name(targetLang), language.Name(targetLang),
	)

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: t.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(500),
	})
	if err != nil {
		return Result{SourceLanguage: sourceLang, TargetLanguage: targetLang}, fmt.Errorf("translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{SourceLanguage: sourceLang, TargetLanguage: targetLang}, fmt.Errorf("translate: empty completion")
	}

	return Result{
		Text:           strings.TrimSpace(resp.Choices[0].Message.Content),
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	}, nil
}
