// Package tts adapts a text-to-speech backend for the episode pipeline:
// input-length ceilings, retry with linear backoff, and per-speaker voice
// selection for dialogue lines.
package tts

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// speakPrefix keeps the backend from performing anything that is not in the
// script. Generated scripts occasionally leak stage directions.
const speakPrefix = "Read the following text aloud exactly as written, speaking only the literal words. Do not perform stage directions, sound effects, or speaker labels.\n\n"

const (
	// MaxInputChars bounds one synthesis request for normal episodes.
	MaxInputChars = 4000
	// ShortModeMaxChars is the tighter bound used for short-form episodes.
	ShortModeMaxChars = 1000

	maxRetries  = 2
	backoffUnit = time.Second
)

// Backend is one raw synthesis call: text plus voice in, audio bytes and a
// mime-type hint out.
type Backend interface {
	Synthesize(ctx context.Context, text, voice string) (audio []byte, mimeType string, err error)
}

// OpenAIBackend implements Backend on the OpenAI speech endpoint.
type OpenAIBackend struct {
	client *openai.Client
	model  openai.SpeechModel
	format openai.SpeechResponseFormat
}

func NewOpenAIBackend(client *openai.Client, model openai.SpeechModel) *OpenAIBackend {
	if model == "" {
		model = openai.TTSModel1
	}
	return &OpenAIBackend{client: client, model: model, format: openai.SpeechResponseFormatWav}
}

func (b *OpenAIBackend) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	resp, err := b.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          b.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: b.format,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to call speech api: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read speech stream: %w", err)
	}

	mime := "audio/wav"
	if b.format == openai.SpeechResponseFormatPcm {
		mime = "audio/L16;codec=pcm;rate=24000"
	}
	return audio, mime, nil
}

// Synthesizer wraps a Backend with the pipeline's safety policies.
type Synthesizer struct {
	backend   Backend
	shortMode bool

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewSynthesizer(backend Backend, shortMode bool) *Synthesizer {
	return &Synthesizer{backend: backend, shortMode: shortMode, sleep: time.Sleep}
}

func (s *Synthesizer) maxChars() int {
	if s.shortMode {
		return ShortModeMaxChars
	}
	return MaxInputChars
}

// truncate trims text to the input ceiling, marking the cut with an
// ellipsis. Truncation trades fidelity for a guaranteed request.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}

// Synthesize renders one text chunk with the given voice. Transient backend
// failures are retried up to twice with linear backoff; an empty audio
// payload is an error.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	input := speakPrefix + truncate(text, s.maxChars())

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			s.sleep(backoffUnit * time.Duration(attempt))
			log.Printf("Retrying speech synthesis (attempt %d/%d)", attempt+1, maxRetries+1)
		}

		audio, mime, err := s.backend.Synthesize(ctx, input, voice)
		if err != nil {
			lastErr = err
			continue
		}
		if len(audio) == 0 {
			lastErr = fmt.Errorf("speech backend returned no audio")
			continue
		}
		return audio, mime, nil
	}
	return nil, "", fmt.Errorf("speech synthesis failed after %d attempts: %w", maxRetries+1, lastErr)
}

// SynthesizeDialogueLine renders one dialogue line, picking the voice by
// speaker. Speaker "A" maps to voiceA, anything else to voiceB.
func (s *Synthesizer) SynthesizeDialogueLine(ctx context.Context, speaker, text, voiceA, voiceB string) ([]byte, string, error) {
	voice := voiceB
	if speaker == "A" {
		voice = voiceA
	}
	return s.Synthesize(ctx, text, voice)
}
