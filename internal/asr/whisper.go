// Package asr adapts the speech-to-text collaborator. The pipeline hands it
// a mono 16kHz waveform and gets back timed text segments plus the detected
// language.
package asr

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gwlsn/scenefinder/internal/transcript"
)

// Result is the raw transcription output. Segments may contain empty text;
// the caller filters them before persistence.
type Result struct {
	Language string
	Duration float64
	Segments []transcript.Segment
}

// Transcriber converts a waveform file into timed text.
type Transcriber interface {
	// Transcribe runs speech-to-text over the waveform at audioPath.
	// language is an ISO code hint or "auto" for detection; tier selects
	// the model quality/latency trade-off.
	Transcribe(ctx context.Context, audioPath, language, tier string) (*Result, error)
}

// Whisper transcribes through the OpenAI audio API or any compatible
// endpoint (e.g. a local faster-whisper server).
type Whisper struct {
	cli    *openai.Client
	hosted bool
}

// NewWhisper creates a Whisper transcriber. An empty baseURL targets the
// hosted OpenAI API; otherwise requests go to the compatible endpoint.
func NewWhisper(apiKey, baseURL string) *Whisper {
	cfg := openai.DefaultConfig(apiKey)
	hosted := baseURL == ""
	if !hosted {
		cfg.BaseURL = baseURL
	}
	return &Whisper{cli: openai.NewClientWithConfig(cfg), hosted: hosted}
}

// modelForTier maps the quality tier to a model name. The hosted API exposes
// a single whisper model; self-hosted compatible servers accept the size
// directly as the model name.
func (w *Whisper) modelForTier(tier string) string {
	if w.hosted || tier == "" {
		return openai.Whisper1
	}
	return tier
}

// Transcribe implements Transcriber via CreateTranscription with a
// verbose-JSON response, which carries per-segment timings, the detected
// language and the total duration.
func (w *Whisper) Transcribe(ctx context.Context, audioPath, language, tier string) (*Result, error) {
	req := openai.AudioRequest{
		Model:    w.modelForTier(tier),
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	}
	if language != "" && language != "auto" {
		req.Language = language
	}

	resp, err := w.cli.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, transcript.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}

	return &Result{
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: segments,
	}, nil
}
