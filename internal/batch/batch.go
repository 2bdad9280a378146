// Package batch implements chunked whole-file transcription for the HTTP
// upload path. Long audio is cut into fixed windows with a small overlap,
// each window is transcribed independently, and the texts are concatenated
// in order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openspeechlab/sensegate/pkg/asr"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
)

// Defaults for the chunking geometry, in seconds.
const (
	DefaultChunkSize = 60.0
	DefaultOverlap   = 1.0
)

// Record is the transcription of one uploaded file.
type Record struct {
	Key       string `json:"key"`
	Text      string `json:"text"`
	RawText   string `json:"raw_text"`
	CleanText string `json:"clean_text"`
}

// Transcriber cuts long audio into overlapping windows and merges the
// per-window transcriptions.
type Transcriber struct {
	rec        recognizer.Recognizer
	sampleRate int
	logger     *slog.Logger
}

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLogger sets the logger used for per-window failure warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transcriber) { t.logger = l }
}

// New creates a Transcriber over the given recognizer.
func New(rec recognizer.Recognizer, sampleRate int, opts ...Option) *Transcriber {
	t := &Transcriber{
		rec:        rec,
		sampleRate: sampleRate,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe transcribes samples under the given key. Audio no longer than
// chunkSize seconds (or any length when chunkSize is 0) is transcribed in a
// single call. Longer audio is cut into windows of chunkSize advancing by
// chunkSize-overlap, the last window clipped to the audio length; each
// window is transcribed independently and the texts are concatenated in
// window order. Words duplicated across an overlap are accepted, not
// deduplicated. A failed window is logged and contributes no text.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, key string, lang asr.Language, chunkSize, overlap float64) (Record, error) {
	duration := float64(len(samples)) / float64(t.sampleRate)

	if chunkSize <= 0 || duration <= chunkSize {
		results, err := t.rec.Infer(ctx, samples, lang, key)
		if err != nil {
			return Record{}, fmt.Errorf("batch: transcribe %q: %w", key, err)
		}
		return buildRecord(key, results), nil
	}

	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultOverlap
	}

	chunkSamples := int(chunkSize * float64(t.sampleRate))
	stepSamples := int((chunkSize - overlap) * float64(t.sampleRate))

	var all []asr.Result
	for i, off := 0, 0; off < len(samples); i, off = i+1, off+stepSamples {
		end := off + chunkSamples
		if end > len(samples) {
			end = len(samples)
		}

		chunkKey := fmt.Sprintf("%s_chunk_%d", key, i)
		results, err := t.rec.Infer(ctx, samples[off:end], lang, chunkKey)
		if err != nil {
			t.logger.Warn("batch window failed, skipping",
				"key", chunkKey, "offset_s", float64(off)/float64(t.sampleRate), "error", err)
		} else {
			all = append(all, results...)
		}

		if end == len(samples) {
			break
		}
	}
	return buildRecord(key, all), nil
}

// buildRecord concatenates the per-window texts in order.
func buildRecord(key string, results []asr.Result) Record {
	var text, raw, clean []string
	for _, r := range results {
		if r.Text != "" {
			text = append(text, r.Text)
		}
		if r.RawText != "" {
			raw = append(raw, r.RawText)
		}
		if r.CleanText != "" {
			clean = append(clean, r.CleanText)
		}
	}
	return Record{
		Key:       key,
		Text:      strings.Join(text, " "),
		RawText:   strings.Join(raw, " "),
		CleanText: strings.Join(clean, " "),
	}
}
