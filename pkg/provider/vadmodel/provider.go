// Package vadmodel defines the Model interface for voice-activity-detection
// backends.
//
// A Model analyses an audio span and returns the speech regions it contains
// as millisecond spans relative to the start of that span. Detection may be
// stateless (a fresh cache per call, used by the segment consumer) or
// carry state across calls through the shared opaque cache (used by the
// streaming endpoint detector).
//
// Implementations must be safe for concurrent use across caches.
package vadmodel

import (
	"context"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
)

// OpenEnd marks a span whose speech had not ended by the end of the
// analysed audio.
const OpenEnd = -1

// Span is one detected speech region, in milliseconds relative to the start
// of the audio passed to Detect. EndMS is OpenEnd when speech is still
// ongoing at the end of the span.
type Span struct {
	StartMS int
	EndMS   int
}

// Open reports whether the span's speech had not yet ended.
func (s Span) Open() bool {
	return s.EndMS == OpenEnd
}

// Model is the abstraction over any VAD backend.
type Model interface {
	// Detect returns the speech spans found in samples (mono float32 PCM at
	// 16 kHz). cache carries detector state between calls and is updated in
	// place; pass a fresh cache for stateless one-shot detection. final marks
	// the end of the audio stream, letting the detector close a pending span.
	Detect(ctx context.Context, samples []float32, cache recognizer.Cache, final bool) ([]Span, error)

	// Name identifies the backend in logs and the status endpoint.
	Name() string
}
