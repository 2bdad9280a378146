// Package recognizer defines the Provider interfaces for speech-recognition
// backends.
//
// Two contracts are offered. Recognizer is the whole-utterance model: every
// Infer call is independent and receives a complete audio span. Streaming is
// the incremental model: successive InferIncremental calls on a growing
// window share a Cache that carries the model's continuation state (encoder
// features, decoder history) between calls.
//
// The Cache is opaque to callers. Sessions allocate one with NewCache, thread
// it through every incremental call unchanged, and discard the whole value to
// reset the model. No code outside the implementing backend may read or write
// its entries.
//
// Implementations must be safe for concurrent use across sessions. A single
// Cache must not be shared between goroutines.
package recognizer

import (
	"context"

	"github.com/openspeechlab/sensegate/pkg/asr"
)

// Cache is the opaque continuation state of an incremental recognizer or VAD
// model. Its contents are owned entirely by the backend that populates it.
type Cache map[string]any

// NewCache returns an empty continuation state. A fresh cache means the model
// starts from scratch on the next call.
func NewCache() Cache {
	return Cache{}
}

// ChunkParams tunes an incremental recognizer's attention window. The zero
// value lets the backend apply its own defaults.
type ChunkParams struct {
	// ChunkSize is the backend-specific chunk geometry triplet
	// [past, current, lookahead] in model frames.
	ChunkSize [3]int

	// EncoderLookBack is the number of encoder chunks attended to from the past.
	EncoderLookBack int

	// DecoderLookBack is the number of decoder chunks attended to from the past.
	DecoderLookBack int
}

// DefaultChunkParams matches the upstream streaming configuration.
func DefaultChunkParams() ChunkParams {
	return ChunkParams{
		ChunkSize:       [3]int{0, 10, 5},
		EncoderLookBack: 4,
		DecoderLookBack: 1,
	}
}

// Recognizer transcribes a complete audio span in one shot.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	// Infer transcribes samples (mono float32 PCM at 16 kHz) and returns zero
	// or more results. lang is the recognition hint; key identifies the
	// request in logs. Each call is independent of every other call.
	Infer(ctx context.Context, samples []float32, lang asr.Language, key string) ([]asr.Result, error)

	// ModelType names the backend for result attribution (e.g. "whisper").
	ModelType() string
}

// Streaming transcribes a growing audio window incrementally.
//
// Implementations must be safe for concurrent use across caches; calls
// sharing one Cache must be serialized by the caller.
type Streaming interface {
	// InferIncremental transcribes the accumulated window given the
	// continuation state in cache, which it updates in place. final marks the
	// last call of the current segment; backends may flush pending output.
	InferIncremental(ctx context.Context, window []float32, cache Cache, final bool, p ChunkParams) (asr.Result, error)

	// ModelType names the backend for result attribution.
	ModelType() string
}
