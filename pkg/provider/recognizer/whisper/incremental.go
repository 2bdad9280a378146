package whisper

import (
	"context"
	"fmt"

	"github.com/openspeechlab/sensegate/pkg/asr"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
)

// cacheKeyHypothesis holds the last emitted hypothesis inside the shared
// continuation cache. No other code reads it.
const cacheKeyHypothesis = "whisper.hypothesis"

// Compile-time assertion that Incremental satisfies recognizer.Streaming.
var _ recognizer.Streaming = (*Incremental)(nil)

// Incremental adapts a whole-utterance Recognizer into the streaming
// contract. whisper.cpp has no incremental decoding API, so each call
// re-transcribes the full accumulated window and reports the current
// hypothesis as a partial; the continuation cache carries the previous
// hypothesis so an unchanged window can be answered without claiming new
// text. Finality is decided by the caller and simply promotes the current
// hypothesis to a final result.
type Incremental struct {
	inner recognizer.Recognizer
	lang  asr.Language
}

// NewIncremental wraps inner as a streaming recognizer. lang is the language
// hint used for every window.
func NewIncremental(inner recognizer.Recognizer, lang asr.Language) *Incremental {
	return &Incremental{inner: inner, lang: lang}
}

// ModelType returns the wrapped backend's model type.
func (r *Incremental) ModelType() string { return r.inner.ModelType() }

// InferIncremental transcribes the full window and returns the combined text
// of all decoded segments. The hypothesis is stored in cache; discarding the
// cache restarts recognition from scratch.
func (r *Incremental) InferIncremental(ctx context.Context, window []float32, cache recognizer.Cache, final bool, _ recognizer.ChunkParams) (asr.Result, error) {
	if len(window) == 0 {
		if prev, ok := cache[cacheKeyHypothesis].(string); ok && prev != "" && final {
			delete(cache, cacheKeyHypothesis)
			return asr.NewResult(prev, r.ModelType(), 1.0, true), nil
		}
		return asr.EmptyResult(), nil
	}

	results, err := r.inner.Infer(ctx, window, r.lang, "stream")
	if err != nil {
		return asr.Result{}, fmt.Errorf("whisper: incremental window: %w", err)
	}

	var raw string
	for _, res := range results {
		if raw != "" {
			raw += " "
		}
		raw += res.RawText
	}
	if raw == "" {
		if prev, ok := cache[cacheKeyHypothesis].(string); ok {
			raw = prev
		}
	}

	if final {
		delete(cache, cacheKeyHypothesis)
		if raw == "" {
			return asr.EmptyResult(), nil
		}
		return asr.NewResult(raw, r.ModelType(), 1.0, true), nil
	}

	cache[cacheKeyHypothesis] = raw
	if raw == "" {
		return asr.EmptyResult(), nil
	}
	return asr.NewResult(raw, r.ModelType(), 1.0, false), nil
}
