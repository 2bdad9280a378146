// Package mock provides test doubles for the recognizer package interfaces.
//
// Use Recognizer to script whole-utterance results and inspect which audio
// spans were dispatched. Use Streaming to script incremental results and
// verify how the continuation cache is threaded through calls.
//
// Example:
//
//	rec := &mock.Recognizer{
//	    Results: [][]asr.Result{{asr.NewResult("hello", "mock", 1, true)}},
//	}
//	got, _ := rec.Infer(ctx, samples, asr.LangAuto, "seg-0")
package mock

import (
	"context"
	"sync"

	"github.com/openspeechlab/sensegate/pkg/asr"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
)

// InferCall records a single invocation of Recognizer.Infer.
type InferCall struct {
	// Samples is a copy of the audio passed to Infer.
	Samples []float32
	// Lang is the language hint passed to Infer.
	Lang asr.Language
	// Key is the request key passed to Infer.
	Key string
}

// Recognizer is a mock implementation of recognizer.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Results are returned by successive Infer calls in order; the last entry
	// repeats once exhausted. If empty, Infer returns nil.
	Results [][]asr.Result

	// Err, if non-nil, is returned as the error from every Infer call.
	Err error

	// InferCalls records every call to Infer.
	InferCalls []InferCall

	next int
}

// Infer records the call and returns the next scripted result slice.
func (r *Recognizer) Infer(_ context.Context, samples []float32, lang asr.Language, key string) ([]asr.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	r.InferCalls = append(r.InferCalls, InferCall{Samples: cp, Lang: lang, Key: key})
	if r.Err != nil {
		return nil, r.Err
	}
	if len(r.Results) == 0 {
		return nil, nil
	}
	i := r.next
	if i >= len(r.Results) {
		i = len(r.Results) - 1
	}
	r.next++
	return r.Results[i], nil
}

// ModelType returns "mock".
func (r *Recognizer) ModelType() string { return "mock" }

// CallCount returns the number of Infer calls. Thread-safe.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.InferCalls)
}

// ResetCalls clears all recorded calls and rewinds the script. Thread-safe.
func (r *Recognizer) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InferCalls = nil
	r.next = 0
}

// Ensure Recognizer implements recognizer.Recognizer at compile time.
var _ recognizer.Recognizer = (*Recognizer)(nil)

// IncrementalCall records a single invocation of Streaming.InferIncremental.
type IncrementalCall struct {
	// WindowLen is the length of the window passed to InferIncremental.
	WindowLen int
	// Final is the finality flag passed to InferIncremental.
	Final bool
	// Params are the chunk parameters passed to InferIncremental.
	Params recognizer.ChunkParams
}

// Streaming is a mock implementation of recognizer.Streaming. Each call
// increments a counter inside the continuation cache under CacheCounterKey,
// letting tests observe whether the cache survived a reset.
type Streaming struct {
	mu sync.Mutex

	// Results are returned by successive InferIncremental calls in order; the
	// last entry repeats once exhausted. If empty, an empty result is returned.
	Results []asr.Result

	// Err, if non-nil, is returned as the error from every call.
	Err error

	// Calls records every call to InferIncremental.
	Calls []IncrementalCall

	next int
}

// CacheCounterKey is the cache entry Streaming increments on every call.
const CacheCounterKey = "mock.calls"

// InferIncremental records the call, bumps the cache counter, and returns the
// next scripted result.
func (s *Streaming) InferIncremental(_ context.Context, window []float32, cache recognizer.Cache, final bool, p recognizer.ChunkParams) (asr.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, IncrementalCall{WindowLen: len(window), Final: final, Params: p})
	if s.Err != nil {
		return asr.Result{}, s.Err
	}
	n, _ := cache[CacheCounterKey].(int)
	cache[CacheCounterKey] = n + 1
	if len(s.Results) == 0 {
		return asr.EmptyResult(), nil
	}
	i := s.next
	if i >= len(s.Results) {
		i = len(s.Results) - 1
	}
	s.next++
	res := s.Results[i]
	res.IsFinal = final
	if final && res.Status == asr.StatusPartial {
		res.Status = asr.StatusSuccess
	}
	return res, nil
}

// ModelType returns "mock".
func (s *Streaming) ModelType() string { return "mock" }

// CallCount returns the number of InferIncremental calls. Thread-safe.
func (s *Streaming) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Ensure Streaming implements recognizer.Streaming at compile time.
var _ recognizer.Streaming = (*Streaming)(nil)
