// Package mock provides a test double for the vadmodel.Model interface.
//
// Script the spans each Detect call should return, then inspect the recorded
// calls. Each call also increments a counter inside the shared cache under
// CacheCounterKey so tests can observe cache lifecycle.
package mock

import (
	"context"
	"sync"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

// DetectCall records a single invocation of Model.Detect.
type DetectCall struct {
	// SampleLen is the length of the audio passed to Detect.
	SampleLen int
	// Final is the finality flag passed to Detect.
	Final bool
}

// CacheCounterKey is the cache entry Model increments on every call.
const CacheCounterKey = "mock.calls"

// Model is a mock implementation of vadmodel.Model.
type Model struct {
	mu sync.Mutex

	// Spans are returned by successive Detect calls in order; the last entry
	// repeats once exhausted. If empty, Detect returns nil.
	Spans [][]vadmodel.Span

	// Err, if non-nil, is returned as the error from every Detect call.
	Err error

	// Calls records every call to Detect.
	Calls []DetectCall

	next int
}

// Detect records the call, bumps the cache counter, and returns the next
// scripted span slice.
func (m *Model) Detect(_ context.Context, samples []float32, cache recognizer.Cache, final bool) ([]vadmodel.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, DetectCall{SampleLen: len(samples), Final: final})
	if m.Err != nil {
		return nil, m.Err
	}
	if cache != nil {
		n, _ := cache[CacheCounterKey].(int)
		cache[CacheCounterKey] = n + 1
	}
	if len(m.Spans) == 0 {
		return nil, nil
	}
	i := m.next
	if i >= len(m.Spans) {
		i = len(m.Spans) - 1
	}
	m.next++
	return m.Spans[i], nil
}

// Name returns "mock".
func (m *Model) Name() string { return "mock" }

// CallCount returns the number of Detect calls. Thread-safe.
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Ensure Model implements vadmodel.Model at compile time.
var _ vadmodel.Model = (*Model)(nil)
