package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openspeechlab/sensegate/pkg/asr"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
)

// ErrNoBackend is returned by [Chain.Infer] when every backend failed or is
// benched.
var ErrNoBackend = errors.New("no recognizer backend available")

// BackendConfig tunes the per-backend breaker in a [Chain]. Zero fields take
// the package defaults.
type BackendConfig struct {
	// TripAfter is the consecutive-failure count that benches a backend.
	TripAfter int

	// Cooldown is how long a benched backend sits out before it is probed.
	Cooldown time.Duration

	// Probes is the number of trial inferences allowed after the cooldown.
	Probes int
}

// Chain implements [recognizer.Recognizer] over an ordered list of
// recognition backends. Inference goes to the first backend whose breaker
// lets it through, so a flapping primary whisper-server is benched and the
// next backend takes over until the primary works through its probes.
//
// Backends must all be registered before the chain starts serving.
type Chain struct {
	cfg      BackendConfig
	backends []chainEntry
}

type chainEntry struct {
	name string
	rec  recognizer.Recognizer
	brk  *breaker
}

var _ recognizer.Recognizer = (*Chain)(nil)

// NewChain creates a chain with primary as the preferred backend. name
// labels the backend in logs, typically its base URL.
func NewChain(name string, primary recognizer.Recognizer, cfg BackendConfig) *Chain {
	c := &Chain{cfg: cfg}
	c.Add(name, primary)
	return c
}

// Add registers a further backend. Backends are tried in registration order.
func (c *Chain) Add(name string, rec recognizer.Recognizer) {
	c.backends = append(c.backends, chainEntry{
		name: name,
		rec:  rec,
		brk:  newBreaker(name, c.cfg),
	})
}

// Infer dispatches to the first backend that is not benched and succeeds.
func (c *Chain) Infer(ctx context.Context, samples []float32, lang asr.Language, key string) ([]asr.Result, error) {
	var lastErr error
	for i := range c.backends {
		e := &c.backends[i]
		var results []asr.Result
		err := e.brk.call(func() error {
			var inferErr error
			results, inferErr = e.rec.Infer(ctx, samples, lang, key)
			return inferErr
		})
		if err == nil {
			return results, nil
		}
		lastErr = err
		if errors.Is(err, ErrBackendBenched) {
			slog.Debug("skipping benched recognizer backend", "backend", e.name)
		} else {
			slog.Warn("recognizer backend failed, trying next",
				"backend", e.name, "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNoBackend, lastErr)
}

// ModelType reports the first non-benched backend's model type, or
// "unavailable" when every backend is benched.
func (c *Chain) ModelType() string {
	for i := range c.backends {
		e := &c.backends[i]
		if e.brk.currentPhase() != benched {
			return e.rec.ModelType()
		}
	}
	return "unavailable"
}
