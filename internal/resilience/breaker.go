// Package resilience keeps inference flowing when a recognizer backend
// misbehaves. Every backend in a [Chain] sits behind its own trip breaker: a
// backend that keeps failing is benched for a cooldown instead of being
// hammered on every inference, and the chain fails over to the next healthy
// backend in the meantime.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrBackendBenched is returned when a backend's breaker has tripped and its
// cooldown has not elapsed yet.
var ErrBackendBenched = errors.New("recognizer backend benched")

// Breaker defaults, used for zero fields in [BackendConfig].
const (
	DefaultTripAfter = 5
	DefaultCooldown  = 30 * time.Second
	DefaultProbes    = 3
)

// phase is a breaker's operating mode.
type phase int

const (
	// serving forwards every inference.
	serving phase = iota

	// benched rejects inferences with [ErrBackendBenched] until the
	// cooldown elapses.
	benched

	// probing lets a bounded number of trial inferences through after the
	// cooldown; their outcomes decide between serving and benched.
	probing
)

func (p phase) String() string {
	switch p {
	case serving:
		return "serving"
	case benched:
		return "benched"
	case probing:
		return "probing"
	default:
		return "unknown"
	}
}

// breaker tracks one backend's failure streak. tripAfter consecutive
// failures bench the backend; after cooldown it gets probes trial
// inferences, and any probe failure benches it again. Safe for concurrent
// use.
type breaker struct {
	backend   string
	tripAfter int
	cooldown  time.Duration
	probes    int

	mu         sync.Mutex
	phase      phase
	failStreak int
	benchedAt  time.Time
	probeCalls int
	probeFails int
}

func newBreaker(backend string, cfg BackendConfig) *breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = DefaultTripAfter
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Probes <= 0 {
		cfg.Probes = DefaultProbes
	}
	return &breaker{
		backend:   backend,
		tripAfter: cfg.TripAfter,
		cooldown:  cfg.Cooldown,
		probes:    cfg.Probes,
	}
}

// call runs fn when the breaker allows it and folds the outcome into the
// failure accounting.
func (b *breaker) call(fn func() error) error {
	b.mu.Lock()
	switch b.phase {
	case benched:
		if time.Since(b.benchedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrBackendBenched
		}
		b.phase = probing
		b.probeCalls = 0
		b.probeFails = 0
		slog.Info("recognizer backend probing after cooldown", "backend", b.backend)

	case probing:
		if b.probeCalls >= b.probes {
			b.mu.Unlock()
			return ErrBackendBenched
		}
	}
	inProbe := b.phase == probing
	if inProbe {
		b.probeCalls++
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure(inProbe)
	} else {
		b.onSuccess(inProbe)
	}
	return err
}

// onFailure must be called with b.mu held.
func (b *breaker) onFailure(inProbe bool) {
	b.benchedAt = time.Now()

	if inProbe {
		b.probeFails++
		b.phase = benched
		b.failStreak = b.tripAfter
		slog.Warn("recognizer backend benched again after failed probe",
			"backend", b.backend)
		return
	}

	b.failStreak++
	if b.failStreak >= b.tripAfter {
		b.phase = benched
		slog.Warn("recognizer backend benched",
			"backend", b.backend, "fail_streak", b.failStreak)
	}
}

// onSuccess must be called with b.mu held.
func (b *breaker) onSuccess(inProbe bool) {
	if inProbe {
		if b.probeCalls-b.probeFails >= b.probes {
			b.phase = serving
			b.failStreak = 0
			b.probeCalls = 0
			b.probeFails = 0
			slog.Info("recognizer backend back in service", "backend", b.backend)
		}
		return
	}
	b.failStreak = 0
}

// currentPhase reports the phase, treating an elapsed cooldown as probing
// (the actual transition happens on the next call).
func (b *breaker) currentPhase() phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.phase == benched && time.Since(b.benchedAt) >= b.cooldown {
		return probing
	}
	return b.phase
}
