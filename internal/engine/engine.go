// Package engine owns the process-wide speech models: the whole-utterance
// recognizer, the optional incremental recognizer, and the optional VAD
// model. Models are constructed lazily on first use so the server can start
// serving health checks before the checkpoints finish loading, and exactly
// once, shared by every connection.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

// ErrNotConfigured is returned when an optional model has no factory.
var ErrNotConfigured = errors.New("engine: model not configured")

// RecognizerFactory builds the whole-utterance recognizer.
type RecognizerFactory func() (recognizer.Recognizer, error)

// StreamingFactory builds the incremental recognizer.
type StreamingFactory func() (recognizer.Streaming, error)

// VADFactory builds the VAD model.
type VADFactory func() (vadmodel.Model, error)

// Service provides lazily-initialized, process-wide access to the speech
// models. Safe for concurrent use.
type Service struct {
	recFactory    RecognizerFactory
	streamFactory StreamingFactory
	vadFactory    VADFactory

	// mu guards the model fields; the Once values serialize construction.
	mu sync.Mutex

	recOnce sync.Once
	rec     recognizer.Recognizer
	recErr  error

	streamOnce sync.Once
	stream     recognizer.Streaming
	streamErr  error

	vadOnce sync.Once
	vad     vadmodel.Model
	vadErr  error
}

// Option is a functional option for configuring a Service.
type Option func(*Service)

// WithStreamingFactory configures the optional incremental recognizer.
func WithStreamingFactory(f StreamingFactory) Option {
	return func(s *Service) { s.streamFactory = f }
}

// WithVADFactory configures the optional VAD model.
func WithVADFactory(f VADFactory) Option {
	return func(s *Service) { s.vadFactory = f }
}

// New creates a Service. rec is required; the streaming recognizer and VAD
// model are optional.
func New(rec RecognizerFactory, opts ...Option) *Service {
	s := &Service{recFactory: rec}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Recognizer returns the whole-utterance recognizer, building it on first
// call. A construction failure is sticky: every later call returns the same
// error.
func (s *Service) Recognizer() (recognizer.Recognizer, error) {
	s.recOnce.Do(func() {
		rec, err := s.recFactory()
		s.mu.Lock()
		s.rec, s.recErr = rec, err
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, s.recErr
}

// Streaming returns the incremental recognizer, building it on first call,
// or ErrNotConfigured when none was set up.
func (s *Service) Streaming() (recognizer.Streaming, error) {
	if s.streamFactory == nil {
		return nil, ErrNotConfigured
	}
	s.streamOnce.Do(func() {
		stream, err := s.streamFactory()
		s.mu.Lock()
		s.stream, s.streamErr = stream, err
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream, s.streamErr
}

// VAD returns the VAD model, building it on first call, or ErrNotConfigured
// when none was set up.
func (s *Service) VAD() (vadmodel.Model, error) {
	if s.vadFactory == nil {
		return nil, ErrNotConfigured
	}
	s.vadOnce.Do(func() {
		vad, err := s.vadFactory()
		s.mu.Lock()
		s.vad, s.vadErr = vad, err
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vad, s.vadErr
}

// Warm forces construction of every configured model. Used by the readiness
// check so a broken checkpoint path surfaces before traffic arrives.
func (s *Service) Warm(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var errs []error
	if _, err := s.Recognizer(); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.Streaming(); err != nil && !errors.Is(err, ErrNotConfigured) {
		errs = append(errs, err)
	}
	if _, err := s.VAD(); err != nil && !errors.Is(err, ErrNotConfigured) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Status describes the engine for the status endpoint.
type Status struct {
	RecognizerReady bool   `json:"recognizer_ready"`
	RecognizerType  string `json:"recognizer_type,omitempty"`
	StreamingReady  bool   `json:"streaming_ready"`
	VADReady        bool   `json:"vad_ready"`
	VADName         string `json:"vad_name,omitempty"`
}

// Status reports which models have been initialized, without forcing any
// initialization.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Status
	if s.rec != nil && s.recErr == nil {
		st.RecognizerReady = true
		st.RecognizerType = s.rec.ModelType()
	}
	st.StreamingReady = s.stream != nil && s.streamErr == nil
	if s.vad != nil && s.vadErr == nil {
		st.VADReady = true
		st.VADName = s.vad.Name()
	}
	return st
}

// Close releases every model that implements io.Closer.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, m := range []any{s.rec, s.stream, s.vad} {
		if c, ok := m.(io.Closer); ok && c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
