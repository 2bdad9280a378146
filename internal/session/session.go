// Package session implements the per-connection streaming state: the
// accumulated recognition window, the opaque model caches with their reset
// semantics, endpoint detection, and the background segment-consumption loop.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/openspeechlab/sensegate/internal/audio"
	"github.com/openspeechlab/sensegate/pkg/asr"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

// Defaults for the streaming endpoint detector and window bound.
const (
	DefaultMaxWindow       = 10.0 // seconds of audio the recognition window may hold
	DefaultSilenceTimeout  = 1.5  // seconds of silence after speech that force finality
	DefaultEnergyThreshold = 0.01 // mean-abs amplitude below which a chunk counts as silent
	DefaultMaxSilentChunks = 5    // consecutive silent chunks that force finality
)

// Config carries the per-session streaming parameters.
type Config struct {
	SampleRate      int
	Language        asr.Language
	MaxWindow       float64
	SilenceTimeout  float64
	EnergyThreshold float64
	MaxSilentChunks int
	ChunkParams     recognizer.ChunkParams
}

// withDefaults fills zero fields with the package defaults.
func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Language == "" {
		c.Language = asr.LangAuto
	}
	if c.MaxWindow <= 0 {
		c.MaxWindow = DefaultMaxWindow
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.EnergyThreshold <= 0 {
		c.EnergyThreshold = DefaultEnergyThreshold
	}
	if c.MaxSilentChunks <= 0 {
		c.MaxSilentChunks = DefaultMaxSilentChunks
	}
	return c
}

// Session is the streaming recognition state machine for one connection.
//
// It owns two opaque continuation caches: one for the incremental recognizer
// and one for the endpoint VAD. The caches are threaded through the model
// calls unchanged and are never inspected here. A full reset (the client's
// clear request) discards both caches, every counter, and the audio buffer.
// A segment reset (after an emitted final) only clears the endpoint
// counters; both caches survive so the models keep their context.
//
// All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	cfg    Config
	rec    recognizer.Recognizer
	stream recognizer.Streaming
	vad    vadmodel.Model
	logger *slog.Logger

	buffer *audio.RingBuffer

	recCache recognizer.Cache
	vadCache recognizer.Cache

	window        []float32
	streamTime    float64 // seconds of audio processed since the last full reset
	chunkCount    int
	silentChunks  int
	lastSpeechEnd float64
	sawSpeech     bool
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithStreaming sets the incremental recognizer. Without one, the session
// falls back to whole-utterance inference over the accumulated window.
func WithStreaming(s recognizer.Streaming) Option {
	return func(sess *Session) { sess.stream = s }
}

// WithVAD sets the endpoint detector. Without one, the session falls back to
// the low-energy chunk counter.
func WithVAD(m vadmodel.Model) Option {
	return func(sess *Session) { sess.vad = m }
}

// WithLogger sets the logger used for recognition warnings.
func WithLogger(l *slog.Logger) Option {
	return func(sess *Session) { sess.logger = l }
}

// New creates a session over the given whole-utterance recognizer and audio
// buffer.
func New(cfg Config, rec recognizer.Recognizer, buffer *audio.RingBuffer, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg.withDefaults(),
		rec:      rec,
		buffer:   buffer,
		logger:   slog.Default(),
		recCache: recognizer.NewCache(),
		vadCache: recognizer.NewCache(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Buffer returns the session's audio ring buffer.
func (s *Session) Buffer() *audio.RingBuffer { return s.buffer }

// Language returns the session's recognition language.
func (s *Session) Language() asr.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Language
}

// SetLanguage updates the recognition language for subsequent chunks.
func (s *Session) SetLanguage(lang asr.Language) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Language = lang
}

// ProcessChunk feeds one chunk of mono float32 PCM through the streaming
// state machine and returns the result to emit. Every chunk produces a
// result, partial or final; recognition failures degrade to a non-final
// error result and are logged.
//
// endSegment forces finality regardless of what the endpoint detector says.
// When the returned result is final the session has already performed its
// segment reset.
func (s *Session) ProcessChunk(ctx context.Context, samples []float32, endSegment bool) asr.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunkCount++
	s.streamTime += float64(len(samples)) / float64(s.cfg.SampleRate)

	// Grow the recognition window, keeping at most MaxWindow seconds.
	s.window = append(s.window, samples...)
	maxSamples := int(s.cfg.MaxWindow * float64(s.cfg.SampleRate))
	if len(s.window) > maxSamples {
		s.window = s.window[:copy(s.window, s.window[len(s.window)-maxSamples:])]
	}

	final := endSegment || s.detectEndpoint(ctx, samples)

	res := s.infer(ctx, final)

	if final {
		s.segmentResetLocked()
	}
	return res
}

// detectEndpoint updates the endpoint state with the new chunk and reports
// whether the current segment should be finalized. With a VAD model the
// criterion is silence lasting longer than SilenceTimeout after speech;
// without one, MaxSilentChunks consecutive low-energy chunks.
func (s *Session) detectEndpoint(ctx context.Context, samples []float32) bool {
	if s.vad == nil {
		if audio.MeanAbs(samples) < s.cfg.EnergyThreshold {
			s.silentChunks++
			return s.sawSpeech && s.silentChunks >= s.cfg.MaxSilentChunks
		}
		s.sawSpeech = true
		s.silentChunks = 0
		return false
	}

	chunkStart := s.streamTime - float64(len(samples))/float64(s.cfg.SampleRate)
	spans, err := s.vad.Detect(ctx, samples, s.vadCache, false)
	if err != nil {
		s.logger.Warn("endpoint vad failed, keeping segment open",
			"model", s.vad.Name(), "error", err)
		return false
	}

	for _, span := range spans {
		s.sawSpeech = true
		if span.Open() {
			s.lastSpeechEnd = s.streamTime
		} else {
			s.lastSpeechEnd = chunkStart + float64(span.EndMS)/1000
		}
	}
	return s.sawSpeech && s.streamTime-s.lastSpeechEnd > s.cfg.SilenceTimeout
}

// infer runs the configured recognizer over the accumulated window.
func (s *Session) infer(ctx context.Context, final bool) asr.Result {
	if s.stream != nil {
		res, err := s.stream.InferIncremental(ctx, s.window, s.recCache, final, s.cfg.ChunkParams)
		if err != nil {
			s.logger.Warn("incremental inference failed",
				"model", s.stream.ModelType(), "window", len(s.window), "error", err)
			return asr.ErrorResult()
		}
		return stampFinal(res, final)
	}

	results, err := s.rec.Infer(ctx, s.window, s.cfg.Language, "stream")
	if err != nil {
		s.logger.Warn("window inference failed",
			"model", s.rec.ModelType(), "window", len(s.window), "error", err)
		return asr.ErrorResult()
	}

	res := asr.EmptyResult()
	for _, r := range results {
		if r.Text != "" {
			res = r
		}
	}
	return stampFinal(res, final)
}

// stampFinal aligns a result's finality flag and status with the endpoint
// decision. Backends report text; the session owns finality.
func stampFinal(res asr.Result, final bool) asr.Result {
	res.IsFinal = final
	if final && res.Status == asr.StatusPartial {
		res.Status = asr.StatusSuccess
	} else if !final && res.Status == asr.StatusSuccess {
		res.Status = asr.StatusPartial
	}
	return res
}

// EndSegment force-finalizes everything currently buffered and returns the
// final result. Audio that reached the buffer without going through
// ProcessChunk is folded into the recognition window first, then the buffer
// is drained so the consumer cannot dispatch the ended segment again. Both
// continuation caches survive; the result may be empty but is still final.
func (s *Session) EndSegment(ctx context.Context) asr.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The unconsumed buffered audio covers the window whenever both saw the
	// same appends; prefer it when it is the longer view.
	if pending := s.buffer.Unconsumed(); len(pending) > len(s.window) {
		s.window = append(s.window[:0], pending...)
		maxSamples := int(s.cfg.MaxWindow * float64(s.cfg.SampleRate))
		if len(s.window) > maxSamples {
			s.window = s.window[:copy(s.window, s.window[len(s.window)-maxSamples:])]
		}
	}

	res := s.infer(ctx, true)
	s.segmentResetLocked()
	s.buffer.Drain()
	return res
}

// segmentResetLocked clears the endpoint counters and the recognition window
// after an emitted final. Both continuation caches survive untouched.
func (s *Session) segmentResetLocked() {
	s.window = s.window[:0]
	s.silentChunks = 0
	s.lastSpeechEnd = s.streamTime
	s.sawSpeech = false
}

// SegmentReset applies the after-final reset without running inference:
// endpoint counters and the window are cleared, the caches are kept.
func (s *Session) SegmentReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentResetLocked()
}

// FullReset wipes the whole session: both continuation caches are replaced
// with fresh ones, every counter and the recognition window are zeroed, and
// the audio buffer is cleared. This is the client's clear request.
func (s *Session) FullReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recCache = recognizer.NewCache()
	s.vadCache = recognizer.NewCache()
	s.window = nil
	s.streamTime = 0
	s.chunkCount = 0
	s.silentChunks = 0
	s.lastSpeechEnd = 0
	s.sawSpeech = false
	s.buffer.Clear()
}

// ChunkCount returns the number of chunks processed since the last full
// reset.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunkCount
}

// caches returns the live cache values, for tests that assert the reset
// semantics.
func (s *Session) caches() (recognizer.Cache, recognizer.Cache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recCache, s.vadCache
}
