// Package segment turns raw VAD spans into speech segments with stream-time
// and sample coordinates.
package segment

import (
	"context"
	"log/slog"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

// DefaultMinSpeechDuration is the shortest segment worth transcribing, in
// seconds.
const DefaultMinSpeechDuration = 0.25

// Segment is one detected speech region. Start and End are stream times in
// seconds; StartSample and EndSample index into the audio window the
// detection ran over.
type Segment struct {
	Start       float64
	End         float64
	StartSample int
	EndSample   int
	Processed   bool
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Segmenter runs a VAD model over audio windows and converts its spans into
// segments. Detection is stateless per call: each window gets a fresh cache.
type Segmenter struct {
	model      vadmodel.Model
	sampleRate int
	minSpeech  float64
	logger     *slog.Logger
}

// Option is a functional option for configuring a Segmenter.
type Option func(*Segmenter)

// WithMinSpeechDuration sets the minimum segment duration in seconds.
// Shorter segments are dropped. Defaults to 0.25 s.
func WithMinSpeechDuration(d float64) Option {
	return func(s *Segmenter) { s.minSpeech = d }
}

// WithLogger sets the logger used for detection warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// New creates a Segmenter over the given model.
func New(model vadmodel.Model, sampleRate int, opts ...Option) *Segmenter {
	s := &Segmenter{
		model:      model,
		sampleRate: sampleRate,
		minSpeech:  DefaultMinSpeechDuration,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Detect runs the model over samples and returns the closed speech segments.
// windowStart is the stream time of the first sample; it offsets the Start
// and End of every returned segment. Detection failures are logged and yield
// an empty slice, never an error: a broken detector must not take the
// session down.
func (s *Segmenter) Detect(ctx context.Context, samples []float32, windowStart float64) []Segment {
	if len(samples) == 0 {
		return nil
	}

	spans, err := s.model.Detect(ctx, samples, recognizer.NewCache(), true)
	if err != nil {
		s.logger.Warn("vad detection failed, treating window as silent",
			"model", s.model.Name(), "samples", len(samples), "error", err)
		return nil
	}

	var segments []Segment
	for _, span := range spans {
		if span.Open() {
			continue
		}
		start := float64(span.StartMS) / 1000
		end := float64(span.EndMS) / 1000
		if end-start < s.minSpeech {
			continue
		}

		startSample := int(start * float64(s.sampleRate))
		endSample := int(end * float64(s.sampleRate))
		if startSample < 0 {
			startSample = 0
		}
		if endSample > len(samples) {
			endSample = len(samples)
		}
		if endSample <= startSample {
			continue
		}

		segments = append(segments, Segment{
			Start:       windowStart + start,
			End:         windowStart + end,
			StartSample: startSample,
			EndSample:   endSample,
		})
	}
	return segments
}
