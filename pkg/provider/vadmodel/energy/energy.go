// Package energy implements vadmodel.Model with a plain RMS energy detector.
//
// It needs no model file, which makes it the fallback backend when no Silero
// checkpoint is configured and the detector of choice in tests. Audio is
// scanned in fixed frames; a frame whose root-mean-square amplitude exceeds
// the threshold counts as speech, and adjacent speech frames are merged into
// spans with a short silence hangover.
package energy

import (
	"context"
	"math"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

const (
	defaultFrameMS   = 32
	defaultThreshold = 0.01
	sampleRate       = 16000
)

// Compile-time assertion that Model satisfies vadmodel.Model.
var _ vadmodel.Model = (*Model)(nil)

// Option is a functional option for configuring a Model.
type Option func(*Model)

// WithThreshold sets the RMS amplitude above which a frame is classified as
// speech, in normalized float32 units. Defaults to 0.01.
func WithThreshold(t float64) Option {
	return func(m *Model) { m.threshold = t }
}

// WithFrameMs sets the analysis frame duration in milliseconds. Defaults to 32.
func WithFrameMs(ms int) Option {
	return func(m *Model) { m.frameMS = ms }
}

// WithMinSilenceMs sets the consecutive-silence duration (ms) that closes an
// open speech span. Defaults to three frames.
func WithMinSilenceMs(ms int) Option {
	return func(m *Model) { m.minSilenceMS = ms }
}

// Model is a stateless RMS threshold detector.
type Model struct {
	threshold    float64
	frameMS      int
	minSilenceMS int
}

// New creates an energy detector with the given options.
func New(opts ...Option) *Model {
	m := &Model{
		threshold: defaultThreshold,
		frameMS:   defaultFrameMS,
	}
	for _, o := range opts {
		o(m)
	}
	if m.minSilenceMS <= 0 {
		m.minSilenceMS = 3 * m.frameMS
	}
	return m
}

// Name returns "energy".
func (m *Model) Name() string { return "energy" }

// Detect scans samples in fixed frames and returns merged speech spans. The
// detector carries no state, so the cache is ignored. A trailing partial
// frame is only considered when final is set.
func (m *Model) Detect(ctx context.Context, samples []float32, _ recognizer.Cache, final bool) ([]vadmodel.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frameSamples := m.frameMS * sampleRate / 1000
	if frameSamples <= 0 {
		frameSamples = defaultFrameMS * sampleRate / 1000
	}

	var (
		spans        []vadmodel.Span
		inSpeech     bool
		spanStartMS  int
		silenceMS    int
		silenceBegan int
	)

	for off := 0; off < len(samples); off += frameSamples {
		end := off + frameSamples
		if end > len(samples) {
			if !final {
				break
			}
			end = len(samples)
		}

		frameStartMS := off * 1000 / sampleRate
		if rms(samples[off:end]) >= m.threshold {
			if !inSpeech {
				inSpeech = true
				spanStartMS = frameStartMS
			}
			silenceMS = 0
		} else if inSpeech {
			if silenceMS == 0 {
				silenceBegan = frameStartMS
			}
			silenceMS += m.frameMS
			if silenceMS >= m.minSilenceMS {
				spans = append(spans, vadmodel.Span{StartMS: spanStartMS, EndMS: silenceBegan})
				inSpeech = false
				silenceMS = 0
			}
		}
	}

	if inSpeech {
		if final {
			spans = append(spans, vadmodel.Span{StartMS: spanStartMS, EndMS: len(samples) * 1000 / sampleRate})
		} else {
			spans = append(spans, vadmodel.Span{StartMS: spanStartMS, EndMS: vadmodel.OpenEnd})
		}
	}

	return spans, nil
}

// rms returns the root-mean-square amplitude of samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
