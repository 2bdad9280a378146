// Package silero implements vadmodel.Model with Silero VAD v5 running on
// ONNX Runtime.
//
// The model consumes fixed 512-sample windows (32 ms at 16 kHz) and outputs
// a per-window speech probability. The RNN hidden state is carried between
// calls through the shared continuation cache, so discarding the cache
// restarts detection from silence. A single ONNX session is shared by all
// callers and guarded by a mutex; the hidden state lives in the cache, not
// the session, so concurrent streams do not contaminate each other.
package silero

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

const (
	// windowSize is the number of float32 samples per inference call.
	// Silero VAD v5 at 16 kHz requires exactly 512 samples (32 ms).
	windowSize = 512

	// stateSize is the hidden state dimension per layer. Silero VAD v5 uses a
	// combined state tensor of shape [2, 1, 128].
	stateSize = 128

	windowMS = windowSize * 1000 / sampleRate

	sampleRate = 16000

	cacheKeyState = "silero.state"
)

// ortInitOnce ensures the ONNX Runtime environment is initialized exactly
// once; ortInitErr is kept so later New calls surface the failure instead of
// proceeding with an uninitialized environment.
var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// Compile-time assertion that Model satisfies vadmodel.Model.
var _ vadmodel.Model = (*Model)(nil)

// Option is a functional option for configuring a Model.
type Option func(*Model)

// WithThreshold sets the speech probability threshold. Range (0, 1).
// Defaults to 0.5.
func WithThreshold(t float64) Option {
	return func(m *Model) { m.threshold = t }
}

// WithMinSilenceMs sets the consecutive-silence duration (ms) that closes an
// open speech span. Defaults to 96 ms (three windows).
func WithMinSilenceMs(ms int) Option {
	return func(m *Model) { m.minSilenceMS = ms }
}

// WithLibraryPath overrides the ONNX Runtime shared library path before the
// environment is initialized.
func WithLibraryPath(path string) Option {
	return func(m *Model) { m.libPath = path }
}

// Model runs Silero VAD inference via ONNX Runtime.
type Model struct {
	mu      sync.Mutex
	session *ort.AdvancedSession

	// Input tensors (reused between calls under mu).
	inputTensor *ort.Tensor[float32] // [1, 512]
	stateTensor *ort.Tensor[float32] // [2, 1, 128]
	srTensor    *ort.Tensor[int64]   // scalar

	// Output tensors (reused between calls under mu).
	outputTensor *ort.Tensor[float32] // [1, 1]
	stateNTensor *ort.Tensor[float32] // [2, 1, 128]

	threshold    float64
	minSilenceMS int
	libPath      string
}

// New loads the Silero VAD ONNX model from modelPath and allocates the
// inference session. The caller must call Close when done.
func New(modelPath string, opts ...Option) (*Model, error) {
	if modelPath == "" {
		return nil, errors.New("silero: modelPath must not be empty")
	}

	m := &Model{
		threshold:    0.5,
		minSilenceMS: 3 * windowMS,
	}
	for _, o := range opts {
		o(m)
	}

	ortInitOnce.Do(func() {
		if m.libPath != "" {
			ort.SetSharedLibraryPath(m.libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return nil, fmt.Errorf("silero: %w", ortInitErr)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, windowSize))
	if err != nil {
		return nil, fmt.Errorf("silero: create input tensor: %w", err)
	}
	stateTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, stateSize))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("silero: create state tensor: %w", err)
	}
	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		return nil, fmt.Errorf("silero: create sr tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		return nil, fmt.Errorf("silero: create output tensor: %w", err)
	}
	stateNTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, stateSize))
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("silero: create stateN tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateNTensor},
		nil, // default session options
	)
	if err != nil {
		inputTensor.Destroy()
		stateTensor.Destroy()
		srTensor.Destroy()
		outputTensor.Destroy()
		stateNTensor.Destroy()
		return nil, fmt.Errorf("silero: create session: %w", err)
	}

	m.session = session
	m.inputTensor = inputTensor
	m.stateTensor = stateTensor
	m.srTensor = srTensor
	m.outputTensor = outputTensor
	m.stateNTensor = stateNTensor
	return m, nil
}

// Name returns "silero".
func (m *Model) Name() string { return "silero" }

// Close releases all ONNX Runtime resources. Safe to call multiple times.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	for _, t := range []interface{ Destroy() error }{
		m.inputTensor, m.stateTensor, m.srTensor, m.outputTensor, m.stateNTensor,
	} {
		if t != nil {
			t.Destroy()
		}
	}
	m.inputTensor = nil
	m.stateTensor = nil
	m.srTensor = nil
	m.outputTensor = nil
	m.stateNTensor = nil
	return nil
}

// Detect runs the model over samples in 512-sample windows and returns the
// merged speech spans. The RNN hidden state is restored from and saved back
// to cache, so successive calls with the same cache continue seamlessly. A
// trailing partial window is dropped unless final is set, in which case it is
// zero-padded and processed.
func (m *Model) Detect(ctx context.Context, samples []float32, cache recognizer.Cache, final bool) ([]vadmodel.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, errors.New("silero: model is closed")
	}

	state := m.stateTensor.GetData()
	if prev, ok := cache[cacheKeyState].([]float32); ok && len(prev) == len(state) {
		copy(state, prev)
	} else {
		clear(state)
	}

	var (
		spans        []vadmodel.Span
		inSpeech     bool
		spanStartMS  int
		silenceMS    int
		silenceBegan int
	)

	for off := 0; off < len(samples); off += windowSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := off + windowSize
		in := m.inputTensor.GetData()
		if end <= len(samples) {
			copy(in, samples[off:end])
		} else {
			if !final {
				break
			}
			n := copy(in, samples[off:])
			clear(in[n:])
		}

		if err := m.session.Run(); err != nil {
			return nil, fmt.Errorf("silero: inference: %w", err)
		}
		prob := float64(m.outputTensor.GetData()[0])
		copy(state, m.stateNTensor.GetData())

		winStartMS := off * 1000 / sampleRate
		if prob >= m.threshold {
			if !inSpeech {
				inSpeech = true
				spanStartMS = winStartMS
			}
			silenceMS = 0
		} else if inSpeech {
			if silenceMS == 0 {
				silenceBegan = winStartMS
			}
			silenceMS += windowMS
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

	saved := make([]float32, len(state))
	copy(saved, state)
	cache[cacheKeyState] = saved

	return spans, nil
}
