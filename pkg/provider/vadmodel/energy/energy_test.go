package energy

import (
	"context"
	"testing"

	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
)

// tone fills n samples with a constant amplitude.
func tone(n int, amp float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = amp
	}
	return s
}

func TestDetectSilence(t *testing.T) {
	t.Parallel()

	m := New()
	spans, err := m.Detect(context.Background(), tone(16000, 0.001), recognizer.NewCache(), true)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("got %d spans for silence, want 0", len(spans))
	}
}

func TestDetectSpeechBetweenSilence(t *testing.T) {
	t.Parallel()

	// 0.5 s silence, 1 s speech, 0.5 s silence.
	audio := tone(8000, 0.0)
	audio = append(audio, tone(16000, 0.2)...)
	audio = append(audio, tone(8000, 0.0)...)

	m := New()
	spans, err := m.Detect(context.Background(), audio, recognizer.NewCache(), true)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1: %v", len(spans), spans)
	}
	s := spans[0]
	if s.StartMS < 450 || s.StartMS > 550 {
		t.Errorf("span start = %d ms, want ~500", s.StartMS)
	}
	if s.EndMS < 1450 || s.EndMS > 1550 {
		t.Errorf("span end = %d ms, want ~1500", s.EndMS)
	}
}

func TestDetectOpenSpanWhenNotFinal(t *testing.T) {
	t.Parallel()

	// Speech running to the very end of the buffer, stream still open.
	audio := append(tone(4000, 0.0), tone(8000, 0.2)...)

	m := New()
	spans, err := m.Detect(context.Background(), audio, recognizer.NewCache(), false)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1: %v", len(spans), spans)
	}
	if !spans[0].Open() {
		t.Errorf("span = %+v, want open end", spans[0])
	}
}

func TestDetectClosesSpanOnFinal(t *testing.T) {
	t.Parallel()

	audio := tone(8000, 0.2)

	m := New()
	spans, err := m.Detect(context.Background(), audio, recognizer.NewCache(), true)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 1 || spans[0].Open() {
		t.Fatalf("got %v, want one closed span", spans)
	}
	if spans[0].EndMS != 500 {
		t.Errorf("span end = %d ms, want 500", spans[0].EndMS)
	}
}

func TestDetectEmptyAudio(t *testing.T) {
	t.Parallel()

	m := New()
	spans, err := m.Detect(context.Background(), nil, recognizer.NewCache(), true)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("got %d spans for empty audio, want 0", len(spans))
	}
}

var _ vadmodel.Model = (*Model)(nil)
