package segment

import (
	"context"
	"errors"
	"testing"

	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
	vadmock "github.com/openspeechlab/sensegate/pkg/provider/vadmodel/mock"
)

func TestDetectConvertsSpans(t *testing.T) {
	t.Parallel()

	model := &vadmock.Model{Spans: [][]vadmodel.Span{{
		{StartMS: 500, EndMS: 2000},
		{StartMS: 2500, EndMS: 3000},
	}}}
	seg := New(model, 16000)

	samples := make([]float32, 16000*4)
	got := seg.Detect(context.Background(), samples, 0)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if got[0].Start != 0.5 || got[0].End != 2.0 {
		t.Errorf("segment 0 = [%v, %v], want [0.5, 2.0]", got[0].Start, got[0].End)
	}
	if got[0].StartSample != 8000 || got[0].EndSample != 32000 {
		t.Errorf("segment 0 samples = [%d, %d], want [8000, 32000]",
			got[0].StartSample, got[0].EndSample)
	}
}

func TestDetectAppliesWindowStart(t *testing.T) {
	t.Parallel()

	model := &vadmock.Model{Spans: [][]vadmodel.Span{{{StartMS: 0, EndMS: 1000}}}}
	seg := New(model, 16000)

	got := seg.Detect(context.Background(), make([]float32, 16000), 12.5)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].Start != 12.5 || got[0].End != 13.5 {
		t.Errorf("segment = [%v, %v], want [12.5, 13.5]", got[0].Start, got[0].End)
	}
	// Sample indices stay window-relative.
	if got[0].StartSample != 0 || got[0].EndSample != 16000 {
		t.Errorf("segment samples = [%d, %d], want [0, 16000]",
			got[0].StartSample, got[0].EndSample)
	}
}

func TestDetectDropsShortSegments(t *testing.T) {
	t.Parallel()

	model := &vadmock.Model{Spans: [][]vadmodel.Span{{
		{StartMS: 0, EndMS: 100}, // 0.1 s, below the minimum
		{StartMS: 500, EndMS: 1000},
	}}}
	seg := New(model, 16000)

	got := seg.Detect(context.Background(), make([]float32, 16000*2), 0)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1 (short segment dropped)", len(got))
	}
	if got[0].Start != 0.5 {
		t.Errorf("remaining segment start = %v, want 0.5", got[0].Start)
	}
}

func TestDetectSkipsOpenSpans(t *testing.T) {
	t.Parallel()

	model := &vadmock.Model{Spans: [][]vadmodel.Span{{
		{StartMS: 0, EndMS: 1000},
		{StartMS: 1500, EndMS: vadmodel.OpenEnd},
	}}}
	seg := New(model, 16000)

	got := seg.Detect(context.Background(), make([]float32, 16000*2), 0)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1 (open span skipped)", len(got))
	}
}

func TestDetectClampsSampleIndices(t *testing.T) {
	t.Parallel()

	// Span end past the window; indices must clamp to the window length.
	model := &vadmock.Model{Spans: [][]vadmodel.Span{{{StartMS: 0, EndMS: 5000}}}}
	seg := New(model, 16000)

	got := seg.Detect(context.Background(), make([]float32, 16000), 0)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0].EndSample != 16000 {
		t.Errorf("EndSample = %d, want 16000 (clamped)", got[0].EndSample)
	}
}

func TestDetectEmptyAudio(t *testing.T) {
	t.Parallel()

	model := &vadmock.Model{}
	seg := New(model, 16000)
	if got := seg.Detect(context.Background(), nil, 0); len(got) != 0 {
		t.Errorf("got %d segments for empty audio, want 0", len(got))
	}
	if model.CallCount() != 0 {
		t.Errorf("model called %d times for empty audio, want 0", model.CallCount())
	}
}

func TestDetectModelErrorYieldsNoSegments(t *testing.T) {
	t.Parallel()

	model := &vadmock.Model{Err: errors.New("onnx runtime exploded")}
	seg := New(model, 16000)
	if got := seg.Detect(context.Background(), make([]float32, 16000), 0); len(got) != 0 {
		t.Errorf("got %d segments on model error, want 0", len(got))
	}
}
