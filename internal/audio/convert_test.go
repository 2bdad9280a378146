package audio

import (
	"math"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.5, 0.999, -1}
	b := Float32ToPCM16(in)
	out, err := PCM16ToFloat32(b)
	if err != nil {
		t.Fatalf("PCM16ToFloat32: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if diff := math.Abs(float64(out[i] - in[i])); diff > 1e-3 {
			t.Errorf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestPCM16ToFloat32OddLength(t *testing.T) {
	t.Parallel()

	if _, err := PCM16ToFloat32([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for odd-length buffer")
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	t.Parallel()

	b := Float32ToPCM16([]float32{2.0, -2.0})
	out, err := PCM16ToFloat32(b)
	if err != nil {
		t.Fatalf("PCM16ToFloat32: %v", err)
	}
	if out[0] < 0.99 || out[1] > -0.99 {
		t.Errorf("clamped samples = %v, want ±1", out)
	}
}

func TestDownmixStereo(t *testing.T) {
	t.Parallel()

	got := DownmixStereo([]float32{1, 0, 0.5, 0.5, -1, 1})
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	in := make([]float32, 480)
	out := Resample(in, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("48k→16k of 480 samples = %d, want 160", len(out))
	}

	same := Resample(in, 16000, 16000)
	if len(same) != len(in) {
		t.Errorf("same-rate resample changed length: %d", len(same))
	}
}

func TestMeanAbs(t *testing.T) {
	t.Parallel()

	if got := MeanAbs([]float32{0.5, -0.5}); got != 0.5 {
		t.Errorf("MeanAbs = %v, want 0.5", got)
	}
	if got := MeanAbs(nil); got != 0 {
		t.Errorf("MeanAbs(nil) = %v, want 0", got)
	}
}
