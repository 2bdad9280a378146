package audio

import (
	"bytes"
	"errors"
	"io"

	"github.com/go-audio/wav"
)

// DecodeWAV decodes a WAV blob into normalized float32 samples, downmixed to
// mono and resampled to DefaultSampleRate.
func DecodeWAV(b []byte) ([]float32, error) {
	dec := wav.NewDecoder(bytes.NewReader(b))
	if !dec.IsValidFile() {
		return nil, errors.New("audio: invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, err
	}
	if buf == nil {
		return nil, errors.New("audio: empty wav buffer")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	max := float32(int(1) << (bitDepth - 1))

	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / max
	}
	if channels == 2 {
		samples = DownmixStereo(samples)
	} else if channels > 2 {
		frames := len(samples) / channels
		mono := make([]float32, frames)
		for i := range frames {
			var sum float32
			for c := range channels {
				sum += samples[i*channels+c]
			}
			mono[i] = sum / float32(channels)
		}
		samples = mono
	}

	rate := int(dec.SampleRate)
	if rate == 0 && buf.Format != nil {
		rate = buf.Format.SampleRate
	}
	if rate == 0 {
		rate = DefaultSampleRate
	}
	return Resample(samples, rate, DefaultSampleRate), nil
}
