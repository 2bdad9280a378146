package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Streamed Opus audio arrives as 48 kHz stereo packets at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
)

// OpusDecoder decodes a stream of Opus packets into mono float32 PCM at
// DefaultSampleRate. Each connection gets its own decoder to keep the
// decoder state correct across consecutive packets. Not safe for concurrent
// use.
type OpusDecoder struct {
	dec *gopus.Decoder
}

// NewOpusDecoder creates a decoder for the streamed Opus format.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec}, nil
}

// Decode decodes one Opus packet and converts it to mono float32 at
// DefaultSampleRate.
func (d *OpusDecoder) Decode(packet []byte) ([]float32, error) {
	pcm, err := d.dec.Decode(packet, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}
	if opusChannels == 2 {
		samples = DownmixStereo(samples)
	}
	return Resample(samples, opusSampleRate, DefaultSampleRate), nil
}
