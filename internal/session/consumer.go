package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openspeechlab/sensegate/internal/audio"
	"github.com/openspeechlab/sensegate/internal/segment"
	"github.com/openspeechlab/sensegate/pkg/asr"
)

// Defaults for the segment-consumption poll loop.
const (
	DefaultMinTrigger   = 5.0 // seconds of unconsumed audio before a poll does work
	DefaultPollInterval = time.Second
	DefaultIdleInterval = 500 * time.Millisecond
)

// Emit delivers one recognition result to the transport. start and end are
// the global stream times (seconds) of the speech segment the result covers.
type Emit func(res asr.Result, start, end float64)

// Consumer is the per-connection segment consumption loop. Each poll runs
// the VAD segmenter over the full unconsumed region of the ring buffer,
// dispatches every detected segment to the whole-utterance recognizer in
// time order, consumes up to the furthest segment end, and emits only the
// last non-empty result of the poll.
//
// Every VAD segment is trusted as complete speech: a closed span is
// dispatched immediately rather than waiting for more audio to confirm it.
// Because consumption advances to the furthest dispatched sample, no sample
// range is ever dispatched twice across polls with no intervening append.
type Consumer struct {
	name      string
	buffer    *audio.RingBuffer
	segmenter *segment.Segmenter
	rec       LanguageProvider
	emit      Emit

	minTrigger   float64
	pollInterval time.Duration
	idleInterval time.Duration
	logger       *slog.Logger

	polls int
}

// LanguageProvider is the slice of Session the consumer needs: the
// recognizer dispatch with the session's current language.
type LanguageProvider interface {
	// Recognize transcribes one speech segment with the session's language.
	Recognize(ctx context.Context, samples []float32, key string) ([]asr.Result, error)
}

// Recognize dispatches a consumer segment to the whole-utterance recognizer
// with the session's current language.
func (s *Session) Recognize(ctx context.Context, samples []float32, key string) ([]asr.Result, error) {
	return s.rec.Infer(ctx, samples, s.Language(), key)
}

// ConsumerOption is a functional option for configuring a Consumer.
type ConsumerOption func(*Consumer)

// WithMinTrigger sets the unconsumed duration (seconds) below which a poll
// does nothing. Defaults to 5 s.
func WithMinTrigger(d float64) ConsumerOption {
	return func(c *Consumer) { c.minTrigger = d }
}

// WithPollInterval sets the sleep after a poll that did work. Defaults to 1 s.
func WithPollInterval(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.pollInterval = d }
}

// WithIdleInterval sets the sleep after a poll that found too little audio.
// Defaults to 500 ms.
func WithIdleInterval(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.idleInterval = d }
}

// WithConsumerLogger sets the logger used for dispatch warnings.
func WithConsumerLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = l }
}

// NewConsumer creates a consumption loop over the given buffer. name
// identifies the connection in logs and inference keys.
func NewConsumer(name string, buffer *audio.RingBuffer, seg *segment.Segmenter, rec LanguageProvider, emit Emit, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		name:         name,
		buffer:       buffer,
		segmenter:    seg,
		rec:          rec,
		emit:         emit,
		minTrigger:   DefaultMinTrigger,
		pollInterval: DefaultPollInterval,
		idleInterval: DefaultIdleInterval,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run polls until ctx is cancelled. It always returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	timer := time.NewTimer(c.idleInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if c.Poll(ctx) {
			timer.Reset(c.pollInterval)
		} else {
			timer.Reset(c.idleInterval)
		}
	}
}

// Poll performs one consumption pass and reports whether any segment was
// dispatched. Exported so tests and the end-of-stream flush can drive the
// loop directly.
func (c *Consumer) Poll(ctx context.Context) bool {
	if c.buffer.UnconsumedDuration() < c.minTrigger {
		return false
	}

	window, windowStart := c.buffer.Snapshot()
	segments := c.segmenter.Detect(ctx, window, windowStart)
	if len(segments) == 0 {
		return false
	}

	c.polls++
	var (
		last    asr.Result
		lastSeg segment.Segment
		maxEnd  int
	)

	for i, seg := range segments {
		if seg.EndSample > maxEnd {
			maxEnd = seg.EndSample
		}

		key := fmt.Sprintf("%s_p%d_s%d", c.name, c.polls, i)
		results, err := c.rec.Recognize(ctx, window[seg.StartSample:seg.EndSample], key)
		if err != nil {
			c.logger.Warn("segment inference failed, skipping segment",
				"connection", c.name, "key", key,
				"start", seg.Start, "end", seg.End, "error", err)
			continue
		}
		for _, r := range results {
			if r.Text != "" {
				last = r
				lastSeg = seg
			}
		}
	}

	c.buffer.Consume(maxEnd)

	if last.Text != "" {
		c.emit(last, lastSeg.Start, lastSeg.End)
	}
	return true
}
