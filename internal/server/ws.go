package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openspeechlab/sensegate/internal/audio"
	"github.com/openspeechlab/sensegate/internal/engine"
	"github.com/openspeechlab/sensegate/internal/observe"
	"github.com/openspeechlab/sensegate/internal/segment"
	"github.com/openspeechlab/sensegate/internal/session"
	"github.com/openspeechlab/sensegate/pkg/asr"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
)

// Client message types.
const (
	msgConfig     = "config"
	msgAudio      = "audio"
	msgPing       = "ping"
	msgClear      = "clear"
	msgEndSegment = "end_segment"
)

// Server message types.
const (
	msgConnection    = "connection"
	msgResult        = "result"
	msgError         = "error"
	msgConfigUpdated = "config_updated"
	msgPong          = "pong"
	msgCleared       = "cleared"
	msgSegmentEnded  = "segment_ended"
)

// clientMessage is the inbound WebSocket envelope.
type clientMessage struct {
	Type string `json:"type"`

	// config fields
	Language      string  `json:"language,omitempty"`
	ChunkDuration float64 `json:"chunk_duration,omitempty"`

	// audio fields
	Data   string `json:"data,omitempty"`   // base64 payload
	Format string `json:"format,omitempty"` // "pcm16" (default) or "opus"
}

// serverMessage is the outbound WebSocket envelope.
type serverMessage struct {
	Type          string      `json:"type"`
	ClientID      string      `json:"client_id,omitempty"`
	Result        *asr.Result `json:"result,omitempty"`
	StartTime     float64     `json:"start_time,omitempty"`
	EndTime       float64     `json:"end_time,omitempty"`
	Timestamp     int64       `json:"timestamp,omitempty"` // unix milliseconds
	Error         string      `json:"error,omitempty"`
	Language      string      `json:"language,omitempty"`
	ChunkDuration float64     `json:"chunk_duration,omitempty"`
}

// wsConn is the state of one streaming connection.
type wsConn struct {
	srv  *Server
	id   string
	conn *websocket.Conn
	sess *session.Session
	opus *audio.OpusDecoder

	writeMu sync.Mutex

	mu            sync.Mutex
	chunkDuration float64
}

// handleWS upgrades the request and runs the streaming session: a receive
// loop and, when a VAD model is available, the segment consumption loop, both
// under one errgroup so either failing tears the connection down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.Recognizer()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "recognizer unavailable: "+err.Error())
		return
	}

	var sessOpts []session.Option
	if stream, err := s.engine.Streaming(); err == nil {
		sessOpts = append(sessOpts, session.WithStreaming(stream))
	} else if !errors.Is(err, engine.ErrNotConfigured) {
		s.logger.Warn("streaming recognizer unavailable, using window inference", "error", err)
	}

	vad, err := s.engine.VAD()
	if err != nil {
		if !errors.Is(err, engine.ErrNotConfigured) {
			s.logger.Warn("vad unavailable, segment consumption disabled", "error", err)
		}
		vad = nil
	} else {
		sessOpts = append(sessOpts, session.WithVAD(vad))
	}
	sessOpts = append(sessOpts, session.WithLogger(s.logger))

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	s.stats.total.Add(1)
	s.stats.active.Add(1)
	s.metrics.ActiveConnections.Add(r.Context(), 1)
	defer func() {
		s.stats.active.Add(-1)
		s.metrics.ActiveConnections.Add(context.Background(), -1)
	}()

	buffer := audio.NewRingBuffer(s.cfg.Audio.SampleRate, s.cfg.Audio.BufferDuration)
	sess := session.New(session.Config{
		SampleRate:      s.cfg.Audio.SampleRate,
		Language:        s.cfg.Streaming.DefaultLanguage,
		MaxWindow:       s.cfg.Streaming.MaxWindow,
		SilenceTimeout:  s.cfg.Streaming.SilenceTimeout,
		EnergyThreshold: s.cfg.Streaming.EnergyThreshold,
		MaxSilentChunks: s.cfg.Streaming.MaxSilentChunks,
		ChunkParams: recognizer.ChunkParams{
			ChunkSize:       s.cfg.Streaming.ChunkSize,
			EncoderLookBack: s.cfg.Streaming.EncoderLookBack,
			DecoderLookBack: s.cfg.Streaming.DecoderLookBack,
		},
	}, rec, buffer, sessOpts...)

	c := &wsConn{
		srv:  s,
		id:   uuid.NewString(),
		conn: conn,
		sess: sess,
	}

	s.logger.Info("streaming connection opened",
		"client_id", c.id, "remote", r.RemoteAddr, "vad", vad != nil)

	g, ctx := errgroup.WithContext(r.Context())

	if vad != nil {
		seg := segment.New(vad, s.cfg.Audio.SampleRate,
			segment.WithMinSpeechDuration(s.cfg.Audio.MinSpeechDuration),
			segment.WithLogger(s.logger),
		)
		emit := func(res asr.Result, start, end float64) {
			s.correct(&res)
			c.send(ctx, serverMessage{
				Type:      msgResult,
				Result:    &res,
				StartTime: start,
				EndTime:   end,
				Timestamp: time.Now().UnixMilli(),
			})
		}
		consumer := session.NewConsumer(c.id, buffer, seg,
			&meteredRecognizer{sess: sess, metrics: s.metrics, stats: &s.stats},
			emit,
			session.WithMinTrigger(s.cfg.Audio.MinTrigger),
			session.WithPollInterval(time.Duration(s.cfg.Audio.PollIntervalMs)*time.Millisecond),
			session.WithIdleInterval(time.Duration(s.cfg.Audio.IdleIntervalMs)*time.Millisecond),
			session.WithConsumerLogger(s.logger),
		)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	g.Go(func() error { return c.receive(ctx) })

	c.send(ctx, serverMessage{Type: msgConnection, ClientID: c.id, Timestamp: time.Now().UnixMilli()})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case websocket.CloseStatus(err) != -1:
		s.logger.Info("streaming connection closed",
			"client_id", c.id, "status", websocket.CloseStatus(err))
	default:
		s.logger.Warn("streaming connection failed", "client_id", c.id, "error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("streaming connection released",
		"client_id", c.id, "chunks", sess.ChunkCount())
}

// receive reads client messages until the connection drops or ctx is
// cancelled. Protocol errors produce an error message and the session
// continues.
func (c *wsConn) receive(ctx context.Context) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		c.srv.stats.messages.Add(1)

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError(ctx, "invalid message: "+err.Error())
			continue
		}
		c.srv.metrics.RecordWSMessage(ctx, "in", msg.Type)

		switch msg.Type {
		case msgConfig:
			c.handleConfig(ctx, msg)
		case msgAudio:
			c.handleAudio(ctx, msg)
		case msgPing:
			c.send(ctx, serverMessage{Type: msgPong, Timestamp: time.Now().UnixMilli()})
		case msgClear:
			c.sess.FullReset()
			c.send(ctx, serverMessage{Type: msgCleared})
		case msgEndSegment:
			res := c.sess.EndSegment(ctx)
			c.srv.correct(&res)
			c.send(ctx, serverMessage{
				Type:      msgSegmentEnded,
				Result:    &res,
				Timestamp: time.Now().UnixMilli(),
			})
		default:
			c.sendError(ctx, fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

// handleConfig validates and applies a connection-level configuration update.
// Invalid values are rejected with an error message; the previous settings
// stay in effect.
func (c *wsConn) handleConfig(ctx context.Context, msg clientMessage) {
	if msg.Language != "" && !asr.Language(msg.Language).IsValid() {
		c.sendError(ctx, fmt.Sprintf("unsupported language %q", msg.Language))
		return
	}
	if msg.ChunkDuration != 0 &&
		(msg.ChunkDuration < 0 || msg.ChunkDuration > c.srv.cfg.Streaming.MaxChunkDuration) {
		c.sendError(ctx, fmt.Sprintf("chunk_duration must be in (0, %.0f]", c.srv.cfg.Streaming.MaxChunkDuration))
		return
	}

	if msg.Language != "" {
		c.sess.SetLanguage(asr.Language(msg.Language))
	}
	c.mu.Lock()
	if msg.ChunkDuration != 0 {
		c.chunkDuration = msg.ChunkDuration
	}
	chunkDuration := c.chunkDuration
	c.mu.Unlock()

	c.send(ctx, serverMessage{
		Type:          msgConfigUpdated,
		Language:      string(c.sess.Language()),
		ChunkDuration: chunkDuration,
	})
}

// handleAudio decodes one audio payload, feeds the ring buffer and the
// streaming state machine, and emits the chunk's result.
func (c *wsConn) handleAudio(ctx context.Context, msg clientMessage) {
	payload, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		c.sendError(ctx, "invalid base64 audio: "+err.Error())
		return
	}

	var samples []float32
	switch msg.Format {
	case "opus":
		if c.opus == nil {
			dec, err := audio.NewOpusDecoder()
			if err != nil {
				c.sendError(ctx, "opus decoder unavailable: "+err.Error())
				return
			}
			c.opus = dec
		}
		samples, err = c.opus.Decode(payload)
	case "", "pcm16":
		samples, err = audio.PCM16ToFloat32(payload)
	default:
		c.sendError(ctx, fmt.Sprintf("unknown audio format %q", msg.Format))
		return
	}
	if err != nil {
		c.sendError(ctx, "decode audio: "+err.Error())
		return
	}

	buffer := c.sess.Buffer()
	buffer.Append(samples)
	c.srv.stats.chunks.Add(1)
	c.srv.metrics.BufferDuration.Record(ctx, buffer.UnconsumedDuration())

	start := time.Now()
	res := c.sess.ProcessChunk(ctx, samples, false)
	c.srv.metrics.RecordInference(ctx, "stream", time.Since(start).Seconds())
	if res.Status == asr.StatusError {
		c.srv.stats.errors.Add(1)
		c.srv.metrics.RecordRecognizerError(ctx, "stream")
	} else {
		c.srv.stats.recognitions.Add(1)
	}
	if res.IsFinal {
		c.srv.correct(&res)
	}

	c.send(ctx, serverMessage{
		Type:      msgResult,
		Result:    &res,
		Timestamp: time.Now().UnixMilli(),
	})
}

// send marshals and writes one message. Writes are serialized because the
// receive loop and the consumer loop both emit.
func (c *wsConn) send(ctx context.Context, msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.srv.logger.Warn("marshal message failed", "client_id", c.id, "error", err)
		return
	}

	c.writeMu.Lock()
	err = c.conn.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.srv.logger.Debug("write failed", "client_id", c.id, "type", msg.Type, "error", err)
		return
	}
	c.srv.metrics.RecordWSMessage(ctx, "out", msg.Type)
}

func (c *wsConn) sendError(ctx context.Context, text string) {
	c.srv.stats.errors.Add(1)
	c.send(ctx, serverMessage{Type: msgError, Error: text})
}

// meteredRecognizer wraps the session's segment dispatch with instrument
// updates for the consumer loop.
type meteredRecognizer struct {
	sess    *session.Session
	metrics *observe.Metrics
	stats   *connStats
}

var _ session.LanguageProvider = (*meteredRecognizer)(nil)

func (m *meteredRecognizer) Recognize(ctx context.Context, samples []float32, key string) ([]asr.Result, error) {
	start := time.Now()
	results, err := m.sess.Recognize(ctx, samples, key)
	m.metrics.RecordInference(ctx, "segment", time.Since(start).Seconds())
	m.metrics.SegmentsDispatched.Add(ctx, 1)
	if err != nil {
		m.metrics.RecordRecognizerError(ctx, "segment")
		m.stats.errors.Add(1)
	} else {
		m.stats.recognitions.Add(1)
	}
	return results, err
}
