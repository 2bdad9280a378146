// Package config provides the configuration schema and loader for the
// sensegate server.
package config

import "github.com/openspeechlab/sensegate/pkg/asr"

// LogLevel controls log verbosity for the sensegate server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Streaming  StreamingConfig  `yaml:"streaming"`
	Batch      BatchConfig      `yaml:"batch"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	VAD        VADConfig        `yaml:"vad"`

	// Hotwords lists domain terms whose canonical spelling is restored in
	// recognized text via phonetic matching. Empty disables correction.
	Hotwords []string `yaml:"hotwords"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds the ring buffer and segment consumption parameters.
type AudioConfig struct {
	// SampleRate is the PCM sample rate in Hz every recognition path runs at.
	// Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// BufferDuration is the per-connection ring buffer capacity in seconds.
	// Default: 30.
	BufferDuration float64 `yaml:"buffer_duration"`

	// MinTrigger is the unconsumed duration (seconds) below which a consumer
	// poll does nothing. Default: 5.
	MinTrigger float64 `yaml:"min_trigger"`

	// PollIntervalMs is the consumer sleep after a poll that dispatched work,
	// in milliseconds. Default: 1000.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// IdleIntervalMs is the consumer sleep after an idle poll, in
	// milliseconds. Default: 500.
	IdleIntervalMs int `yaml:"idle_interval_ms"`

	// MinSpeechDuration is the shortest VAD segment worth transcribing, in
	// seconds. Default: 0.25.
	MinSpeechDuration float64 `yaml:"min_speech_duration"`
}

// StreamingConfig holds the streaming session parameters.
type StreamingConfig struct {
	// DefaultLanguage is the recognition language used when a connection does
	// not configure one. Default: auto.
	DefaultLanguage asr.Language `yaml:"default_language"`

	// MaxWindow bounds the accumulated recognition window in seconds.
	// Default: 10.
	MaxWindow float64 `yaml:"max_window"`

	// SilenceTimeout is the post-speech silence (seconds) that forces
	// finality when a VAD model is available. Default: 1.5.
	SilenceTimeout float64 `yaml:"silence_timeout"`

	// EnergyThreshold is the mean-abs amplitude below which a chunk counts as
	// silent for the no-VAD fallback. Default: 0.01.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// MaxSilentChunks is the consecutive silent chunk count that forces
	// finality for the no-VAD fallback. Default: 5.
	MaxSilentChunks int `yaml:"max_silent_chunks"`

	// MaxChunkDuration bounds the per-message chunk_duration a client may
	// request, in seconds. Default: 10.
	MaxChunkDuration float64 `yaml:"max_chunk_duration"`

	// ChunkSize is the incremental recognizer's chunk geometry triplet.
	// Default: [0, 10, 5].
	ChunkSize [3]int `yaml:"chunk_size"`

	// EncoderLookBack is the incremental encoder's chunk look-back.
	// Default: 4.
	EncoderLookBack int `yaml:"encoder_look_back"`

	// DecoderLookBack is the incremental decoder's chunk look-back.
	// Default: 1.
	DecoderLookBack int `yaml:"decoder_look_back"`
}

// BatchConfig holds the chunked upload transcription parameters.
type BatchConfig struct {
	// ChunkSize is the default window size in seconds for long uploads.
	// Requests may override it, including with 0 to disable chunking.
	// Default: 60.
	ChunkSize float64 `yaml:"chunk_size"`

	// Overlap is the window overlap in seconds. Default: 1.
	Overlap float64 `yaml:"overlap"`
}

// RecognizerConfig selects and configures the whole-utterance recognizer
// backend.
type RecognizerConfig struct {
	// Name selects the backend: "whisper" (HTTP) or "whisper-native" (CGO).
	Name string `yaml:"name"`

	// BaseURL is the whisper-server endpoint for the "whisper" backend
	// (e.g., "http://localhost:8080").
	BaseURL string `yaml:"base_url"`

	// ModelPath is the checkpoint path for the "whisper-native" backend.
	ModelPath string `yaml:"model_path"`

	// Model is the model identifier forwarded to the HTTP backend.
	Model string `yaml:"model"`

	// FallbackBaseURL optionally names a second whisper-server used when the
	// primary fails; the primary sits behind a circuit breaker.
	FallbackBaseURL string `yaml:"fallback_base_url"`

	// Streaming enables the incremental recognition path on top of the
	// selected backend.
	Streaming bool `yaml:"streaming"`
}

// VADConfig selects and configures the VAD backend.
type VADConfig struct {
	// Name selects the backend: "silero", "energy", or "" to disable VAD.
	Name string `yaml:"name"`

	// ModelPath is the ONNX checkpoint path for the "silero" backend.
	ModelPath string `yaml:"model_path"`

	// LibraryPath optionally overrides the ONNX Runtime shared library path.
	LibraryPath string `yaml:"library_path"`

	// Threshold is the speech probability (silero) or RMS amplitude (energy)
	// threshold. 0 uses the backend default.
	Threshold float64 `yaml:"threshold"`
}

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8000",
			LogLevel:   LogInfo,
		},
		Audio: AudioConfig{
			SampleRate:        16000,
			BufferDuration:    30,
			MinTrigger:        5,
			PollIntervalMs:    1000,
			IdleIntervalMs:    500,
			MinSpeechDuration: 0.25,
		},
		Streaming: StreamingConfig{
			DefaultLanguage:  asr.LangAuto,
			MaxWindow:        10,
			SilenceTimeout:   1.5,
			EnergyThreshold:  0.01,
			MaxSilentChunks:  5,
			MaxChunkDuration: 10,
			ChunkSize:        [3]int{0, 10, 5},
			EncoderLookBack:  4,
			DecoderLookBack:  1,
		},
		Batch: BatchConfig{
			ChunkSize: 60,
			Overlap:   1,
		},
		Recognizer: RecognizerConfig{
			Name:    "whisper",
			BaseURL: "http://localhost:8080",
		},
		VAD: VADConfig{
			Name: "energy",
		},
	}
}

// applyDefaults fills zero fields with default values.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = d.Server.ListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.BufferDuration <= 0 {
		c.Audio.BufferDuration = d.Audio.BufferDuration
	}
	if c.Audio.MinTrigger <= 0 {
		c.Audio.MinTrigger = d.Audio.MinTrigger
	}
	if c.Audio.PollIntervalMs <= 0 {
		c.Audio.PollIntervalMs = d.Audio.PollIntervalMs
	}
	if c.Audio.IdleIntervalMs <= 0 {
		c.Audio.IdleIntervalMs = d.Audio.IdleIntervalMs
	}
	if c.Audio.MinSpeechDuration <= 0 {
		c.Audio.MinSpeechDuration = d.Audio.MinSpeechDuration
	}
	if c.Streaming.DefaultLanguage == "" {
		c.Streaming.DefaultLanguage = d.Streaming.DefaultLanguage
	}
	if c.Streaming.MaxWindow <= 0 {
		c.Streaming.MaxWindow = d.Streaming.MaxWindow
	}
	if c.Streaming.SilenceTimeout <= 0 {
		c.Streaming.SilenceTimeout = d.Streaming.SilenceTimeout
	}
	if c.Streaming.EnergyThreshold <= 0 {
		c.Streaming.EnergyThreshold = d.Streaming.EnergyThreshold
	}
	if c.Streaming.MaxSilentChunks <= 0 {
		c.Streaming.MaxSilentChunks = d.Streaming.MaxSilentChunks
	}
	if c.Streaming.MaxChunkDuration <= 0 {
		c.Streaming.MaxChunkDuration = d.Streaming.MaxChunkDuration
	}
	if c.Streaming.ChunkSize == ([3]int{}) {
		c.Streaming.ChunkSize = d.Streaming.ChunkSize
	}
	if c.Streaming.EncoderLookBack <= 0 {
		c.Streaming.EncoderLookBack = d.Streaming.EncoderLookBack
	}
	if c.Streaming.DecoderLookBack <= 0 {
		c.Streaming.DecoderLookBack = d.Streaming.DecoderLookBack
	}
	if c.Batch.ChunkSize <= 0 {
		c.Batch.ChunkSize = d.Batch.ChunkSize
	}
	if c.Batch.Overlap <= 0 {
		c.Batch.Overlap = d.Batch.Overlap
	}
	if c.Recognizer.Name == "" {
		c.Recognizer.Name = d.Recognizer.Name
	}
}
