package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidRecognizerNames lists the known whole-utterance recognizer backends.
var ValidRecognizerNames = []string{"whisper", "whisper-native"}

// ValidVADNames lists the known VAD backends. The empty string disables VAD.
var ValidVADNames = []string{"silero", "energy"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Streaming
	if !cfg.Streaming.DefaultLanguage.IsValid() {
		errs = append(errs, fmt.Errorf("streaming.default_language %q is invalid; valid values: auto, zh, en, yue, ja, ko, nospeech", cfg.Streaming.DefaultLanguage))
	}
	if cfg.Streaming.MaxWindow > cfg.Audio.BufferDuration {
		errs = append(errs, fmt.Errorf("streaming.max_window %.1f exceeds audio.buffer_duration %.1f", cfg.Streaming.MaxWindow, cfg.Audio.BufferDuration))
	}

	// Batch
	if cfg.Batch.ChunkSize > 0 && cfg.Batch.Overlap >= cfg.Batch.ChunkSize {
		errs = append(errs, fmt.Errorf("batch.overlap %.1f must be smaller than batch.chunk_size %.1f", cfg.Batch.Overlap, cfg.Batch.ChunkSize))
	}

	// Recognizer
	if !slices.Contains(ValidRecognizerNames, cfg.Recognizer.Name) {
		errs = append(errs, fmt.Errorf("recognizer.name %q is invalid; valid values: %v", cfg.Recognizer.Name, ValidRecognizerNames))
	}
	switch cfg.Recognizer.Name {
	case "whisper":
		if cfg.Recognizer.BaseURL == "" {
			errs = append(errs, errors.New("recognizer.base_url is required when recognizer.name is whisper"))
		}
	case "whisper-native":
		if cfg.Recognizer.ModelPath == "" {
			errs = append(errs, errors.New("recognizer.model_path is required when recognizer.name is whisper-native"))
		}
	}

	// VAD
	if cfg.VAD.Name != "" && !slices.Contains(ValidVADNames, cfg.VAD.Name) {
		errs = append(errs, fmt.Errorf("vad.name %q is invalid; valid values: %v or empty to disable", cfg.VAD.Name, ValidVADNames))
	}
	if cfg.VAD.Name == "silero" && cfg.VAD.ModelPath == "" {
		errs = append(errs, errors.New("vad.model_path is required when vad.name is silero"))
	}
	if cfg.VAD.Name == "" {
		slog.Warn("no VAD backend configured; segment consumption is disabled and endpointing falls back to the energy counter")
	}

	return errors.Join(errs...)
}
