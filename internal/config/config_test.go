package config_test

import (
	"strings"
	"testing"

	"github.com/openspeechlab/sensegate/internal/config"
	"github.com/openspeechlab/sensegate/pkg/asr"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want :8000", cfg.Server.ListenAddr)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.BufferDuration != 30 {
		t.Errorf("BufferDuration = %v, want 30", cfg.Audio.BufferDuration)
	}
	if cfg.Streaming.DefaultLanguage != asr.LangAuto {
		t.Errorf("DefaultLanguage = %q, want auto", cfg.Streaming.DefaultLanguage)
	}
	if cfg.Streaming.ChunkSize != [3]int{0, 10, 5} {
		t.Errorf("ChunkSize = %v, want [0 10 5]", cfg.Streaming.ChunkSize)
	}
	if cfg.Batch.ChunkSize != 60 || cfg.Batch.Overlap != 1 {
		t.Errorf("Batch = %+v, want chunk_size 60 overlap 1", cfg.Batch)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestDefaultsFillOmittedFields(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":9000"
recognizer:
  name: whisper
  base_url: http://localhost:8080
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Streaming.MaxWindow != 10 {
		t.Errorf("MaxWindow = %v, want 10", cfg.Streaming.MaxWindow)
	}
	if cfg.Streaming.SilenceTimeout != 1.5 {
		t.Errorf("SilenceTimeout = %v, want 1.5", cfg.Streaming.SilenceTimeout)
	}
	if cfg.Audio.MinSpeechDuration != 0.25 {
		t.Errorf("MinSpeechDuration = %v, want 0.25", cfg.Audio.MinSpeechDuration)
	}
}

func TestLogLevelValidity(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q reported invalid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("verbose reported valid")
	}
}
