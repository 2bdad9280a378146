package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openspeechlab/sensegate/internal/config"
)

const sampleYAML = `
server:
  listen_addr: ":8000"
  log_level: debug

audio:
  sample_rate: 16000
  buffer_duration: 20
  min_trigger: 4

streaming:
  default_language: en
  max_window: 8
  silence_timeout: 2

batch:
  chunk_size: 45
  overlap: 2

recognizer:
  name: whisper
  base_url: http://localhost:8080
  model: base.en
  streaming: true

vad:
  name: energy
  threshold: 0.02
`

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Audio.BufferDuration != 20 {
		t.Errorf("BufferDuration = %v, want 20", cfg.Audio.BufferDuration)
	}
	if cfg.Streaming.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q, want en", cfg.Streaming.DefaultLanguage)
	}
	if cfg.Batch.ChunkSize != 45 || cfg.Batch.Overlap != 2 {
		t.Errorf("Batch = %+v", cfg.Batch)
	}
	if !cfg.Recognizer.Streaming {
		t.Error("Recognizer.Streaming = false, want true")
	}
	if cfg.VAD.Threshold != 0.02 {
		t.Errorf("VAD.Threshold = %v, want 0.02", cfg.VAD.Threshold)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want :8000", cfg.Server.ListenAddr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_adress: ":8000"
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidLanguage(t *testing.T) {
	t.Parallel()

	yaml := `
streaming:
  default_language: klingon
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid language, got nil")
	}
	if !strings.Contains(err.Error(), "default_language") {
		t.Errorf("error should mention default_language, got: %v", err)
	}
}

func TestValidate_UnknownRecognizer(t *testing.T) {
	t.Parallel()

	yaml := `
recognizer:
  name: wav2vec
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown recognizer, got nil")
	}
	if !strings.Contains(err.Error(), "recognizer.name") {
		t.Errorf("error should mention recognizer.name, got: %v", err)
	}
}

func TestValidate_NativeRequiresModelPath(t *testing.T) {
	t.Parallel()

	yaml := `
recognizer:
  name: whisper-native
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing model_path, got nil")
	}
	if !strings.Contains(err.Error(), "model_path") {
		t.Errorf("error should mention model_path, got: %v", err)
	}
}

func TestValidate_SileroRequiresModelPath(t *testing.T) {
	t.Parallel()

	yaml := `
recognizer:
  name: whisper
  base_url: http://localhost:8080
vad:
  name: silero
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing vad model_path, got nil")
	}
	if !strings.Contains(err.Error(), "vad.model_path") {
		t.Errorf("error should mention vad.model_path, got: %v", err)
	}
}

func TestValidate_OverlapBounds(t *testing.T) {
	t.Parallel()

	yaml := `
recognizer:
  name: whisper
  base_url: http://localhost:8080
batch:
  chunk_size: 10
  overlap: 10
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for overlap >= chunk_size, got nil")
	}
	if !strings.Contains(err.Error(), "overlap") {
		t.Errorf("error should mention overlap, got: %v", err)
	}
}

func TestValidate_WindowExceedsBuffer(t *testing.T) {
	t.Parallel()

	yaml := `
recognizer:
  name: whisper
  base_url: http://localhost:8080
audio:
  buffer_duration: 5
streaming:
  max_window: 10
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for max_window > buffer_duration, got nil")
	}
	if !strings.Contains(err.Error(), "max_window") {
		t.Errorf("error should mention max_window, got: %v", err)
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: loud
streaming:
  default_language: klingon
recognizer:
  name: wav2vec
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "default_language", "recognizer.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}
