package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openspeechlab/sensegate/pkg/asr"
	recmock "github.com/openspeechlab/sensegate/pkg/provider/recognizer/mock"
)

func TestChainPrimarySuccess(t *testing.T) {
	primary := &recmock.Recognizer{
		Results: [][]asr.Result{{asr.NewResult("primary text", "mock", 0.9, true)}},
	}
	secondary := &recmock.Recognizer{}

	c := NewChain("primary", primary, BackendConfig{})
	c.Add("secondary", secondary)

	results, err := c.Infer(context.Background(), make([]float32, 160), asr.LangEnglish, "k")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(results) != 1 || results[0].Text != "primary text" {
		t.Errorf("results = %+v, want primary text", results)
	}
	if len(secondary.InferCalls) != 0 {
		t.Errorf("secondary called %d times, want 0", len(secondary.InferCalls))
	}
}

func TestChainFailsOver(t *testing.T) {
	primary := &recmock.Recognizer{Err: errors.New("whisper-server unreachable")}
	secondary := &recmock.Recognizer{
		Results: [][]asr.Result{{asr.NewResult("fallback text", "mock", 0.5, true)}},
	}

	c := NewChain("primary", primary, BackendConfig{})
	c.Add("secondary", secondary)

	results, err := c.Infer(context.Background(), make([]float32, 160), asr.LangEnglish, "k")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(results) != 1 || results[0].Text != "fallback text" {
		t.Errorf("results = %+v, want fallback text", results)
	}
	if len(primary.InferCalls) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.InferCalls))
	}
}

func TestChainAllBackendsDown(t *testing.T) {
	primary := &recmock.Recognizer{Err: errors.New("down")}
	secondary := &recmock.Recognizer{Err: errors.New("also down")}

	c := NewChain("primary", primary, BackendConfig{})
	c.Add("secondary", secondary)

	if _, err := c.Infer(context.Background(), make([]float32, 160), asr.LangEnglish, "k"); !errors.Is(err, ErrNoBackend) {
		t.Errorf("error = %v, want ErrNoBackend", err)
	}
}

func TestChainSkipsBenchedPrimary(t *testing.T) {
	primary := &recmock.Recognizer{Err: errors.New("down")}
	secondary := &recmock.Recognizer{
		Results: [][]asr.Result{{asr.NewResult("fallback text", "mock", 0.5, true)}},
	}

	c := NewChain("primary", primary, BackendConfig{TripAfter: 2, Cooldown: time.Hour})
	c.Add("secondary", secondary)

	for range 4 {
		if _, err := c.Infer(context.Background(), make([]float32, 160), asr.LangEnglish, "k"); err != nil {
			t.Fatalf("Infer: %v", err)
		}
	}

	// The primary is benched after two failures; later calls skip it.
	if len(primary.InferCalls) != 2 {
		t.Errorf("primary called %d times, want 2", len(primary.InferCalls))
	}
	if len(secondary.InferCalls) != 4 {
		t.Errorf("secondary called %d times, want 4", len(secondary.InferCalls))
	}
}

func TestChainModelType(t *testing.T) {
	primary := &recmock.Recognizer{Err: errors.New("down")}

	c := NewChain("primary", primary, BackendConfig{TripAfter: 1, Cooldown: time.Hour})
	if got := c.ModelType(); got != "mock" {
		t.Errorf("ModelType = %q before any failure, want mock", got)
	}

	// Bench the only backend; the chain has nothing left to report.
	_, _ = c.Infer(context.Background(), make([]float32, 160), asr.LangAuto, "k")
	if got := c.ModelType(); got != "unavailable" {
		t.Errorf("ModelType = %q with every backend benched, want unavailable", got)
	}
}
