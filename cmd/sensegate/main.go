// Command sensegate is the real-time speech recognition server: a chunked
// batch transcription API plus a streaming WebSocket endpoint over pluggable
// recognizer and VAD backends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openspeechlab/sensegate/internal/config"
	"github.com/openspeechlab/sensegate/internal/engine"
	"github.com/openspeechlab/sensegate/internal/observe"
	"github.com/openspeechlab/sensegate/internal/resilience"
	"github.com/openspeechlab/sensegate/internal/server"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer"
	"github.com/openspeechlab/sensegate/pkg/provider/recognizer/whisper"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel/energy"
	"github.com/openspeechlab/sensegate/pkg/provider/vadmodel/silero"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sensegate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sensegate: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sensegate starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"recognizer", cfg.Recognizer.Name,
		"streaming", cfg.Recognizer.Streaming,
		"vad", cfg.VAD.Name,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "sensegate",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	eng := engine.New(recognizerFactory(cfg), engineOptions(cfg)...)
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine close error", "err", err)
		}
	}()

	srv := server.New(cfg, eng, server.WithLogger(logger))
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// recognizerFactory selects the whole-utterance recognizer backend from the
// config. The model is built lazily by the engine on first use.
func recognizerFactory(cfg *config.Config) engine.RecognizerFactory {
	switch cfg.Recognizer.Name {
	case "whisper-native":
		return func() (recognizer.Recognizer, error) {
			return whisper.NewNative(cfg.Recognizer.ModelPath)
		}
	default:
		return func() (recognizer.Recognizer, error) {
			var opts []whisper.Option
			if cfg.Recognizer.Model != "" {
				opts = append(opts, whisper.WithModel(cfg.Recognizer.Model))
			}
			primary, err := whisper.New(cfg.Recognizer.BaseURL, opts...)
			if err != nil {
				return nil, err
			}
			if cfg.Recognizer.FallbackBaseURL == "" {
				return primary, nil
			}
			secondary, err := whisper.New(cfg.Recognizer.FallbackBaseURL, opts...)
			if err != nil {
				return nil, err
			}
			chain := resilience.NewChain(cfg.Recognizer.BaseURL, primary, resilience.BackendConfig{})
			chain.Add(cfg.Recognizer.FallbackBaseURL, secondary)
			return chain, nil
		}
	}
}

// engineOptions wires the optional incremental recognizer and VAD backend.
func engineOptions(cfg *config.Config) []engine.Option {
	var opts []engine.Option

	if cfg.Recognizer.Streaming {
		rec := recognizerFactory(cfg)
		lang := cfg.Streaming.DefaultLanguage
		opts = append(opts, engine.WithStreamingFactory(func() (recognizer.Streaming, error) {
			inner, err := rec()
			if err != nil {
				return nil, err
			}
			return whisper.NewIncremental(inner, lang), nil
		}))
	}

	switch cfg.VAD.Name {
	case "silero":
		opts = append(opts, engine.WithVADFactory(func() (vadmodel.Model, error) {
			var sileroOpts []silero.Option
			if cfg.VAD.Threshold > 0 {
				sileroOpts = append(sileroOpts, silero.WithThreshold(cfg.VAD.Threshold))
			}
			if cfg.VAD.LibraryPath != "" {
				sileroOpts = append(sileroOpts, silero.WithLibraryPath(cfg.VAD.LibraryPath))
			}
			return silero.New(cfg.VAD.ModelPath, sileroOpts...)
		}))
	case "energy":
		opts = append(opts, engine.WithVADFactory(func() (vadmodel.Model, error) {
			var energyOpts []energy.Option
			if cfg.VAD.Threshold > 0 {
				energyOpts = append(energyOpts, energy.WithThreshold(cfg.VAD.Threshold))
			}
			return energy.New(energyOpts...), nil
		}))
	}

	return opts
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
