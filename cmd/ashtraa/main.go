// Command ashtraa is the podcast-generation audio server.
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

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/akhilsonga/ASHTRAA/internal/config"
	"github.com/akhilsonga/ASHTRAA/internal/health"
	"github.com/akhilsonga/ASHTRAA/internal/observe"
	"github.com/akhilsonga/ASHTRAA/internal/pipeline"
	"github.com/akhilsonga/ASHTRAA/internal/resilience"
	"github.com/akhilsonga/ASHTRAA/internal/server"
	"github.com/akhilsonga/ASHTRAA/internal/session"
	openaillm "github.com/akhilsonga/ASHTRAA/pkg/provider/llm/openai"
	"github.com/akhilsonga/ASHTRAA/pkg/provider/tts/deepgram"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "ashtraa: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "ashtraa: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("ashtraa starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"session_dir", cfg.Session.Dir,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "ashtraa"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	llmProv, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}
	ttsProv, err := buildTTS(cfg.Providers.TTS, cfg.Pipeline.SynthesisTimeout.Std())
	if err != nil {
		slog.Error("failed to build TTS provider", "err", err)
		return 1
	}

	// ── Session store ─────────────────────────────────────────────────────────
	store, err := session.NewStore(cfg.Session.Dir)
	if err != nil {
		slog.Error("failed to open session store", "err", err)
		return 1
	}
	sess, err := store.Create()
	if err != nil {
		slog.Error("failed to create session directory", "err", err)
		return 1
	}
	slog.Info("session directory ready", "session", sess.ID(), "dir", sess.Dir())

	// ── Pipeline ──────────────────────────────────────────────────────────────
	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "tts"})
	orch, err := pipeline.New(pipeline.Config{
		LLM:     llmProv,
		TTS:     ttsProv,
		Store:   store,
		Session: sess,
		Metrics: metrics,
		BaseURL: cfg.Server.BaseURL,
		Breaker: breaker,
		Retry: resilience.RetryPolicy{
			Attempts:       cfg.Pipeline.SynthesisAttempts,
			PerCallTimeout: cfg.Pipeline.SynthesisTimeout.Std(),
			Backoff:        500 * time.Millisecond,
		},
	})
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	healthHandler := health.New(cfg.Session.Dir,
		health.Checker{Name: "sessions", Check: func(context.Context) error {
			_, err := os.Stat(sess.Dir())
			return err
		}},
		health.Checker{Name: "tts", Check: func(context.Context) error {
			if state := breaker.State(); state == resilience.BreakerOpen {
				return fmt.Errorf("circuit breaker %s", state)
			}
			return nil
		}},
	)
	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(orch, store, healthHandler, metrics).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildLLM(entry config.ProviderEntry) (*openaillm.Provider, error) {
	var opts []openaillm.Option
	if entry.BaseURL != "" {
		opts = append(opts, openaillm.WithBaseURL(entry.BaseURL))
	}
	return openaillm.New(entry.APIKey, entry.Model, opts...)
}

func buildTTS(entry config.ProviderEntry, timeout time.Duration) (*deepgram.Synthesizer, error) {
	var opts []deepgram.Option
	if entry.BaseURL != "" {
		opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
	}
	if entry.Model != "" {
		opts = append(opts, deepgram.WithDefaultModel(entry.Model))
	}
	if timeout > 0 {
		opts = append(opts, deepgram.WithTimeout(timeout))
	}
	return deepgram.New(entry.APIKey, opts...)
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
