// Package pipeline turns a user chat message into persisted podcast audio.
//
// One Orchestrator owns one live conversation: it keeps the running LLM
// transcript, asks the model for the next scripted exchange, extracts the
// tagged segments, synthesizes each one, and appends the results to the
// session store. Turns are serialized; concurrent Chat calls queue on an
// internal mutex because the transcript and the session's running index are
// both per-conversation state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/akhilsonga/ASHTRAA/internal/attach"
	"github.com/akhilsonga/ASHTRAA/internal/observe"
	"github.com/akhilsonga/ASHTRAA/internal/prompt"
	"github.com/akhilsonga/ASHTRAA/internal/resilience"
	"github.com/akhilsonga/ASHTRAA/internal/script"
	"github.com/akhilsonga/ASHTRAA/internal/session"
	"github.com/akhilsonga/ASHTRAA/pkg/provider/llm"
	"github.com/akhilsonga/ASHTRAA/pkg/provider/tts"
)

// ErrNoInput is returned by Chat when the request carries neither a message
// nor an attachment. Callers map it to a 4xx.
var ErrNoInput = errors.New("pipeline: empty chat request")

// titleLimit caps the session title derived from the first user message.
const titleLimit = 50

// ChatRequest is one user turn. At least one of Message and FileData must be
// set.
type ChatRequest struct {
	// Message is the user's text.
	Message string

	// FileData is an optional attachment, base64 or data URL, interpreted
	// per FileType. See [attach.Process].
	FileData string
	FileType string
}

// ChatResult is the outcome of one completed turn.
type ChatResult struct {
	// Text is the model's full scripted reply, voice tags included.
	Text string

	// Segments are the records appended this turn, synthesis order. Segments
	// whose synthesis failed are absent; their indices stay consumed.
	Segments []session.SegmentRecord

	// SessionID names the session directory holding the audio.
	SessionID string
}

// Config carries the Orchestrator's collaborators. LLM, TTS, Store, Session,
// and Metrics are required; zero Retry and nil Breaker get defaults.
type Config struct {
	LLM     llm.Provider
	TTS     tts.Synthesizer
	Store   *session.Store
	Session *session.Session
	Metrics *observe.Metrics

	// BaseURL is the public prefix for segment URLs, without trailing slash.
	BaseURL string

	// Retry bounds each segment's synthesis attempts.
	Retry resilience.RetryPolicy

	// Breaker guards the TTS backend across segments and turns.
	Breaker *resilience.Breaker
}

// Orchestrator drives the chat-to-audio pipeline for one conversation.
type Orchestrator struct {
	llm     llm.Provider
	tts     tts.Synthesizer
	store   *session.Store
	sess    *session.Session
	metrics *observe.Metrics
	baseURL string
	retry   resilience.RetryPolicy
	breaker *resilience.Breaker

	mu         sync.Mutex
	transcript []llm.Message
	title      string
}

// New builds an Orchestrator. The transcript starts with the script-writer
// system prompt; when the session was reopened its stored segments are not
// replayed into the transcript, the model starts fresh while the store keeps
// appending behind the prior records.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.LLM == nil:
		return nil, errors.New("pipeline: nil LLM provider")
	case cfg.TTS == nil:
		return nil, errors.New("pipeline: nil TTS synthesizer")
	case cfg.Store == nil:
		return nil, errors.New("pipeline: nil session store")
	case cfg.Session == nil:
		return nil, errors.New("pipeline: nil session")
	case cfg.Metrics == nil:
		return nil, errors.New("pipeline: nil metrics")
	}
	retry := cfg.Retry
	if retry.Attempts == 0 {
		retry = resilience.DefaultRetryPolicy()
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: "tts"})
	}
	return &Orchestrator{
		llm:        cfg.LLM,
		tts:        cfg.TTS,
		store:      cfg.Store,
		sess:       cfg.Session,
		metrics:    cfg.Metrics,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retry:      retry,
		breaker:    breaker,
		transcript: []llm.Message{{Role: "system", Content: prompt.System}},
	}, nil
}

// SessionID returns the identifier of the conversation this orchestrator
// appends to.
func (o *Orchestrator) SessionID() string {
	return o.sess.ID()
}

// Chat runs one full turn: attachment processing, script generation, segment
// extraction, synthesis, and persistence. Segments that fail synthesis after
// retries are skipped; the turn still succeeds with the survivors. A turn
// that extracts no segments writes nothing to the store.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "pipeline.chat")
	defer span.End()
	log := observe.Logger(ctx)
	turnStart := time.Now()

	if strings.TrimSpace(req.Message) == "" && req.FileData == "" {
		return nil, ErrNoInput
	}

	userMsg, err := o.buildUserMessage(req)
	if err != nil {
		return nil, err
	}
	if o.title == "" {
		o.title = deriveTitle(req.Message)
	}

	reply, err := o.complete(ctx, userMsg)
	if err != nil {
		return nil, err
	}
	o.transcript = append(o.transcript, userMsg, llm.Message{Role: "assistant", Content: reply})

	segments := script.Extract(reply)
	result := &ChatResult{Text: reply, SessionID: o.sess.ID()}
	if len(segments) == 0 {
		log.Warn("reply contained no voice segments", "chars", len(reply))
		return result, nil
	}

	cues := script.Sequence(o.sess.RunningIndex(), segments)
	for _, cue := range cues {
		o.sess.Advance() // the index stays consumed even when synthesis fails

		audio, err := o.synthesize(ctx, cue)
		if err != nil {
			o.metrics.SynthesisFailures.Add(ctx, 1)
			log.Error("segment synthesis failed, skipping",
				"index", cue.Index, "voice", cue.Voice, "error", err)
			continue
		}
		if err := o.store.WriteAudio(o.sess.ID(), cue.Filename, audio); err != nil {
			o.metrics.SynthesisFailures.Add(ctx, 1)
			log.Error("segment audio write failed, skipping",
				"index", cue.Index, "filename", cue.Filename, "error", err)
			continue
		}
		o.metrics.SegmentsSynthesized.Add(ctx, 1)

		result.Segments = append(result.Segments, session.SegmentRecord{
			ID:       cue.Index,
			Voice:    script.SpeakerLabel(cue.Voice),
			Filename: cue.Filename,
			Text:     cue.Text,
			URL:      fmt.Sprintf("%s/audio/%s/%s", o.baseURL, o.sess.ID(), cue.Filename),
		})
	}

	if len(result.Segments) > 0 {
		if err := o.store.Append(o.sess.ID(), o.title, result.Segments); err != nil {
			return nil, fmt.Errorf("pipeline: persist segments: %w", err)
		}
	}

	o.metrics.TurnDuration.Record(ctx, time.Since(turnStart).Seconds())
	log.Info("chat turn complete",
		"session", o.sess.ID(),
		"segments", len(result.Segments),
		"skipped", len(cues)-len(result.Segments),
		"duration", time.Since(turnStart))
	return result, nil
}

// buildUserMessage folds an optional attachment into the user's turn: PDF
// text is appended to the message content, an image rides along as a data
// URL.
func (o *Orchestrator) buildUserMessage(req ChatRequest) (llm.Message, error) {
	msg := llm.Message{Role: "user", Content: req.Message}
	if req.FileData == "" {
		return msg, nil
	}
	att, err := attach.Process(req.FileData, req.FileType)
	if err != nil {
		return llm.Message{}, err
	}
	msg.Content += att.TextSupplement
	msg.ImageURL = att.ImageURL
	return msg, nil
}

// complete asks the model for the next scripted exchange.
func (o *Orchestrator) complete(ctx context.Context, userMsg llm.Message) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.llm")
	defer span.End()
	start := time.Now()

	messages := make([]llm.Message, 0, len(o.transcript)+1)
	messages = append(messages, o.transcript...)
	messages = append(messages, userMsg)

	resp, err := o.llm.Complete(ctx, llm.CompletionRequest{Messages: messages})
	o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	o.metrics.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", "llm"),
		attribute.String("status", statusLabel(err)),
	))
	if err != nil {
		return "", fmt.Errorf("pipeline: script generation: %w", err)
	}
	return resp.Content, nil
}

// synthesize produces one segment's audio under the retry policy and the
// shared circuit breaker.
func (o *Orchestrator) synthesize(ctx context.Context, cue script.Cue) ([]byte, error) {
	ctx, span := observe.StartSpan(ctx, "pipeline.tts")
	defer span.End()
	start := time.Now()

	var audio []byte
	err := o.retry.Do(ctx, "tts", func(ctx context.Context) error {
		return o.breaker.Do(func() error {
			var synthErr error
			audio, synthErr = o.tts.Synthesize(ctx, cue.Text, cue.Voice)
			return synthErr
		})
	})
	o.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	o.metrics.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", "tts"),
		attribute.String("status", statusLabel(err)),
	))
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// deriveTitle shortens the first user message into a session title.
func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if title == "" {
		return "New conversation"
	}
	if len(title) > titleLimit {
		title = title[:titleLimit]
	}
	return title
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
