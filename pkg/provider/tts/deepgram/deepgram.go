// Package deepgram provides a Deepgram Aura-backed TTS synthesizer using the
// batch speak REST API. It implements the tts.Synthesizer interface.
//
// Each Synthesize call is one POST to /v1/speak; the response body is the
// encoded audio clip (MP3 by default for Aura models).
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.deepgram.com"
	speakPath      = "/v1/speak"
	defaultModel   = "aura-asteria-en"
	defaultTimeout = 30 * time.Second

	// errBodyLimit caps how much of an error response body is carried into
	// the returned error.
	errBodyLimit = 512
)

// auraVoices maps the pipeline's small-integer voice identifiers to Deepgram
// Aura model names. Odd numbers are male voices, even numbers female.
var auraVoices = map[int]string{
	1: "aura-orpheus-en",
	2: "aura-asteria-en",
	3: "aura-arcas-en",
	4: "aura-luna-en",
	5: "aura-helios-en",
	6: "aura-stella-en",
}

// Option is a functional option for configuring the Synthesizer.
type Option func(*Synthesizer)

// WithBaseURL overrides the Deepgram API base URL. Used by tests to point at
// a local server.
func WithBaseURL(u string) Option {
	return func(s *Synthesizer) { s.baseURL = u }
}

// WithDefaultModel sets the Aura model used for voice identifiers outside
// the recognized 1–6 set.
func WithDefaultModel(model string) Option {
	return func(s *Synthesizer) { s.defaultModel = model }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.httpClient.Timeout = d }
}

// Synthesizer implements tts.Synthesizer backed by the Deepgram speak API.
type Synthesizer struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// New creates a Deepgram Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	s := &Synthesizer{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// speakRequest is the JSON body sent to /v1/speak.
type speakRequest struct {
	Text string `json:"text"`
}

// Synthesize implements tts.Synthesizer. Unrecognized voice numbers fall back
// to the configured default model rather than failing the segment.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice int) ([]byte, error) {
	body, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("deepgram: encode request: %w", err)
	}

	endpoint := s.baseURL + speakPath + "?" + url.Values{"model": {s.ModelForVoice(voice)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: speak: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, fmt.Errorf("deepgram: speak: unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("deepgram: read audio: %w", err)
	}
	return audio, nil
}

// ModelForVoice resolves a numeric voice identifier to an Aura model name,
// substituting the default model for unknown numbers.
func (s *Synthesizer) ModelForVoice(voice int) string {
	if model, ok := auraVoices[voice]; ok {
		return model
	}
	return s.defaultModel
}
