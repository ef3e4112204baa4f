// Package tts defines the Synthesizer interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Deepgram Aura) and
// turns one dialogue line into one encoded audio clip. Synthesis here is
// batch, not streaming: the pipeline stores whole clips per segment stored,
// and the bytes returned are persisted verbatim.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Synthesizer is the abstraction over any batch TTS backend.
type Synthesizer interface {
	// Synthesize renders text as spoken audio using the given numeric voice
	// identifier and returns the encoded audio bytes. How a voice number maps
	// to a backend voice — and what happens for numbers the backend does not
	// recognize — is the implementation's policy; it may substitute a default
	// voice or return an error.
	//
	// A non-nil error means no audio was produced for this text. Callers
	// treat that as a segment-level failure, not a fatal condition.
	Synthesize(ctx context.Context, text string, voice int) ([]byte, error)
}
