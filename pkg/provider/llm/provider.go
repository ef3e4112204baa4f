// Package llm defines the Provider interface for language-model backends.
//
// A provider takes an ordered conversation transcript and returns the
// model's next reply as a single text blob. The pipeline treats the reply as
// opaque script text; any voice tags inside it are the segment extractor's
// business, not the provider's.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message is a single turn in a conversation transcript.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// ImageURL optionally attaches an image to a user message as a data URL
	// or fetchable URL. Providers without vision support may ignore it or
	// return an error.
	ImageURL string
}

// CompletionRequest carries the transcript the model should continue.
type CompletionRequest struct {
	// Messages is the ordered conversation history; the last message drives
	// the response. Must be non-empty.
	Messages []Message

	// MaxTokens caps the completion length. Zero means the provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply.
type CompletionResponse struct {
	// Content is the full text of the reply.
	Content string

	// PromptTokens and CompletionTokens carry token accounting when the
	// backend reports it; zero otherwise.
	PromptTokens     int
	CompletionTokens int
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete generates the next assistant reply for the transcript in req.
	// It blocks until the full reply is available or ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
