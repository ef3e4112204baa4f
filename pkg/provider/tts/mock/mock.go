// Package mock provides a scriptable tts.Synthesizer for tests.
package mock

import (
	"context"
	"sync"

	"github.com/akhilsonga/ASHTRAA/pkg/provider/tts"
)

// SynthesizeCall records the arguments of one Synthesize invocation.
type SynthesizeCall struct {
	Text  string
	Voice int
}

// Synthesizer is a test double implementing tts.Synthesizer. Configure the
// result fields before use; calls are recorded for assertions.
type Synthesizer struct {
	// Audio is returned on success. When nil, a small placeholder is used.
	Audio []byte

	// Err, when non-nil, is returned by every call.
	Err error

	// FailOn makes only the given 1-based call numbers fail with Err
	// (or a default error when Err is nil), letting tests exercise
	// per-segment failure without failing the whole batch.
	FailOn map[int]bool

	mu    sync.Mutex
	Calls []SynthesizeCall
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// Synthesize implements tts.Synthesizer.
func (m *Synthesizer) Synthesize(_ context.Context, text string, voice int) ([]byte, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, SynthesizeCall{Text: text, Voice: voice})
	n := len(m.Calls)
	m.mu.Unlock()

	if m.FailOn[n] {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, errSynthesis
	}
	if m.Err != nil && m.FailOn == nil {
		return nil, m.Err
	}
	if m.Audio != nil {
		return m.Audio, nil
	}
	return []byte("audio:" + text), nil
}

// CallCount returns how many times Synthesize was invoked.
func (m *Synthesizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

type mockErr string

func (e mockErr) Error() string { return string(e) }

const errSynthesis = mockErr("mock synthesizer: scripted failure")
