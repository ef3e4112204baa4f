// Package mock provides a scriptable llm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/akhilsonga/ASHTRAA/pkg/provider/llm"
)

// Provider is a test double implementing llm.Provider.
type Provider struct {
	// Response is the reply text returned by Complete.
	Response string

	// Err, when non-nil, is returned instead of a response.
	Err error

	mu    sync.Mutex
	Calls []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// Complete implements llm.Provider.
func (m *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	return &llm.CompletionResponse{Content: m.Response}, nil
}

// LastRequest returns the most recent request, or nil when none were made.
func (m *Provider) LastRequest() *llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	req := m.Calls[len(m.Calls)-1]
	return &req
}
