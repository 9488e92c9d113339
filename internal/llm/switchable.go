package llm

import (
	"context"
	"sync"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// Switchable is a Client whose underlying adapter can be replaced at
// runtime. The /models command swaps adapters mid-session without touching
// the orchestrator.
type Switchable struct {
	mu    sync.RWMutex
	inner Client
}

// NewSwitchable wraps an initial client.
func NewSwitchable(inner Client) *Switchable {
	return &Switchable{inner: inner}
}

// Swap replaces the underlying client. In-flight requests finish on the old
// one.
func (s *Switchable) Swap(inner Client) {
	s.mu.Lock()
	s.inner = inner
	s.mu.Unlock()
}

func (s *Switchable) current() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner
}

// Complete forwards to the current client.
func (s *Switchable) Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error) {
	return s.current().Complete(ctx, msgs, opts)
}

// Name forwards to the current client.
func (s *Switchable) Name() string {
	return s.current().Name()
}
