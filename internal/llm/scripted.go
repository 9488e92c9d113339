package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// ScriptedResponse is one canned turn for a ScriptedClient.
type ScriptedResponse struct {
	// Text is the full response. When Chunks is empty, stream mode emits
	// Text as a single chunk.
	Text string

	// Chunks, when set, are emitted one by one in stream mode; their
	// concatenation should equal Text.
	Chunks []string

	Err error
}

// ScriptedClient replays canned responses in order. It stands in for a live
// transport in orchestrator and command tests.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	calls     [][]models.LegacyMessage
}

// NewScripted creates a client that replays the given responses.
func NewScripted(responses ...ScriptedResponse) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Name returns "scripted".
func (s *ScriptedClient) Name() string {
	return "scripted"
}

// Complete records the call and replays the next scripted response.
func (s *ScriptedClient) Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewAPIError(KindAborted, "scripted", err)
	}

	s.mu.Lock()
	snapshot := make([]models.LegacyMessage, len(msgs))
	copy(snapshot, msgs)
	s.calls = append(s.calls, snapshot)
	if len(s.responses) == 0 {
		s.mu.Unlock()
		return "", errors.New("scripted client: no responses left")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	s.mu.Unlock()

	if resp.Err != nil {
		return "", resp.Err
	}

	if opts.Stream && opts.OnChunk != nil {
		chunks := resp.Chunks
		if len(chunks) == 0 {
			chunks = []string{resp.Text}
		}
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return "", NewAPIError(KindAborted, "scripted", err)
			}
			opts.OnChunk(chunk)
		}
	}
	return resp.Text, nil
}

// Calls returns a copy of every message list the client has seen.
func (s *ScriptedClient) Calls() [][]models.LegacyMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]models.LegacyMessage, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times Complete has been invoked.
func (s *ScriptedClient) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
