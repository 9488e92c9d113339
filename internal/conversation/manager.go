// Package conversation maintains the ordered message buffer for a session:
// appends, token-budgeted views for the transport, history persistence and
// compaction.
package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ggcode-ai/ggcode/internal/tokens"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// Estimator converts text into a token count.
type Estimator func(string) int

// ManagerConfig configures a Manager. Zero values select the defaults.
type ManagerConfig struct {
	// MaxTokens is the default context-view budget; 32000 when unset.
	MaxTokens int

	// Estimate defaults to tokens.Estimate.
	Estimate Estimator
}

// Manager owns a session's message buffer. All methods are safe for
// concurrent use; compaction is the one exception and must be serialized
// with appends by the caller (the orchestrator owns both).
type Manager struct {
	mu        sync.RWMutex
	msgs      []models.Message
	estimate  Estimator
	maxTokens int
}

// NewManager creates an empty buffer.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 32000
	}
	if cfg.Estimate == nil {
		cfg.Estimate = tokens.Estimate
	}
	return &Manager{
		estimate:  cfg.Estimate,
		maxTokens: cfg.MaxTokens,
	}
}

// Append adds a message, stamping CreatedAt when unset.
func (m *Manager) Append(msg models.Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
}

// AppendParts adds a message assembled from the given parts.
func (m *Manager) AppendParts(role models.Role, parts ...models.Part) {
	m.Append(models.Message{Role: role, Parts: parts, CreatedAt: time.Now()})
}

// SetSystemPrompt replaces every system message with a single one at the
// front of the buffer.
func (m *Manager) SetSystemPrompt(text string) {
	sys := models.NewText(models.RoleSystem, text)

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]models.Message, 0, len(m.msgs)+1)
	kept = append(kept, sys)
	for _, msg := range m.msgs {
		if msg.Role == models.RoleSystem {
			continue
		}
		kept = append(kept, msg)
	}
	m.msgs = kept
}

// ClearContext discards every message, system prompt included.
func (m *Manager) ClearContext() {
	m.mu.Lock()
	m.msgs = nil
	m.mu.Unlock()
}

// Messages returns a copy of the buffer.
func (m *Manager) Messages() []models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Message, len(m.msgs))
	copy(out, m.msgs)
	return out
}

// Len returns the number of buffered messages.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.msgs)
}

// MaxTokens returns the configured view budget.
func (m *Manager) MaxTokens() int {
	return m.maxTokens
}

// TokenCount estimates the whole buffer, system messages included.
func (m *Manager) TokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, msg := range m.msgs {
		total += m.estimate(msg.Flatten())
	}
	return total
}

// ContextView returns the transport-ready window: every system message,
// then the newest non-system messages whose cumulative cost fits the
// budget, in chronological order. System messages do not count against the
// budget. A budget of 0 selects the manager default.
func (m *Manager) ContextView(budget int) []models.LegacyMessage {
	if budget <= 0 {
		budget = m.maxTokens
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.LegacyMessage
	for _, msg := range m.msgs {
		if msg.Role != models.RoleSystem {
			continue
		}
		lm := msg.Legacy()
		if strings.TrimSpace(lm.Content) == "" {
			continue
		}
		out = append(out, lm)
	}

	var tail []models.LegacyMessage
	used := 0
	for i := len(m.msgs) - 1; i >= 0; i-- {
		msg := m.msgs[i]
		if msg.Role == models.RoleSystem {
			continue
		}
		lm := msg.Legacy()
		if strings.TrimSpace(lm.Content) == "" {
			continue
		}
		cost := m.estimate(lm.Content)
		if used+cost > budget {
			break
		}
		used += cost
		tail = append(tail, lm)
	}
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return append(out, tail...)
}

// MarkIgnored flags parts of the message at index so they no longer flatten
// into views or history. An empty partID flags every part.
func (m *Manager) MarkIgnored(index int, partID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.msgs) {
		return fmt.Errorf("message index %d out of range", index)
	}
	msg := &m.msgs[index]
	if len(msg.Parts) == 0 {
		return fmt.Errorf("message %d has no parts to ignore", index)
	}
	found := false
	for i := range msg.Parts {
		if partID == "" || msg.Parts[i].ID == partID {
			msg.Parts[i].Ignored = true
			found = true
		}
	}
	if !found {
		return fmt.Errorf("part %q not found in message %d", partID, index)
	}
	return nil
}

// SaveHistory writes the buffer in legacy form. Messages that flatten to
// nothing (fully ignored corrections) are omitted.
func (m *Manager) SaveHistory(path string) error {
	m.mu.RLock()
	legacy := models.ToLegacy(m.msgs)
	m.mu.RUnlock()

	data, err := json.MarshalIndent(legacy, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadHistory replaces the buffer with the legacy array at path. When the
// loaded history carries no system message, the in-memory system messages
// are preserved at the front.
func (m *Manager) LoadHistory(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	var legacy []models.LegacyMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("decode history: %w", err)
	}

	now := time.Now()
	loaded := make([]models.Message, 0, len(legacy))
	hasSystem := false
	for _, lm := range legacy {
		if lm.Role == models.RoleSystem {
			hasSystem = true
		}
		loaded = append(loaded, models.Message{Role: lm.Role, Content: lm.Content, CreatedAt: now})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !hasSystem {
		var systems []models.Message
		for _, msg := range m.msgs {
			if msg.Role == models.RoleSystem {
				systems = append(systems, msg)
			}
		}
		loaded = append(systems, loaded...)
	}
	m.msgs = loaded
	return nil
}

// SaveContext writes the full enhanced buffer, parts and flags included.
func (m *Manager) SaveContext(path string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.msgs, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadContext replaces the buffer with an enhanced dump written by
// SaveContext.
func (m *Manager) LoadContext(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read context: %w", err)
	}
	var msgs []models.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return fmt.Errorf("decode context: %w", err)
	}
	m.mu.Lock()
	m.msgs = msgs
	m.mu.Unlock()
	return nil
}

// snapshot and replace are the compactor's access points. replace assumes
// the caller serializes compaction with appends.
func (m *Manager) snapshot() []models.Message {
	return m.Messages()
}

func (m *Manager) replace(msgs []models.Message) {
	m.mu.Lock()
	m.msgs = msgs
	m.mu.Unlock()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ggcode-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
