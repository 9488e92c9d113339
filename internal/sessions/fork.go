package sessions

import (
	"encoding/json"
	"fmt"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// ExportBlob is the portable form of a session: record plus full history.
type ExportBlob struct {
	Session  *Session               `json:"session"`
	Messages []models.LegacyMessage `json:"messages"`
}

// Fork clones a session under a new id with the original as parent, copying
// history up to and including messageIndex. A negative index copies the full
// history. Titles count up per parent: "<title> (fork #N)".
func (s *Store) Fork(id string, messageIndex int) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.readSession(id)
	if err != nil {
		return nil, err
	}
	history, err := s.readHistory(id)
	if err != nil {
		return nil, err
	}
	full := messageIndex < 0 || messageIndex+1 >= len(history)
	if !full {
		history = history[:messageIndex+1]
	}

	existing, err := s.listLocked()
	if err != nil {
		return nil, err
	}
	forkNum := 1
	for _, sess := range existing {
		if sess.ParentID == id {
			forkNum++
		}
	}

	now := s.now()
	forkID := newID()
	dst := &Session{
		ID:           forkID,
		Title:        fmt.Sprintf("%s (fork #%d)", src.Title, forkNum),
		AgentType:    src.AgentType,
		ParentID:     src.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
		HistoryFile:  forkID + "-history.json",
		ContextFile:  forkID + "-context.json",
		MessageCount: len(history),
		Stats:        recountStats(history),
	}
	// Tool call counts are not recoverable from a history prefix.
	if full {
		dst.Stats.ToolCalls = src.Stats.ToolCalls
	}

	if err := s.writeHistory(forkID, history); err != nil {
		return nil, err
	}
	if err := s.writeSession(dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// Export serializes a session and its history into one JSON blob.
func (s *Store) Export(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return nil, err
	}
	history, err := s.readHistory(id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(ExportBlob{Session: sess, Messages: history}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export %q: %w", id, err)
	}
	return data, nil
}

// Import installs an exported blob under a freshly minted id, preserving the
// original timestamps, stats and summary. The import does not become current.
func (s *Store) Import(blob []byte) (*Session, error) {
	var in ExportBlob
	if err := json.Unmarshal(blob, &in); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	if in.Session == nil {
		return nil, fmt.Errorf("decode import: missing session record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.evictLocked(); err != nil {
		return nil, err
	}

	sess := *in.Session
	id := newID()
	sess.ID = id
	sess.HistoryFile = id + "-history.json"
	sess.ContextFile = id + "-context.json"
	sess.MessageCount = len(in.Messages)

	if err := s.writeHistory(id, in.Messages); err != nil {
		return nil, err
	}
	if err := s.writeSession(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
