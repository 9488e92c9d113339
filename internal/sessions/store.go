package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// Options configures a Store.
type Options struct {
	// Root is the session directory. Defaults to ${HOME}/.ggcode/sessions.
	Root string

	// MaxSessions caps stored sessions; Create evicts the least recently
	// active unprotected session past the cap. Defaults to 50.
	MaxSessions int

	// MaxInactiveDays ages sessions out of cleanup passes. Defaults to 30;
	// negative disables age-based cleanup.
	MaxInactiveDays int

	// PreserveRecent protects the N most recently active sessions from
	// eviction and cleanup. Defaults to 5.
	PreserveRecent int

	// AutoCleanup enables the background cleanup loop.
	AutoCleanup bool

	// CleanupEvery is the background cleanup period. Defaults to 24h.
	CleanupEvery time.Duration

	Logger *slog.Logger
}

// Store is a directory-backed session store. All mutations go through a
// single mutex; files are written atomically via temp file + rename.
type Store struct {
	root   string
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	nowFunc func() time.Time // for testing

	cleanupMu sync.Mutex
	stop      chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// NewStore creates the session directory if needed and returns a store over
// it, filling zero options with the defaults.
func NewStore(opts Options) (*Store, error) {
	if opts.Root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		opts.Root = filepath.Join(home, ".ggcode", "sessions")
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 50
	}
	if opts.MaxInactiveDays == 0 {
		opts.MaxInactiveDays = 30
	}
	if opts.PreserveRecent <= 0 {
		opts.PreserveRecent = 5
	}
	if opts.CleanupEvery <= 0 {
		opts.CleanupEvery = 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "sessions")
	}
	if err := os.MkdirAll(opts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Store{
		root:    opts.Root,
		opts:    opts,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// Root returns the session directory.
func (s *Store) Root() string { return s.root }

// HistoryPath returns the absolute path of a session's history file. The
// front-end points the conversation manager here when switching sessions.
func (s *Store) HistoryPath(id string) string { return s.historyPath(id) }

// ContextPath returns the absolute path of a session's enhanced context dump.
func (s *Store) ContextPath(id string) string { return s.contextPath(id) }

func (s *Store) now() time.Time { return s.nowFunc() }

func (s *Store) sessionPath(id string) string { return filepath.Join(s.root, id+".json") }
func (s *Store) historyPath(id string) string { return filepath.Join(s.root, id+"-history.json") }
func (s *Store) contextPath(id string) string { return filepath.Join(s.root, id+"-context.json") }
func (s *Store) currentPath() string          { return filepath.Join(s.root, ".current") }

// Create mints a session, makes room under the MaxSessions cap and switches
// the current pointer to it.
func (s *Store) Create(title, agentType, parentID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.evictLocked(); err != nil {
		return nil, err
	}

	now := s.now()
	id := newID()
	if strings.TrimSpace(title) == "" {
		title = "Session " + now.Format("2006-01-02 15:04")
	}
	sess := &Session{
		ID:           id,
		Title:        title,
		AgentType:    agentType,
		ParentID:     parentID,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
		HistoryFile:  id + "-history.json",
		ContextFile:  id + "-context.json",
	}
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	if err := s.setCurrentLocked(id); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session record.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readSession(id)
}

// List returns all sessions sorted by last activity, newest first. Records
// that fail to decode are skipped with a warning.
func (s *Store) List() ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

// Switch makes the session current and refreshes its activity stamp.
func (s *Store) Switch(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess.LastActiveAt = now
	sess.UpdatedAt = now
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	if err := s.setCurrentLocked(id); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes a session and its files. Deleting the current session moves
// the pointer to the most recently active survivor, or removes it when none
// remain.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readSession(id); err != nil {
		return err
	}
	if err := s.removeFilesLocked(id); err != nil {
		return err
	}

	current, _ := s.currentIDLocked()
	if current != id {
		return nil
	}
	remaining, err := s.listLocked()
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return s.clearCurrentLocked()
	}
	return s.setCurrentLocked(remaining[0].ID)
}

// Rename sets the session title.
func (s *Store) Rename(id, title string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return nil, err
	}
	sess.Title = title
	sess.UpdatedAt = s.now()
	if err := s.writeSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// UpdateSummary applies one summary increment: counters add, the file set
// union-merges, a non-empty content replaces, and the generation stamp is
// refreshed.
func (s *Store) UpdateSummary(id string, changes SummaryChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return err
	}
	if sess.Summary == nil {
		sess.Summary = &Summary{}
	}
	sess.Summary.Additions += changes.Additions
	sess.Summary.Deletions += changes.Deletions
	sess.Summary.ModifiedFiles = mergeFiles(sess.Summary.ModifiedFiles, changes.ModifiedFiles)
	if strings.TrimSpace(changes.Content) != "" {
		sess.Summary.Content = changes.Content
	}
	sess.Summary.GeneratedAt = s.now()
	sess.UpdatedAt = sess.Summary.GeneratedAt
	return s.writeSession(sess)
}

// RecordMessages appends to the session history and bumps the message
// counters and activity stamp.
func (s *Store) RecordMessages(id string, msgs ...models.LegacyMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return err
	}
	history, err := s.readHistory(id)
	if err != nil {
		return err
	}
	history = append(history, msgs...)
	if err := s.writeHistory(id, history); err != nil {
		return err
	}

	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			sess.Stats.UserMessages++
		case models.RoleAssistant:
			sess.Stats.AssistantMessages++
		}
	}
	sess.MessageCount = len(history)
	now := s.now()
	sess.LastActiveAt = now
	sess.UpdatedAt = now
	return s.writeSession(sess)
}

// RecordToolCalls bumps the session's tool call counter.
func (s *Store) RecordToolCalls(id string, n int) error {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.readSession(id)
	if err != nil {
		return err
	}
	sess.Stats.ToolCalls += n
	sess.UpdatedAt = s.now()
	return s.writeSession(sess)
}

// History returns the session's message history. A session with no recorded
// messages yields an empty slice.
func (s *Store) History(id string) ([]models.LegacyMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readSession(id); err != nil {
		return nil, err
	}
	return s.readHistory(id)
}

// Current resolves the pointer file. A missing pointer returns (nil, nil); a
// stale pointer is repaired to the most recently active session or removed.
func (s *Store) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.currentIDLocked()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	sess, err := s.readSession(id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	remaining, err := s.listLocked()
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		if err := s.clearCurrentLocked(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err := s.setCurrentLocked(remaining[0].ID); err != nil {
		return nil, err
	}
	return remaining[0], nil
}

// SetCurrent points the store at an existing session.
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readSession(id); err != nil {
		return err
	}
	return s.setCurrentLocked(id)
}

func (s *Store) listLocked() ([]*Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read session directory: %w", err)
	}
	var out []*Session
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasSuffix(name, "-history.json") || strings.HasSuffix(name, "-context.json") {
			continue
		}
		sess, err := s.readSession(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable session record", "file", name, "error", err)
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out, nil
}

func (s *Store) readSession(id string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read session %q: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", id, err)
	}
	return &sess, nil
}

func (s *Store) writeSession(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %q: %w", sess.ID, err)
	}
	return writeJSONAtomic(s.sessionPath(sess.ID), data)
}

func (s *Store) readHistory(id string) ([]models.LegacyMessage, error) {
	data, err := os.ReadFile(s.historyPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.LegacyMessage{}, nil
		}
		return nil, fmt.Errorf("read history %q: %w", id, err)
	}
	var history []models.LegacyMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode history %q: %w", id, err)
	}
	return history, nil
}

func (s *Store) writeHistory(id string, history []models.LegacyMessage) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history %q: %w", id, err)
	}
	return writeJSONAtomic(s.historyPath(id), data)
}

func (s *Store) removeFilesLocked(id string) error {
	if err := os.Remove(s.sessionPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session %q: %w", id, err)
	}
	for _, path := range []string{s.historyPath(id), s.contextPath(id)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("session file not removed", "path", path, "error", err)
		}
	}
	return nil
}

func (s *Store) currentIDLocked() (string, error) {
	data, err := os.ReadFile(s.currentPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read current pointer: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) setCurrentLocked(id string) error {
	return writeJSONAtomic(s.currentPath(), []byte(id+"\n"))
}

func (s *Store) clearCurrentLocked() error {
	if err := os.Remove(s.currentPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove current pointer: %w", err)
	}
	return nil
}

// writeJSONAtomic writes via a temp file in the same directory and renames
// into place.
func writeJSONAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
