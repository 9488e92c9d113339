// Package sessions persists conversation sessions as JSON records under a
// state directory. Each session owns a record file, an append-only legacy
// history file and an optional enhanced context dump; a .current pointer
// file names the active session.
package sessions

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// ErrNotFound is returned when a session id has no record on disk.
var ErrNotFound = errors.New("session not found")

// Session is the on-disk session record.
type Session struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AgentType    string    `json:"agent_type"`
	ParentID     string    `json:"parent_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	HistoryFile  string    `json:"history_file"`
	ContextFile  string    `json:"context_file"`
	MessageCount int       `json:"message_count"`
	Stats        Stats     `json:"stats"`
	Summary      *Summary  `json:"summary,omitempty"`
}

// Stats counts the traffic a session has seen.
type Stats struct {
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
	ToolCalls         int `json:"tool_calls"`
}

// Summary accumulates per-session code-change statistics and the generated
// session summary text.
type Summary struct {
	Content       string    `json:"content,omitempty"`
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
	ModifiedFiles []string  `json:"modified_files,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// SummaryChanges is one increment applied by UpdateSummary. Counters add,
// ModifiedFiles union-merges, a non-empty Content replaces.
type SummaryChanges struct {
	Content       string
	Additions     int
	Deletions     int
	ModifiedFiles []string
}

// newID mints a 128-bit hex session id.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// mergeFiles union-merges two file lists, sorted for stable records.
func mergeFiles(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := make(map[string]bool, len(a)+len(b))
	for _, f := range a {
		set[f] = true
	}
	for _, f := range b {
		if f != "" {
			set[f] = true
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// recountStats rebuilds role counters from a history slice. Tool call counts
// are not derivable from legacy messages and are carried by the caller.
func recountStats(history []models.LegacyMessage) Stats {
	var st Stats
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			st.UserMessages++
		case models.RoleAssistant:
			st.AssistantMessages++
		}
	}
	return st
}
