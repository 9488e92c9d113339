package models

import "time"

// Session is the persisted metadata record for one conversation. History and
// enhanced context live in sibling files named by HistoryFile/ContextFile.
// Forked sessions point at their origin via ParentID, forming a DAG.
type Session struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	AgentType    string         `json:"agent_type"`
	ParentID     string         `json:"parent_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastActiveAt time.Time      `json:"last_active_at"`
	HistoryFile  string         `json:"history_file"`
	ContextFile  string         `json:"context_file,omitempty"`
	MessageCount int            `json:"message_count"`
	Stats        SessionStats   `json:"stats"`
	Summary      *ChangeSummary `json:"summary,omitempty"`
}

// SessionStats accumulates per-session counters.
type SessionStats struct {
	UserMessages      int `json:"user_messages"`
	AssistantMessages int `json:"assistant_messages"`
	ToolCalls         int `json:"tool_calls"`
}

// ChangeSummary describes the file changes a session has made so far.
type ChangeSummary struct {
	Additions     int       `json:"additions"`
	Deletions     int       `json:"deletions"`
	ModifiedFiles []string  `json:"modified_files,omitempty"`
	Text          string    `json:"text,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}
