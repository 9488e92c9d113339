package models

import "time"

// ToolCall is a parsed request to execute a registered tool. Tool names are
// always stored lowercase.
type ToolCall struct {
	ID         string         `json:"id"`
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// ToolMetadata carries execution bookkeeping alongside a result.
type ToolMetadata struct {
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	DurationMs     int64          `json:"duration_ms"`
	Truncated      bool           `json:"truncated,omitempty"`
	TruncationFile string         `json:"truncation_file,omitempty"`
	ExitCode       *int           `json:"exit_code,omitempty"`
	Signal         string         `json:"signal,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// ToolResult is the outcome of one tool execution. Failures are values, not
// Go errors: the agent loop feeds them back to the model either way.
type ToolResult struct {
	Success  bool         `json:"success"`
	Output   string       `json:"output,omitempty"`
	Error    string       `json:"error,omitempty"`
	Metadata ToolMetadata `json:"metadata"`
}

// SetExtra records an auxiliary metadata value, allocating the map lazily.
func (m *ToolMetadata) SetExtra(key string, value any) {
	if m.Extra == nil {
		m.Extra = make(map[string]any)
	}
	m.Extra[key] = value
}
