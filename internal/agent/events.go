package agent

import (
	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// EventKind labels a turn progress notification.
type EventKind string

const (
	// EventThinking fires when a model request is about to dispatch.
	EventThinking EventKind = "thinking"

	// EventChunk carries one streamed text fragment in Message.
	EventChunk EventKind = "chunk"

	// EventToolStart fires before a tool call runs; Call is set.
	EventToolStart EventKind = "tool-start"

	// EventToolEnd fires after a tool call finishes; Call and Result are set.
	EventToolEnd EventKind = "tool-end"

	// EventCompleted fires once per turn with the final reply in Message.
	EventCompleted EventKind = "completed"

	// EventError fires when the turn fails or is interrupted; Err is set.
	EventError EventKind = "error"

	// EventCorrection fires when a malformed response was cut short and a
	// format reminder injected; Message holds the detector's reason.
	EventCorrection EventKind = "correction"
)

// Event is one status notification delivered to the front-end during a turn.
// Only the fields relevant to the Kind are populated.
type Event struct {
	Kind    EventKind
	Message string
	Hint    string
	Call    *models.ToolCall
	Result  *models.ToolResult
	Err     error
}

// StatusFunc receives turn progress events. It is called inline from the
// turn's goroutine and must return promptly.
type StatusFunc func(Event)

// ApprovalFunc decides whether a tool call may run. It blocks the turn, so
// interactive front-ends prompt the user here.
type ApprovalFunc func(call models.ToolCall, def tools.Definition) bool
