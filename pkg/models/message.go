package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartTag classifies a message part.
type PartTag string

const (
	PartText       PartTag = "text"
	PartReasoning  PartTag = "reasoning"
	PartToolCall   PartTag = "tool-call"
	PartToolResult PartTag = "tool-result"
	PartFile       PartTag = "file"
	PartSystem     PartTag = "system"
)

// Part is one segment of an enhanced message. Content always holds the
// renderable text; tag-specific fields are populated per tag.
type Part struct {
	ID      string  `json:"id"`
	Tag     PartTag `json:"tag"`
	Content string  `json:"content,omitempty"`
	Ignored bool    `json:"ignored,omitempty"`

	// tool-call
	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`

	// tool-result
	CallID     string `json:"call_id,omitempty"`
	OK         bool   `json:"ok,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// NewPart creates a part with a stable unique ID.
func NewPart(tag PartTag, content string) Part {
	return Part{
		ID:      "part_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Tag:     tag,
		Content: content,
	}
}

// Message is the canonical conversation record. New messages carry Parts;
// messages loaded from legacy history carry only Content.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content,omitempty"`
	Parts     []Part    `json:"parts,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LegacyMessage is the flat role/content form used on the wire and in
// history files.
type LegacyMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewText builds a single-text-part message.
func NewText(role Role, text string) Message {
	return Message{
		Role:      role,
		Parts:     []Part{NewPart(PartText, text)},
		CreatedAt: time.Now(),
	}
}

// NewUserText builds a user message with one text part.
func NewUserText(text string) Message { return NewText(RoleUser, text) }

// Flatten renders the message to plain text: part contents joined by blank
// lines, skipping ignored parts, system-tagged parts and empty content.
// Messages without parts flatten to their Content.
func (m Message) Flatten() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out []string
	for _, p := range m.Parts {
		if p.Ignored || p.Tag == PartSystem {
			continue
		}
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		out = append(out, p.Content)
	}
	return strings.Join(out, "\n\n")
}

// Legacy projects the message to its flat wire form.
func (m Message) Legacy() LegacyMessage {
	return LegacyMessage{Role: m.Role, Content: m.Flatten()}
}

// HasTag reports whether any part carries the tag.
func (m Message) HasTag(tag PartTag) bool {
	for _, p := range m.Parts {
		if p.Tag == tag {
			return true
		}
	}
	return false
}

// FirstPart returns the first part with the tag.
func (m Message) FirstPart(tag PartTag) (Part, bool) {
	for _, p := range m.Parts {
		if p.Tag == tag {
			return p, true
		}
	}
	return Part{}, false
}

// ToLegacy projects a slice of messages, dropping entries that flatten to
// nothing.
func ToLegacy(msgs []Message) []LegacyMessage {
	out := make([]LegacyMessage, 0, len(msgs))
	for _, m := range msgs {
		lm := m.Legacy()
		if strings.TrimSpace(lm.Content) == "" {
			continue
		}
		out = append(out, lm)
	}
	return out
}
