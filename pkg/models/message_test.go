package models

import (
	"strings"
	"testing"
)

func TestMessage_Flatten(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "no parts falls back to content",
			msg:  Message{Role: RoleUser, Content: "plain"},
			want: "plain",
		},
		{
			name: "joins parts with blank line",
			msg: Message{Role: RoleAssistant, Parts: []Part{
				NewPart(PartText, "first"),
				NewPart(PartText, "second"),
			}},
			want: "first\n\nsecond",
		},
		{
			name: "skips ignored parts",
			msg: Message{Role: RoleAssistant, Parts: []Part{
				NewPart(PartText, "kept"),
				{ID: "p", Tag: PartText, Content: "dropped", Ignored: true},
			}},
			want: "kept",
		},
		{
			name: "skips system-tagged parts",
			msg: Message{Role: RoleAssistant, Parts: []Part{
				NewPart(PartSystem, "internal marker"),
				NewPart(PartText, "visible"),
			}},
			want: "visible",
		},
		{
			name: "skips whitespace-only parts",
			msg: Message{Role: RoleAssistant, Parts: []Part{
				NewPart(PartText, "  \n\t"),
				NewPart(PartText, "real"),
			}},
			want: "real",
		},
		{
			name: "tool parts flatten through their content",
			msg: Message{Role: RoleAssistant, Parts: []Part{
				NewPart(PartReasoning, "thinking"),
				NewPart(PartToolCall, `{"tool":"read"}`),
			}},
			want: "thinking\n\n{\"tool\":\"read\"}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Flatten(); got != tt.want {
				t.Errorf("Flatten() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessage_Legacy(t *testing.T) {
	msg := Message{Role: RoleAssistant, Parts: []Part{
		NewPart(PartText, "answer"),
	}}
	lm := msg.Legacy()
	if lm.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", lm.Role, RoleAssistant)
	}
	if lm.Content != "answer" {
		t.Errorf("Content = %q, want %q", lm.Content, "answer")
	}
}

func TestMessage_HasTagAndFirstPart(t *testing.T) {
	msg := Message{Role: RoleAssistant, Parts: []Part{
		NewPart(PartText, "a"),
		NewPart(PartToolCall, "b"),
		NewPart(PartToolCall, "c"),
	}}

	if !msg.HasTag(PartToolCall) {
		t.Error("HasTag(tool-call) = false, want true")
	}
	if msg.HasTag(PartFile) {
		t.Error("HasTag(file) = true, want false")
	}

	p, ok := msg.FirstPart(PartToolCall)
	if !ok {
		t.Fatal("FirstPart(tool-call) not found")
	}
	if p.Content != "b" {
		t.Errorf("FirstPart content = %q, want %q", p.Content, "b")
	}
}

func TestNewPart_IDs(t *testing.T) {
	a := NewPart(PartText, "x")
	b := NewPart(PartText, "x")
	if !strings.HasPrefix(a.ID, "part_") {
		t.Errorf("ID = %q, want part_ prefix", a.ID)
	}
	if a.ID == b.ID {
		t.Errorf("consecutive part IDs collide: %q", a.ID)
	}
}

func TestToLegacy_DropsEmpty(t *testing.T) {
	msgs := []Message{
		NewUserText("hello"),
		{Role: RoleAssistant, Parts: []Part{{ID: "p", Tag: PartText, Content: "gone", Ignored: true}}},
		NewText(RoleAssistant, "world"),
	}
	got := ToLegacy(msgs)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "world" {
		t.Errorf("contents = %q, %q", got[0].Content, got[1].Content)
	}
}
