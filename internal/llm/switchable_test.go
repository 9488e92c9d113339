package llm

import (
	"context"
	"testing"
)

func TestSwitchable_Swap(t *testing.T) {
	first := NewScripted(ScriptedResponse{Text: "from-first"})
	second := NewScripted(ScriptedResponse{Text: "from-second"})

	s := NewSwitchable(first)
	got, err := s.Complete(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "from-first" {
		t.Errorf("Complete = %q, want from-first", got)
	}

	s.Swap(second)
	got, err = s.Complete(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Complete after Swap: %v", err)
	}
	if got != "from-second" {
		t.Errorf("Complete = %q, want from-second", got)
	}
	if s.Name() != "scripted" {
		t.Errorf("Name = %q", s.Name())
	}
	if first.CallCount() != 1 || second.CallCount() != 1 {
		t.Errorf("call counts = %d/%d, want 1/1", first.CallCount(), second.CallCount())
	}
}
