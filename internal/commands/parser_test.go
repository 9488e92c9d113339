package commands

import (
	"reflect"
	"testing"
)

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"  /help  ", true},
		{"/session switch 3", true},
		{"/q", true},
		{"help", false},
		{"", false},
		{"   ", false},
		{"/", false},
		{"/2fast", false},
		{"// not a command", false},
		{"tell me about /help", false},
	}
	for _, tt := range tests {
		if got := IsCommand(tt.input); got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input      string
		wantName   string
		wantArgs   string
		wantFields []string
	}{
		{"/help", "help", "", nil},
		{"/HELP", "help", "", nil},
		{"/help session", "help", "session", []string{"session"}},
		{"  /session switch 3  ", "session", "switch 3", []string{"switch", "3"}},
		{"/session rename My New Title", "session", "rename My New Title", []string{"rename", "My", "New", "Title"}},
		{"/setting set top_k 40", "setting", "set top_k 40", []string{"set", "top_k", "40"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			inv := Parse(tt.input)
			if inv == nil {
				t.Fatalf("Parse(%q) = nil", tt.input)
			}
			if inv.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", inv.Name, tt.wantName)
			}
			if inv.Args != tt.wantArgs {
				t.Errorf("Args = %q, want %q", inv.Args, tt.wantArgs)
			}
			if len(inv.Fields) != 0 || len(tt.wantFields) != 0 {
				if !reflect.DeepEqual(inv.Fields, tt.wantFields) {
					t.Errorf("Fields = %v, want %v", inv.Fields, tt.wantFields)
				}
			}
		})
	}
}

func TestParse_NotACommand(t *testing.T) {
	for _, input := range []string{"", "hello", "/", "/1abc", "no /slash here"} {
		if inv := Parse(input); inv != nil {
			t.Errorf("Parse(%q) = %+v, want nil", input, inv)
		}
	}
}

func TestInvocation_Subcommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/session", ""},
		{"/session list", "list"},
		{"/session SWITCH 3", "switch"},
	}
	for _, tt := range tests {
		inv := Parse(tt.input)
		if inv == nil {
			t.Fatalf("Parse(%q) = nil", tt.input)
		}
		if got := inv.Subcommand(); got != tt.want {
			t.Errorf("Subcommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestInvocation_Rest(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/session rename My New Title", "My New Title"},
		{"/session rename", ""},
		{"/session export  out.json ", "out.json"},
	}
	for _, tt := range tests {
		inv := Parse(tt.input)
		if inv == nil {
			t.Fatalf("Parse(%q) = nil", tt.input)
		}
		if got := inv.Rest(); got != tt.want {
			t.Errorf("Rest(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
