package shell

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func run(t *testing.T, args map[string]any) (string, error) {
	t.Helper()
	return shellHandler(context.Background(), &tools.Execution{Args: args, WorkDir: t.TempDir()})
}

func TestShell_CapturesCombinedOutput(t *testing.T) {
	requireSh(t)
	out, err := run(t, map[string]any{"command": "echo out; echo err 1>&2"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "out") || !strings.Contains(out, "err") {
		t.Errorf("output = %q, want stdout and stderr", out)
	}
}

func TestShell_NonZeroExit(t *testing.T) {
	requireSh(t)
	out, err := run(t, map[string]any{"command": "echo partial; exit 3"})
	if err == nil {
		t.Fatal("err = nil, want exit status error")
	}
	if !strings.Contains(err.Error(), "status 3") {
		t.Errorf("err = %v, want status 3", err)
	}
	if !strings.Contains(out, "partial") {
		t.Errorf("output = %q, want partial output preserved", out)
	}
}

func TestShell_Timeout(t *testing.T) {
	requireSh(t)
	start := time.Now()
	out, err := run(t, map[string]any{"command": "echo before; sleep 30", "timeoutSeconds": 1})
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("err = %v, want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("took %v, command not killed promptly", elapsed)
	}
	if !strings.Contains(out, "before") {
		t.Errorf("output = %q, want pre-timeout output", out)
	}
}

func TestShell_Interrupt(t *testing.T) {
	requireSh(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()
	_, err := shellHandler(ctx, &tools.Execution{
		Args:    map[string]any{"command": "sleep 30"},
		WorkDir: t.TempDir(),
	})
	if err == nil || !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("err = %v, want interrupted", err)
	}
}

func TestShell_WorkingDirectory(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	sub := dir + "/inner"
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, err := shellHandler(context.Background(), &tools.Execution{
		Args:    map[string]any{"command": "pwd", "cwd": "inner"},
		WorkDir: dir,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "inner") {
		t.Errorf("pwd = %q, want inner dir", out)
	}
}

func TestLimitedBuffer_Cap(t *testing.T) {
	b := newLimitedBuffer(10)
	n, err := b.Write([]byte("0123456789abcdef"))
	if err != nil || n != 16 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := b.String(); got != "0123456789" {
		t.Errorf("String = %q, want capped at 10 bytes", got)
	}
	// further writes are swallowed
	b.Write([]byte("more"))
	if got := b.String(); got != "0123456789" {
		t.Errorf("String after overflow = %q", got)
	}
}
