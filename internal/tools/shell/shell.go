// Package shell provides the command execution tool. Commands run under
// /bin/sh with a hard timeout and a capped capture buffer; stdout and
// stderr are interleaved the way a terminal would show them.
package shell

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

const (
	defaultTimeoutSeconds = 120
	maxTimeoutSeconds     = 600
	maxCaptureBytes       = 1024 * 1024
)

// Shell returns the shell execution tool.
func Shell() tools.Definition {
	return tools.Definition{
		Name:        "shell",
		Description: "Run a shell command and return its combined output. The command is killed when the timeout expires.",
		Category:    tools.CategoryCommand,
		Permission:  tools.PermissionDangerous,
		Params: []tools.ParamSpec{
			{Name: "command", Type: "string", Description: "Command line to run via sh -c.", Required: true},
			{Name: "cwd", Type: "string", Description: "Working directory for the command (default: the session working directory)."},
			{Name: "timeoutSeconds", Type: "integer", Description: "Seconds before the command is killed (max 600).", Default: defaultTimeoutSeconds},
		},
		Handler: shellHandler,
	}
}

func shellHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	command := strings.TrimSpace(exec.String("command"))
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	seconds := exec.Int("timeoutSeconds", defaultTimeoutSeconds)
	if seconds <= 0 {
		seconds = defaultTimeoutSeconds
	}
	if seconds > maxTimeoutSeconds {
		seconds = maxTimeoutSeconds
	}
	timeout := time.Duration(seconds) * time.Second

	dir := exec.WorkDir
	if cwd := strings.TrimSpace(exec.String("cwd")); cwd != "" {
		if filepath.IsAbs(cwd) {
			dir = filepath.Clean(cwd)
		} else {
			dir = filepath.Join(exec.WorkDir, cwd)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := osexec.CommandContext(cctx, "/bin/sh", "-c", command)
	cmd.Dir = dir
	buf := newLimitedBuffer(maxCaptureBytes)
	cmd.Stdout = buf
	cmd.Stderr = buf
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	output := buf.String()

	if cctx.Err() != nil {
		exec.Meta("signal", "SIGKILL")
		if ctx.Err() != nil {
			return output, fmt.Errorf("command interrupted")
		}
		return output, fmt.Errorf("command timed out after %ds", seconds)
	}
	code := exitStatus(err)
	exec.Meta("exitCode", code)
	if err != nil {
		return output, fmt.Errorf("command exited with status %d", code)
	}
	return output, nil
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ee *osexec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// limitedBuffer caps captured output; writes past the cap are counted but
// discarded.
type limitedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) >= b.max {
		return len(p), nil
	}
	remaining := b.max - len(b.buf)
	if len(p) > remaining {
		b.buf = append(b.buf, p[:remaining]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
