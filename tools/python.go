package tools

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/agent0/coevolve/core"
)

// PythonTool executes a short Python program in a temporary file, gated by
// a code reviewer. There is no runtime sandbox: the reviewer is the sole
// defense before the interpreter subprocess runs.
type PythonTool struct {
	reviewer    core.CodeReviewer
	workdir     string
	timeout     time.Duration
	interp      string
	securityLog core.SecurityLog
}

// NewPythonTool builds the python tool. interp is the interpreter binary
// name ("python3" by default).
func NewPythonTool(reviewer core.CodeReviewer, workdir string, timeout time.Duration, interp string) *PythonTool {
	if interp == "" {
		interp = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PythonTool{reviewer: reviewer, workdir: workdir, timeout: timeout, interp: interp}
}

// WithSecurityLog attaches the append-only log that records review
// denials. Optional; a nil log is a silent no-op.
func (t *PythonTool) WithSecurityLog(log core.SecurityLog) *PythonTool {
	t.securityLog = log
	return t
}

func (t *PythonTool) Name() string { return "python" }

func (t *PythonTool) Execute(ctx context.Context, input string, config map[string]any) (core.ToolResult, error) {
	review := t.reviewer.Review(input)
	if !review.Safe {
		detail := "blocked by code review: " + joinIssues(review.Issues)
		if t.securityLog != nil {
			_ = t.securityLog.AppendEvent("code_review_blocked", detail)
		}
		return core.ToolResult{
			Status: core.ToolStatusBlocked,
			Stderr: detail,
		}, nil
	}

	if err := os.MkdirAll(t.workdir, 0o755); err != nil {
		return core.ToolResult{Status: core.ToolStatusError, Stderr: err.Error()}, nil
	}

	f, err := os.CreateTemp(t.workdir, "coevolve-*.py")
	if err != nil {
		return core.ToolResult{Status: core.ToolStatusError, Stderr: err.Error()}, nil
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(input); err != nil {
		f.Close()
		return core.ToolResult{Status: core.ToolStatusError, Stderr: err.Error()}, nil
	}
	f.Close()

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, t.interp, filepath.Clean(f.Name()))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return core.ToolResult{
			Status:    core.ToolStatusTimeout,
			Stderr:    "python timed out",
			ElapsedMs: elapsed,
		}, nil
	}
	if runErr != nil {
		return core.ToolResult{
			Status:    core.ToolStatusError,
			Stdout:    stdout.String(),
			Stderr:    stderr.String(),
			ElapsedMs: elapsed,
		}, nil
	}

	return core.ToolResult{
		Status:    core.ToolStatusOK,
		Result:    lastNonEmptyLine(stdout.String()),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ElapsedMs: elapsed,
	}, nil
}

func joinIssues(issues []string) string {
	out := ""
	for i, s := range issues {
		if i > 0 {
			out += "; "
		}
		out += s
	}
	return out
}

func lastNonEmptyLine(s string) string {
	lines := splitLines(s)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] != "" {
			return lines[i]
		}
	}
	return ""
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			line = trimCR(line)
			lines = append(lines, line)
			start = i + 1
		}
	}
	lines = append(lines, trimCR(s[start:]))
	return lines
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

var _ core.Tool = (*PythonTool)(nil)
