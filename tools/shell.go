package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/agent0/coevolve/core"
)

var forbiddenShellSubstrings = []string{";", "&", "|", "`", "$(", ">", "<"}

// ShellTool runs an allowlisted command. Disabled by default; when enabled
// the command head must appear in the configured allowlist and the full
// command must not contain shell metacharacters.
type ShellTool struct {
	enabled     bool
	allowed     map[string]struct{}
	timeout     time.Duration
	workdir     string
	securityLog core.SecurityLog
}

func NewShellTool(enabled bool, allowed []string, timeout time.Duration, workdir string) *ShellTool {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShellTool{enabled: enabled, allowed: set, timeout: timeout, workdir: workdir}
}

// WithSecurityLog attaches the append-only log that records blocked
// commands. Optional; a nil log is a silent no-op.
func (t *ShellTool) WithSecurityLog(log core.SecurityLog) *ShellTool {
	t.securityLog = log
	return t
}

func (t *ShellTool) blocked(detail string) core.ToolResult {
	if t.securityLog != nil {
		_ = t.securityLog.AppendEvent("shell_blocked", detail)
	}
	return core.ToolResult{Status: core.ToolStatusBlocked, Stderr: detail}
}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Execute(ctx context.Context, input string, config map[string]any) (core.ToolResult, error) {
	if !t.enabled {
		return t.blocked("shell tool disabled"), nil
	}

	for _, bad := range forbiddenShellSubstrings {
		if strings.Contains(input, bad) {
			return t.blocked(fmt.Sprintf("forbidden shell metacharacter: %s", bad)), nil
		}
	}

	fields := strings.Fields(input)
	if len(fields) == 0 {
		return core.ToolResult{Status: core.ToolStatusError, Stderr: "empty command"}, nil
	}
	if _, ok := t.allowed[fields[0]]; !ok {
		return t.blocked(fmt.Sprintf("command %q not in allowlist", fields[0])), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, fields[0], fields[1:]...)
	cmd.Dir = t.workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return core.ToolResult{Status: core.ToolStatusTimeout, Stderr: "shell command timed out", ElapsedMs: elapsed}, nil
	}
	if err != nil {
		return core.ToolResult{Status: core.ToolStatusError, Stdout: stdout.String(), Stderr: stderr.String(), ElapsedMs: elapsed}, nil
	}
	return core.ToolResult{
		Status:    core.ToolStatusOK,
		Result:    lastNonEmptyLine(stdout.String()),
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ElapsedMs: elapsed,
	}, nil
}

var _ core.Tool = (*ShellTool)(nil)
