package tools

import (
	"context"

	"github.com/agent0/coevolve/core"
)

// TestTool executes a candidate against a predicate body. Disabled by
// default. It reuses PythonTool's review-gated execution: the predicate
// body, after substitution, is just another piece of Python source.
type TestTool struct {
	enabled bool
	python  *PythonTool
}

func NewTestTool(enabled bool, python *PythonTool) *TestTool {
	return &TestTool{enabled: enabled, python: python}
}

func (t *TestTool) Name() string { return "test" }

func (t *TestTool) Execute(ctx context.Context, input string, config map[string]any) (core.ToolResult, error) {
	if !t.enabled {
		return core.ToolResult{Status: core.ToolStatusBlocked, Stderr: "test tool disabled"}, nil
	}
	return t.python.Execute(ctx, input, config)
}

var _ core.Tool = (*TestTool)(nil)
