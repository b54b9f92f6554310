// Package tools implements the built-in tool registry and the DAG-ordered
// plan composer (C1).
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agent0/coevolve/core"
)

// Registry holds the named, executable tools available to the solver.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]core.Tool)}
}

// Register adds a tool under its own Name().
func (r *Registry) Register(t core.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	return names
}

// ToolingConfig mirrors the `tooling` configuration section (spec §6).
type ToolingConfig struct {
	EnablePython bool
	EnableShell  bool
	EnableMath   bool
	EnableTests  bool
	Timeout      time.Duration
	Workdir      string
	AllowedShell []string
}

// NewDefaultRegistry wires the four built-in tools per the tooling
// configuration section. Shell and tests default to disabled. secLog may
// be nil; when set, review denials and blocked shell commands are
// recorded there.
func NewDefaultRegistry(reviewer core.CodeReviewer, cfg ToolingConfig, secLog core.SecurityLog) *Registry {
	r := NewRegistry()

	python := NewPythonTool(reviewer, cfg.Workdir, cfg.Timeout, "python3").WithSecurityLog(secLog)
	if cfg.EnablePython {
		r.Register(python)
	} else {
		r.Register(disabledTool{name: "python"})
	}

	if cfg.EnableMath {
		r.Register(NewMathTool())
	} else {
		r.Register(disabledTool{name: "math"})
	}

	shell := NewShellTool(cfg.EnableShell, cfg.AllowedShell, cfg.Timeout, cfg.Workdir).WithSecurityLog(secLog)
	r.Register(shell)
	r.Register(NewTestTool(cfg.EnableTests, python))

	return r
}

type disabledTool struct{ name string }

func (d disabledTool) Name() string { return d.name }

func (d disabledTool) Execute(ctx context.Context, input string, config map[string]any) (core.ToolResult, error) {
	return core.ToolResult{Status: core.ToolStatusBlocked, Stderr: fmt.Sprintf("%s tool disabled", d.name)}, nil
}

var _ core.Tool = disabledTool{}
