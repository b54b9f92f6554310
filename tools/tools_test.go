package tools

import (
	"context"
	"testing"
	"time"

	"github.com/agent0/coevolve/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReviewer struct{ safe bool }

func (r stubReviewer) Review(code string) core.ReviewResult {
	if r.safe {
		return core.ReviewResult{Safe: true}
	}
	return core.ReviewResult{Safe: false, Issues: []string{"blocked for test"}}
}

func TestMathTool_SolvesLinearEquation(t *testing.T) {
	m := NewMathTool()
	res, err := m.Execute(context.Background(), "2*x + 3 = 11", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusOK, res.Status)
	assert.Equal(t, "4", res.Result)
}

func TestMathTool_EvaluatesArithmetic(t *testing.T) {
	m := NewMathTool()
	res, err := m.Execute(context.Background(), "(2 + 3) * 4", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusOK, res.Status)
	assert.Equal(t, "20", res.Result)
}

func TestMathTool_NeverBlocked(t *testing.T) {
	m := NewMathTool()
	res, err := m.Execute(context.Background(), "not an expression @@@", nil)
	require.NoError(t, err)
	assert.NotEqual(t, core.ToolStatusBlocked, res.Status)
}

func TestPythonTool_BlockedByReviewer(t *testing.T) {
	p := NewPythonTool(stubReviewer{safe: false}, t.TempDir(), time.Second, "python3")
	res, err := p.Execute(context.Background(), "import os", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusBlocked, res.Status)
	assert.Contains(t, res.Stderr, "blocked for test")
}

type stubSecurityLog struct{ events []string }

func (s *stubSecurityLog) AppendEvent(kind, detail string) error {
	s.events = append(s.events, kind)
	return nil
}

func TestPythonTool_BlockedByReviewerRecordsSecurityEvent(t *testing.T) {
	sec := &stubSecurityLog{}
	p := NewPythonTool(stubReviewer{safe: false}, t.TempDir(), time.Second, "python3").WithSecurityLog(sec)
	_, err := p.Execute(context.Background(), "import os", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"code_review_blocked"}, sec.events)
}

func TestShellTool_DisabledByDefault(t *testing.T) {
	s := NewShellTool(false, nil, time.Second, ".")
	res, err := s.Execute(context.Background(), "ls", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusBlocked, res.Status)
}

func TestShellTool_RejectsMetacharacters(t *testing.T) {
	s := NewShellTool(true, []string{"echo"}, time.Second, ".")
	res, err := s.Execute(context.Background(), "echo hi; rm -rf /", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusBlocked, res.Status)
}

func TestShellTool_RejectsNonAllowlistedCommand(t *testing.T) {
	s := NewShellTool(true, []string{"echo"}, time.Second, ".")
	res, err := s.Execute(context.Background(), "cat /etc/passwd", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusBlocked, res.Status)
}

func TestShellTool_RejectionRecordsSecurityEvent(t *testing.T) {
	sec := &stubSecurityLog{}
	s := NewShellTool(true, []string{"echo"}, time.Second, ".").WithSecurityLog(sec)
	_, err := s.Execute(context.Background(), "cat /etc/passwd", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"shell_blocked"}, sec.events)
}

func TestTestTool_DisabledByDefault(t *testing.T) {
	p := NewPythonTool(stubReviewer{safe: true}, t.TempDir(), time.Second, "python3")
	tt := NewTestTool(false, p)
	res, err := tt.Execute(context.Background(), "print(1)", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ToolStatusBlocked, res.Status)
}

func TestComposer_TopologicalOrderAndSubstitution(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMathTool())

	calls := []core.ToolCall{
		{StepID: "A", Tool: "math", Input: "2 + 2"},
		{StepID: "B", Tool: "math", Input: "{{A.result}} * 10", DependsOn: []string{"A"}},
	}

	composer := NewComposer(reg, 1)
	results, ok, err := composer.ExecutePlan(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ToolStatusOK, results[0].Status)
	assert.Equal(t, "4", results[0].Result)
	assert.Equal(t, core.ToolStatusOK, results[1].Status)
	assert.Equal(t, "40", results[1].Result)
	assert.True(t, ok)
}

func TestComposer_BlocksOnMissingDependency(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMathTool())

	calls := []core.ToolCall{
		{StepID: "B", Tool: "math", Input: "{{A.result}} * 10", DependsOn: []string{"A"}},
	}

	composer := NewComposer(reg, 1)
	results, ok, err := composer.ExecutePlan(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ToolStatusBlocked, results[0].Status)
	assert.False(t, ok)
}

func TestComposer_OptionalStepFailureDoesNotFailThePlan(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMathTool())

	calls := []core.ToolCall{
		{StepID: "A", Tool: "math", Input: "2 + 2"},
		{StepID: "B", Tool: "nonexistent", Input: "1", Optional: true},
	}

	composer := NewComposer(reg, 1)
	results, ok, err := composer.ExecutePlan(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ToolStatusOK, results[0].Status)
	assert.Equal(t, core.ToolStatusError, results[1].Status)
	assert.True(t, ok, "an optional step's failure must not fail the overall plan")
}

func TestComposer_RequiredStepFailureFailsThePlan(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMathTool())

	calls := []core.ToolCall{
		{StepID: "A", Tool: "nonexistent", Input: "1"},
	}

	composer := NewComposer(reg, 1)
	_, ok, err := composer.ExecutePlan(context.Background(), calls)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestComposer_DetectsCycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMathTool())

	calls := []core.ToolCall{
		{StepID: "A", Tool: "math", Input: "1", DependsOn: []string{"B"}},
		{StepID: "B", Tool: "math", Input: "2", DependsOn: []string{"A"}},
	}

	composer := NewComposer(reg, 1)
	_, ok, err := composer.ExecutePlan(context.Background(), calls)
	require.Error(t, err)
	assert.False(t, ok)

	var fault *core.Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, core.FaultPlanCyclic, fault.Kind)
}

func TestComposer_DoesNotReorderIndependentSteps(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMathTool())

	calls := []core.ToolCall{
		{StepID: "A", Tool: "math", Input: "1 + 1"},
		{StepID: "B", Tool: "math", Input: "2 + 2"},
		{StepID: "C", Tool: "math", Input: "3 + 3"},
	}

	composer := NewComposer(reg, 1)
	results, ok, err := composer.ExecutePlan(context.Background(), calls)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{results[0].StepID, results[1].StepID, results[2].StepID})
	assert.True(t, ok)
}
