// Package verifier implements the domain-specific correctness check (C3).
package verifier

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/agent0/coevolve/core"
)

// Verifier dispatches on a task's VerifierSpec variant.
type Verifier struct {
	tools pythonRunner
}

// pythonRunner is the minimal surface the verifier needs from the python
// tool to evaluate python_predicate/python_assert bodies: execute already
// review-gated code and report ok/blocked/error.
type pythonRunner interface {
	Execute(ctx context.Context, input string, config map[string]any) (core.ToolResult, error)
}

// NewVerifier builds a verifier. pythonTool is used to evaluate
// python_predicate/python_assert bodies; it must already apply the code
// review gate internally (tools.PythonTool does).
func NewVerifier(pythonTool pythonRunner) *Verifier {
	return &Verifier{tools: pythonTool}
}

// Verify checks candidate against task.Verifier. It never mutates task or
// candidate.
func (v *Verifier) Verify(ctx context.Context, task core.Task, candidate string) core.Verdict {
	switch spec := task.Verifier.(type) {
	case core.ExactStringVerifier:
		return verifyExactString(spec, candidate)
	case core.NumericVerifier:
		return verifyNumeric(spec, candidate)
	case core.NumericSetVerifier:
		return verifyNumericSet(spec, candidate)
	case core.PythonPredicateVerifier:
		return v.verifyPythonPredicate(ctx, spec, candidate)
	case core.PythonAssertVerifier:
		return v.verifyPythonAssert(ctx, spec, candidate)
	case core.RegexMatchVerifier:
		return verifyRegexMatch(spec, candidate)
	default:
		return core.Verdict{Status: core.VerdictError, Reason: "unknown verifier kind"}
	}
}

func verifyExactString(spec core.ExactStringVerifier, candidate string) core.Verdict {
	if strings.TrimSpace(candidate) == strings.TrimSpace(spec.Expected) {
		return core.Verdict{Status: core.VerdictPass}
	}
	return core.Verdict{Status: core.VerdictFail, Reason: "exact string mismatch"}
}

func withinTolerance(candidate, expected, tolerance float64) bool {
	bound := math.Max(tolerance*math.Abs(expected), tolerance)
	return math.Abs(candidate-expected) <= bound
}

func verifyNumeric(spec core.NumericVerifier, candidate string) core.Verdict {
	value, err := strconv.ParseFloat(strings.TrimSpace(candidate), 64)
	if err != nil {
		return core.Verdict{Status: core.VerdictFail, Reason: "candidate is not numeric"}
	}
	if withinTolerance(value, spec.Expected, spec.Tolerance) {
		return core.Verdict{Status: core.VerdictPass}
	}
	return core.Verdict{Status: core.VerdictFail, Reason: "outside tolerance"}
}

func verifyNumericSet(spec core.NumericSetVerifier, candidate string) core.Verdict {
	parts := strings.Split(candidate, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Verdict{Status: core.VerdictFail, Reason: "candidate is not a numeric set"}
		}
		values = append(values, v)
	}
	if len(values) != len(spec.Expected) {
		return core.Verdict{Status: core.VerdictFail, Reason: "wrong cardinality"}
	}

	remaining := append([]float64(nil), spec.Expected...)
	sort.Float64s(remaining)
	sortedValues := append([]float64(nil), values...)
	sort.Float64s(sortedValues)

	for i, v := range sortedValues {
		if !withinTolerance(v, remaining[i], spec.Tolerance) {
			return core.Verdict{Status: core.VerdictFail, Reason: "multiset mismatch outside tolerance"}
		}
	}
	return core.Verdict{Status: core.VerdictPass}
}

func verifyRegexMatch(spec core.RegexMatchVerifier, candidate string) core.Verdict {
	pattern := spec.Pattern
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^" + pattern
	}
	if !strings.HasSuffix(pattern, "$") {
		pattern = pattern + "$"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return core.Verdict{Status: core.VerdictError, Reason: "invalid regex: " + err.Error()}
	}
	if re.MatchString(strings.TrimSpace(candidate)) {
		return core.Verdict{Status: core.VerdictPass}
	}
	return core.Verdict{Status: core.VerdictFail, Reason: "regex did not match"}
}

func (v *Verifier) verifyPythonPredicate(ctx context.Context, spec core.PythonPredicateVerifier, candidate string) core.Verdict {
	body := strings.ReplaceAll(spec.Body, "{{candidate}}", candidate)
	program := fmt.Sprintf("print(bool(%s))", body)

	res, err := v.tools.Execute(ctx, program, nil)
	if err != nil {
		return core.Verdict{Status: core.VerdictError, Reason: err.Error()}
	}
	switch res.Status {
	case core.ToolStatusBlocked:
		return core.Verdict{Status: core.VerdictError, Reason: "verifier_blocked"}
	case core.ToolStatusOK:
		if strings.TrimSpace(res.Result) == "True" {
			return core.Verdict{Status: core.VerdictPass}
		}
		return core.Verdict{Status: core.VerdictFail, Reason: "predicate evaluated false"}
	default:
		return core.Verdict{Status: core.VerdictError, Reason: res.Stderr}
	}
}

func (v *Verifier) verifyPythonAssert(ctx context.Context, spec core.PythonAssertVerifier, candidate string) core.Verdict {
	body := strings.ReplaceAll(spec.Body, "{{candidate}}", candidate)

	res, err := v.tools.Execute(ctx, body, nil)
	if err != nil {
		return core.Verdict{Status: core.VerdictError, Reason: err.Error()}
	}
	switch res.Status {
	case core.ToolStatusBlocked:
		return core.Verdict{Status: core.VerdictError, Reason: "verifier_blocked"}
	case core.ToolStatusOK:
		return core.Verdict{Status: core.VerdictPass}
	default:
		return core.Verdict{Status: core.VerdictFail, Reason: "assertion raised"}
	}
}

var _ core.Verifier = (*Verifier)(nil)
