package tools

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/agent0/coevolve/core"
	"github.com/agent0/coevolve/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
)

// Composer executes DAG-ordered ToolCall templates against a Registry,
// substituting `{{step_j.result}}`/`{{step_j.stdout}}` before each step
// runs. Substitution is purely textual; independent steps are never
// silently reordered relative to their declared order.
type Composer struct {
	registry   *Registry
	maxRetries int
	tracer     *tracing.Tracer
}

func NewComposer(registry *Registry, maxRetries int) *Composer {
	if maxRetries < 0 {
		maxRetries = 1
	}
	return &Composer{registry: registry, maxRetries: maxRetries}
}

// WithTracer attaches a tracer so each tool step in a plan gets its own
// child span. Nil disables tracing.
func (c *Composer) WithTracer(t *tracing.Tracer) *Composer {
	c.tracer = t
	return c
}

var substitutionPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+)\.(result|stdout)\s*\}\}`)

// ExecutePlan runs calls in topological order, honoring depends_on. The
// second return value is the plan's overall status: ok iff every required
// (non-optional) step finished with ToolStatusOK. A step tagged Optional
// may end up blocked or errored without failing the plan.
func (c *Composer) ExecutePlan(ctx context.Context, calls []core.ToolCall) ([]core.ToolCall, bool, error) {
	order, err := topoSort(calls)
	if err != nil {
		return nil, false, core.NewFault(core.FaultPlanCyclic, err, nil)
	}

	byID := make(map[string]int, len(calls))
	for i, call := range calls {
		byID[call.StepID] = i
	}

	results := make([]core.ToolCall, len(calls))
	copy(results, calls)

	for _, idx := range order {
		step := results[idx]

		if blocked := dependencyBlocked(step, byID, results); blocked {
			step.Status = core.ToolStatusBlocked
			step.Stderr = "blocked: a dependency is missing or did not succeed"
			results[idx] = step
			continue
		}

		substituted, missing := substitute(step.Input, byID, results)
		if missing != "" {
			step.Status = core.ToolStatusBlocked
			step.Stderr = fmt.Sprintf("blocked: reference to unresolved step %q", missing)
			results[idx] = step
			continue
		}
		step.Input = substituted

		tool, ok := c.registry.Get(step.Tool)
		if !ok {
			step.Status = core.ToolStatusError
			step.Stderr = fmt.Sprintf("unknown tool %q", step.Tool)
			results[idx] = step
			continue
		}

		attempts := 0
		for {
			stepCtx := ctx
			var span trace.Span
			if c.tracer != nil {
				stepCtx, span = c.tracer.StartToolSpan(ctx, step.Tool, idx)
			}

			start := time.Now()
			res, execErr := tool.Execute(stepCtx, step.Input, nil)
			elapsed := time.Since(start).Milliseconds()

			step.Status = res.Status
			step.Result = res.Result
			step.Stdout = res.Stdout
			step.Stderr = res.Stderr
			step.ElapsedMs = elapsed
			if execErr != nil {
				step.Status = core.ToolStatusError
				step.Stderr = execErr.Error()
			}

			if span != nil {
				tracing.RecordSpanDuration(span, time.Since(start))
				if execErr != nil {
					tracing.RecordSpanError(span, execErr)
				} else {
					tracing.RecordSpanSuccess(span)
				}
				span.End()
			}

			if step.Status != core.ToolStatusError || attempts >= c.maxRetries {
				break
			}
			attempts++
		}

		results[idx] = step
	}

	return results, planOK(results), nil
}

// planOK reports whether every required step in results finished ok. Steps
// tagged Optional are excluded from the check.
func planOK(results []core.ToolCall) bool {
	for _, r := range results {
		if r.Optional {
			continue
		}
		if r.Status != core.ToolStatusOK {
			return false
		}
	}
	return true
}

func dependencyBlocked(step core.ToolCall, byID map[string]int, results []core.ToolCall) bool {
	for _, dep := range step.DependsOn {
		depIdx, ok := byID[dep]
		if !ok {
			return true
		}
		if results[depIdx].Status != core.ToolStatusOK {
			return true
		}
	}
	return false
}

// substitute replaces every `{{step_j.result}}`/`{{step_j.stdout}}` marker
// with the corresponding prior step's value. Returns the id of a
// referenced-but-unresolved step, if any.
func substitute(input string, byID map[string]int, results []core.ToolCall) (string, string) {
	var missing string
	out := substitutionPattern.ReplaceAllStringFunc(input, func(m string) string {
		groups := substitutionPattern.FindStringSubmatch(m)
		stepID, field := groups[1], groups[2]
		idx, ok := byID[stepID]
		if !ok || results[idx].Status != core.ToolStatusOK {
			missing = stepID
			return m
		}
		if field == "stdout" {
			return results[idx].Stdout
		}
		return results[idx].Result
	})
	return out, missing
}

// topoSort returns the indices of calls in dependency order, or an error
// if the dependency graph is cyclic.
func topoSort(calls []core.ToolCall) ([]int, error) {
	byID := make(map[string]int, len(calls))
	for i, c := range calls {
		byID[c.StepID] = i
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(calls))
	var order []int

	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected at step %s", calls[i].StepID)
		}
		color[i] = gray
		for _, dep := range calls[i].DependsOn {
			depIdx, ok := byID[dep]
			if !ok {
				continue
			}
			if err := visit(depIdx); err != nil {
				return err
			}
		}
		color[i] = black
		order = append(order, i)
		return nil
	}

	for i := range calls {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

var _ core.PlanComposer = (*Composer)(nil)
