// Package solver implements the student side of the loop (C8): it drives
// the inference endpoint through a domain-specific prompt template, parses
// the response with C2, executes the extracted tool plan with C1, and
// extracts a final answer. Optional self-verification repeats the whole
// cycle k times and reports the modal answer.
package solver

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/agent0/coevolve/core"
	"github.com/agent0/coevolve/pkg/logging"
	"github.com/agent0/coevolve/pkg/tokens"
	"github.com/agent0/coevolve/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
)

var numericExtract = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

var retryBackoffs = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// VerificationConfig configures the optional self-verification pass.
type VerificationConfig struct {
	Enabled            bool
	Samples            int
	ConfidenceThreshold float64
}

// DefaultVerificationConfig returns the documented defaults.
func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{Enabled: false, Samples: 3, ConfidenceThreshold: 0.7}
}

// Solver implements core.Solver.
type Solver struct {
	endpoint     core.Endpoint
	parser       core.Parser
	composer     core.PlanComposer
	logger       *logging.Logger
	verification VerificationConfig
	sleep        func(time.Duration)
	encoder      tokens.Encoder
	tracer       *tracing.Tracer
}

// New builds a solver from its collaborators. logger may be nil.
func New(endpoint core.Endpoint, parser core.Parser, composer core.PlanComposer, logger *logging.Logger, verification VerificationConfig) *Solver {
	return &Solver{
		endpoint:     endpoint,
		parser:       parser,
		composer:     composer,
		logger:       logger,
		verification: verification,
		sleep:        time.Sleep,
		encoder:      tokens.NewMockEncoder(),
	}
}

// WithEncoder swaps in a model-specific token encoder (e.g. a tiktoken
// encoding matching the endpoint's model) used only for logging the
// prompt/completion token counts on each inference call.
func (s *Solver) WithEncoder(encoder tokens.Encoder) *Solver {
	s.encoder = encoder
	return s
}

// WithTracer attaches a tracer so each inference call and retry gets its
// own span. Nil disables tracing.
func (s *Solver) WithTracer(t *tracing.Tracer) *Solver {
	s.tracer = t
	return s
}

// Solve produces an answer and tool-call trace for task.
func (s *Solver) Solve(ctx context.Context, task core.Task) (core.Trajectory, error) {
	if !s.verification.Enabled {
		return s.solveOnce(ctx, task, 0.0)
	}

	samples := s.verification.Samples
	if samples <= 0 {
		samples = 3
	}

	trajectories := make([]core.Trajectory, 0, samples)
	for i := 0; i < samples; i++ {
		// Jitter temperature per attempt so independent attempts are not
		// identical no-ops against a deterministic endpoint.
		jitter := 0.05 * float64(i)
		traj, err := s.solveOnce(ctx, task, jitter)
		if err != nil {
			return core.Trajectory{}, err
		}
		trajectories = append(trajectories, traj)
	}

	modal, confidence := modalAnswer(trajectories)
	best := trajectories[0]
	for _, t := range trajectories {
		if t.Result == modal {
			best = t
			break
		}
	}
	best.Verification = &confidence
	if confidence < s.verification.ConfidenceThreshold {
		best.Success = false
		best.VerificationDowngraded = true
	}
	return best, nil
}

func (s *Solver) solveOnce(ctx context.Context, task core.Task, temperatureJitter float64) (core.Trajectory, error) {
	prompt := promptTemplate(task)

	text, err := s.generateWithRetry(ctx, task, prompt, temperatureJitter)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("solver: inference failed after retries", "task_id", task.TaskID, "error", err)
		}
		return core.Trajectory{
			Task:      task,
			Result:    "",
			Success:   false,
			Timestamp: time.Now(),
		}, nil
	}

	parsed := s.parser.Parse(text)
	for _, perr := range parsed.Errors {
		if s.logger != nil {
			s.logger.Warn("solver: parse error", "task_id", task.TaskID, "line", perr.Line, "reason", perr.Reason)
		}
	}

	executed, planOK, err := s.composer.ExecutePlan(ctx, parsed.ToolCalls)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("solver: plan execution failed", "task_id", task.TaskID, "error", err)
		}
		executed = parsed.ToolCalls
		planOK = false
	}

	// A required step that never reached ok makes the tool trace untrusted:
	// fall back to whatever the model stated directly rather than reading a
	// result off a plan that did not complete.
	answer := extractAnswer(parsed.Answer, executed, planOK)

	return core.Trajectory{
		Task:      task,
		Result:    answer,
		ToolCalls: executed,
		Reasoning: text,
		Timestamp: time.Now(),
	}, nil
}

func (s *Solver) generateWithRetry(ctx context.Context, task core.Task, prompt string, temperatureJitter float64) (string, error) {
	opts := core.GenerateOptions{
		Temperature: 0.7 + temperatureJitter,
		TopP:        0.9,
		MaxTokens:   512,
	}

	promptTokens, _ := s.encoder.Count(prompt)

	var lastErr error
	for attempt := 0; attempt <= len(retryBackoffs); attempt++ {
		spanCtx := ctx
		var span trace.Span
		if s.tracer != nil {
			spanCtx, span = s.tracer.StartInferenceSpan(ctx, "student", s.endpoint.Model())
		}

		start := time.Now()
		text, err := s.endpoint.Generate(spanCtx, prompt, opts)
		elapsed := time.Since(start)

		if span != nil {
			tracing.RecordSpanDuration(span, elapsed)
			if err != nil {
				tracing.RecordSpanError(span, err)
			} else {
				tracing.RecordSpanSuccess(span)
			}
			span.End()
		}

		if err == nil {
			if s.logger != nil {
				completionTokens, _ := s.encoder.Count(text)
				s.logger.LogInference(ctx, "student", s.endpoint.Model(), "ok", elapsed, promptTokens, completionTokens, task.TaskID)
			}
			return text, nil
		}
		lastErr = err
		if s.logger != nil {
			s.logger.LogInference(ctx, "student", s.endpoint.Model(), "error", elapsed, promptTokens, 0, task.TaskID)
			s.logger.LogRetry(ctx, "student", s.endpoint.Model(), err.Error(), attempt, task.TaskID)
		}
		if s.tracer != nil {
			_, retrySpan := s.tracer.StartRetrySpan(ctx, "student", s.endpoint.Model(), err.Error())
			retrySpan.End()
		}
		if attempt < len(retryBackoffs) {
			s.sleep(retryBackoffs[attempt])
		}
	}
	return "", lastErr
}

// extractAnswer applies the preference order: parsed Answer: field, then
// the last ok tool's result via numeric extraction, then empty. The tool
// fallback is only trusted when the plan as a whole reached ok.
func extractAnswer(parsedAnswer string, calls []core.ToolCall, planOK bool) string {
	if parsedAnswer != "" {
		return parsedAnswer
	}
	if !planOK {
		return ""
	}
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Status != core.ToolStatusOK {
			continue
		}
		if m := numericExtract.FindString(calls[i].Result); m != "" {
			return m
		}
	}
	return ""
}

func modalAnswer(trajectories []core.Trajectory) (string, float64) {
	counts := make(map[string]int)
	for _, t := range trajectories {
		counts[t.Result]++
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	bestCount := -1
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best, float64(bestCount) / float64(len(trajectories))
}

func promptTemplate(task core.Task) string {
	switch task.Domain {
	case core.DomainMath:
		return "You are solving a math problem. Show your reasoning as Thought: lines, " +
			"use Tool: math and ToolInput: <expression or equation> if a calculation helps, " +
			"and finish with Answer: <final value>.\nProblem: " + task.Prompt
	case core.DomainCode:
		return "You are solving a small Python task. Reason step by step with Thought: lines, " +
			"optionally verify your answer with Tool: python and ToolInput: <code>, " +
			"and finish with Answer: <final expression or value>.\nTask: " + task.Prompt
	default:
		return "You are solving a logic puzzle. Reason step by step with Thought: lines " +
			"and finish with Answer: <final answer>.\nPuzzle: " + task.Prompt
	}
}

var _ core.Solver = (*Solver)(nil)
