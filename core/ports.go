package core

import "context"

// ToolResult is what a single tool execution produces.
type ToolResult struct {
	Status    ToolStatus
	Result    string
	Stdout    string
	Stderr    string
	ElapsedMs int64
}

// Tool is one named, executable capability (python, math, shell, test).
type Tool interface {
	Name() string
	Execute(ctx context.Context, input string, config map[string]any) (ToolResult, error)
}

// PlanComposer executes a DAG-ordered sequence of ToolCall templates,
// substituting `{{step_j.result}}`/`{{step_j.stdout}}` before each step. The
// bool return is the plan's overall status: true iff every non-optional
// step finished ok. A step tagged Optional may fail without failing the
// plan.
type PlanComposer interface {
	ExecutePlan(ctx context.Context, calls []ToolCall) ([]ToolCall, bool, error)
}

// ParseResult is the structured output of the reasoning-trace parser.
type ParseResult struct {
	ToolCalls []ToolCall
	Answer    string
	Errors    []ParseError
}

// ParseError records one malformed Tool:/ToolInput: pair without aborting
// the rest of the trace.
type ParseError struct {
	Line   int
	Reason string
}

func (e ParseError) Error() string { return e.Reason }

// Parser extracts tool calls and a final answer from free-text model output.
type Parser interface {
	Parse(text string) ParseResult
}

// Verifier checks a candidate answer against a task's VerifierSpec.
type Verifier interface {
	Verify(ctx context.Context, task Task, candidate string) Verdict
}

// NoveltyIndex embeds prompts and answers max-similarity queries against a
// bounded recent-history store.
type NoveltyIndex interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	MaxSimilarity(vec []float64) float64
	Add(vec []float64)
	Len() int
}

// EmbeddingProvider produces a vector embedding for a piece of text.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// UncertaintyEstimator produces a calibrated success-probability estimate.
type UncertaintyEstimator interface {
	Estimate(ctx context.Context, task Task, answer string) (float64, error)
}

// RewardEngine combines correctness, tool-use, novelty and uncertainty into
// a scalar and a component breakdown.
type RewardEngine interface {
	Compute(trajectory Trajectory, successProb float64, noveltySignature string, maxSimilarity float64) RewardBreakdown
}

// TaskGenerator emits a validated task record from a scheduler signal.
type TaskGenerator interface {
	Generate(ctx context.Context, signal Signal) (Task, error)
}

// Solver produces an answer and tool-call trace for a task.
type Solver interface {
	Solve(ctx context.Context, task Task) (Trajectory, error)
}

// CurriculumScheduler selects the next (domain, difficulty) signal and
// folds solve outcomes back into per-domain state.
type CurriculumScheduler interface {
	NextSignal() Signal
	Update(success bool)
}

// LogProbs carries per-token log-probabilities for a generated completion.
type LogProbs struct {
	Tokens        []string
	TokenLogProbs []float64
}

// GenerateOptions parameterizes one inference call.
type GenerateOptions struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
	Seed        *int64
}

// Endpoint is the language-model inference collaborator.
type Endpoint interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	GenerateWithLogprobs(ctx context.Context, prompt string, opts GenerateOptions) (string, LogProbs, error)
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// ReviewResult is the verdict of the code review gate.
type ReviewResult struct {
	Safe     bool
	Issues   []string
	Warnings []string
}

// CodeReviewer is the pre-execution static check applied to any code
// string before it runs; the sole defense in this configuration.
type CodeReviewer interface {
	Review(code string) ReviewResult
}

// TrajectoryLog appends trajectories to the run's append-only JSONL file.
type TrajectoryLog interface {
	Append(t Trajectory) error
}

// SecurityLog appends security-relevant events (blocked code, blocked
// shell, rate-limit hits).
type SecurityLog interface {
	AppendEvent(kind, detail string) error
}
