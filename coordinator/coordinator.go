// Package coordinator implements run_once (C10): the single-step pipeline
// wiring the scheduler, generator, solver, verifier, uncertainty estimator,
// novelty index, reward engine and trajectory log together, catching every
// fault raised by a component at this boundary the way worker.go's
// Solve/telemetry pairing does, so the run loop never sees a panic or a
// propagated component error.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agent0/coevolve/core"
	"github.com/agent0/coevolve/pkg/logging"
	"github.com/agent0/coevolve/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Metrics is the subset of pkg/metrics.PrometheusMetrics the coordinator
// touches, kept as an interface so tests can supply a no-op double.
type Metrics interface {
	RecordTaskGenerated(domain string)
	RecordTrajectory(domain, outcome string)
	RecordVerifierResult(kind string, passed bool)
	RecordReward(total float64)
	RecordNovelty(score float64)
	RecordUncertainty(score float64)
	SetCurriculumState(domain string, difficulty, successRate float64)
	RecordRateLimitSkip(window string)
	RecordFault(code string)
}

// RateLimitConfig bounds how many steps run_once may execute in a sliding
// minute/hour window.
type RateLimitConfig struct {
	MaxTasksPerMinute int
	MaxTasksPerHour   int
}

// DefaultRateLimitConfig returns the documented defaults.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{MaxTasksPerMinute: 30, MaxTasksPerHour: 1000}
}

// Coordinator wires every C1-C9 port together and drives run_once.
type Coordinator struct {
	scheduler   core.CurriculumScheduler
	generator   core.TaskGenerator
	solver      core.Solver
	verifier    core.Verifier
	uncertainty core.UncertaintyEstimator
	novelty     core.NoveltyIndex
	reward      core.RewardEngine
	trajLog     core.TrajectoryLog

	logger    *logging.Logger
	metrics   Metrics
	secLog    core.SecurityLog
	tracer    *tracing.Tracer

	minuteLimiter *rate.Limiter
	hourLimiter   *rate.Limiter
}

// Deps groups the collaborators run_once needs. The components are
// required; the rest are optional: Metrics defaults to a no-op recorder,
// a nil SecurityLog silently drops rate-limit events, a nil Logger or
// Tracer disables logging or tracing, and zero RateLimits take the
// defaults.
type Deps struct {
	Scheduler   core.CurriculumScheduler
	Generator   core.TaskGenerator
	Solver      core.Solver
	Verifier    core.Verifier
	Uncertainty core.UncertaintyEstimator
	Novelty     core.NoveltyIndex
	Reward      core.RewardEngine
	TrajLog     core.TrajectoryLog
	Logger      *logging.Logger
	Metrics     Metrics
	SecurityLog core.SecurityLog
	Tracer      *tracing.Tracer
	RateLimits  RateLimitConfig
}

// New builds a Coordinator from deps, defaulting rate limits and metrics
// when left zero-valued.
func New(deps Deps) *Coordinator {
	if deps.RateLimits.MaxTasksPerMinute <= 0 && deps.RateLimits.MaxTasksPerHour <= 0 {
		deps.RateLimits = DefaultRateLimitConfig()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}

	var minuteLimiter, hourLimiter *rate.Limiter
	if deps.RateLimits.MaxTasksPerMinute > 0 {
		minuteLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(deps.RateLimits.MaxTasksPerMinute)), deps.RateLimits.MaxTasksPerMinute)
	}
	if deps.RateLimits.MaxTasksPerHour > 0 {
		hourLimiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(deps.RateLimits.MaxTasksPerHour)), deps.RateLimits.MaxTasksPerHour)
	}

	return &Coordinator{
		scheduler:     deps.Scheduler,
		generator:     deps.Generator,
		solver:        deps.Solver,
		verifier:      deps.Verifier,
		uncertainty:   deps.Uncertainty,
		novelty:       deps.Novelty,
		reward:        deps.Reward,
		trajLog:       deps.TrajLog,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		secLog:        deps.SecurityLog,
		tracer:        deps.Tracer,
		minuteLimiter: minuteLimiter,
		hourLimiter:   hourLimiter,
	}
}

// RunOnce executes the ten-step evolution cycle. It never returns an error
// to the caller: a component-level fault or a recovered panic is logged
// and folded into a nil-trajectory skip, and a rate-limited step likewise
// returns a nil trajectory with a nil error (a rate limit and a skipped
// step are observably identical, per §7).
func (c *Coordinator) RunOnce(ctx context.Context) (result *core.Trajectory, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logFault(ctx, "Panic", fmt.Errorf("recovered panic: %v", r), "")
			result, err = nil, nil
		}
	}()

	if !c.allowedByRateLimit() {
		c.logFault(ctx, core.FaultRateLimited, nil, "")
		return nil, nil
	}

	// Step 1: scheduler.NextSignal must never raise.
	signal := c.scheduler.NextSignal()

	var stepSpan trace.Span
	if c.tracer != nil {
		ctx, stepSpan = c.tracer.StartStepSpan(ctx, string(signal.Domain), signal.Difficulty)
		defer stepSpan.End()
	}

	// Step 2: generator.Generate.
	task, err := c.generator.Generate(ctx, signal)
	if err != nil {
		c.logFault(ctx, faultKind(err, core.FaultGeneratorExhausted), err, "")
		if stepSpan != nil {
			tracing.RecordSpanError(stepSpan, err)
		}
		return nil, nil
	}
	c.metrics.RecordTaskGenerated(string(task.Domain))

	// Step 3: solver.Solve.
	trajectory, err := c.solver.Solve(ctx, task)
	if err != nil {
		c.logFault(ctx, faultKind(err, core.FaultInferenceUnavailable), err, task.TaskID)
		if stepSpan != nil {
			tracing.RecordSpanError(stepSpan, err)
		}
		return nil, nil
	}

	// Step 4: verifier.Verify sets trajectory.success. A low-confidence
	// self-verification downgrade from the solver takes precedence over
	// a passing verdict: a correct answer reached on a 2/3 modal
	// agreement still reports failure.
	verifierCtx := ctx
	var verifierSpan trace.Span
	if c.tracer != nil {
		verifierCtx, verifierSpan = c.tracer.StartVerifierSpan(ctx, task.Verifier.Kind())
	}
	verdict := c.verifier.Verify(verifierCtx, task, trajectory.Result)
	trajectory.Success = verdict.Status == core.VerdictPass && !trajectory.VerificationDowngraded
	c.metrics.RecordVerifierResult(task.Verifier.Kind(), trajectory.Success)
	if verifierSpan != nil {
		if verdict.Status == core.VerdictError {
			tracing.RecordSpanError(verifierSpan, errors.New(verdict.Reason))
		} else {
			tracing.RecordSpanSuccess(verifierSpan)
		}
		verifierSpan.End()
	}

	// Step 5: uncertainty.Estimate.
	successProb, err := c.uncertainty.Estimate(ctx, task, trajectory.Result)
	if err != nil {
		c.logFault(ctx, core.FaultInferenceUnavailable, err, task.TaskID)
		successProb = 0.5
	}
	c.metrics.RecordUncertainty(successProb)

	// Step 6: novelty signature/embed/max_similarity/add.
	signature := core.NoveltySignature(task.Domain, task.Prompt)
	maxSimilarity := 0.0
	if vec, embedErr := c.novelty.Embed(ctx, task.Prompt); embedErr != nil {
		c.logFault(ctx, core.FaultInferenceUnavailable, embedErr, task.TaskID)
	} else {
		maxSimilarity = c.novelty.MaxSimilarity(vec)
		c.novelty.Add(vec)
	}
	c.metrics.RecordNovelty(maxSimilarity)

	// Step 7: reward.Compute.
	trajectory.Reward = c.reward.Compute(trajectory, successProb, signature, maxSimilarity)
	c.metrics.RecordReward(trajectory.Reward.Total)

	if trajectory.Timestamp.IsZero() {
		trajectory.Timestamp = now()
	}

	// Step 8: trajectory_log.Append under lock. A lock-contention failure
	// here is not a dropped trajectory: TrajectoryLog queues it internally
	// and drains it ahead of the next successful Append.
	if err := c.trajLog.Append(trajectory); err != nil {
		c.logFault(ctx, faultKind(err, core.FaultLockContention), err, task.TaskID)
	}
	c.metrics.RecordTrajectory(string(task.Domain), outcomeLabel(trajectory.Success))

	// Step 9: scheduler.Update must never raise.
	c.scheduler.Update(trajectory.Success)

	if reporter, ok := c.scheduler.(domainStateReporter); ok {
		difficulty, successRate := reporter.DomainState(task.Domain)
		c.metrics.SetCurriculumState(string(task.Domain), difficulty, successRate)
	}

	// Step 10: return the trajectory.
	if stepSpan != nil {
		tracing.AddSpanAttributes(stepSpan, map[string]any{"coevolve.success": trajectory.Success})
		tracing.RecordSpanSuccess(stepSpan)
	}
	return &trajectory, nil
}

type domainStateReporter interface {
	DomainState(d core.Domain) (difficulty, successRate float64)
}

func (c *Coordinator) allowedByRateLimit() bool {
	if c.minuteLimiter != nil && !c.minuteLimiter.Allow() {
		c.metrics.RecordRateLimitSkip("minute")
		c.logSecurityEvent("rate_limited", "per-minute task rate exceeded")
		return false
	}
	if c.hourLimiter != nil && !c.hourLimiter.Allow() {
		c.metrics.RecordRateLimitSkip("hour")
		c.logSecurityEvent("rate_limited", "per-hour task rate exceeded")
		return false
	}
	return true
}

func (c *Coordinator) logSecurityEvent(kind, detail string) {
	if c.secLog == nil {
		return
	}
	_ = c.secLog.AppendEvent(kind, detail)
}

func (c *Coordinator) logFault(ctx context.Context, kind core.FaultKind, err error, taskID string) {
	c.metrics.RecordFault(string(kind))
	if c.logger == nil {
		return
	}
	cause := ""
	if err != nil {
		cause = err.Error()
	}
	c.logger.LogFault(ctx, string(kind), cause, taskID)
}

func faultKind(err error, fallback core.FaultKind) core.FaultKind {
	var fault *core.Fault
	if errors.As(err, &fault) {
		return fault.Kind
	}
	return fallback
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

var now = time.Now

type noopMetrics struct{}

func (noopMetrics) RecordTaskGenerated(string)                        {}
func (noopMetrics) RecordTrajectory(string, string)                   {}
func (noopMetrics) RecordVerifierResult(string, bool)                 {}
func (noopMetrics) RecordReward(float64)                              {}
func (noopMetrics) RecordNovelty(float64)                             {}
func (noopMetrics) RecordUncertainty(float64)                         {}
func (noopMetrics) SetCurriculumState(string, float64, float64)       {}
func (noopMetrics) RecordRateLimitSkip(string)                        {}
func (noopMetrics) RecordFault(string)                                {}
