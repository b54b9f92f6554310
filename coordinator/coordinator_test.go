package coordinator

import (
	"context"
	"testing"

	"github.com/agent0/coevolve/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScheduler struct {
	signal      core.Signal
	updates     []bool
	nextCalls   int
	difficulty  float64
	successRate float64
}

func (s *stubScheduler) NextSignal() core.Signal {
	s.nextCalls++
	return s.signal
}
func (s *stubScheduler) Update(success bool) { s.updates = append(s.updates, success) }
func (s *stubScheduler) DomainState(d core.Domain) (float64, float64) {
	return s.difficulty, s.successRate
}

type stubGenerator struct {
	task core.Task
	err  error
}

func (g *stubGenerator) Generate(ctx context.Context, signal core.Signal) (core.Task, error) {
	return g.task, g.err
}

type stubSolver struct {
	trajectory core.Trajectory
	err        error
}

func (s *stubSolver) Solve(ctx context.Context, task core.Task) (core.Trajectory, error) {
	return s.trajectory, s.err
}

type stubVerifier struct {
	verdict core.Verdict
}

func (v *stubVerifier) Verify(ctx context.Context, task core.Task, candidate string) core.Verdict {
	return v.verdict
}

type stubUncertainty struct {
	prob float64
	err  error
}

func (u *stubUncertainty) Estimate(ctx context.Context, task core.Task, answer string) (float64, error) {
	return u.prob, u.err
}

type stubNovelty struct {
	vec     []float64
	embErr  error
	maxSim  float64
	added   [][]float64
}

func (n *stubNovelty) Embed(ctx context.Context, text string) ([]float64, error) { return n.vec, n.embErr }
func (n *stubNovelty) MaxSimilarity(vec []float64) float64                       { return n.maxSim }
func (n *stubNovelty) Add(vec []float64)                                        { n.added = append(n.added, vec) }
func (n *stubNovelty) Len() int                                                  { return len(n.added) }

type stubReward struct {
	breakdown        core.RewardBreakdown
	lastSuccessProb  float64
}

func (r *stubReward) Compute(t core.Trajectory, successProb float64, sig string, maxSim float64) core.RewardBreakdown {
	r.lastSuccessProb = successProb
	return r.breakdown
}

type stubTrajLog struct {
	appended []core.Trajectory
	err      error
}

func (l *stubTrajLog) Append(t core.Trajectory) error {
	l.appended = append(l.appended, t)
	return l.err
}

type stubSecurityLog struct {
	events []string
}

func (s *stubSecurityLog) AppendEvent(kind, detail string) error {
	s.events = append(s.events, kind)
	return nil
}

func newTestDeps() (*stubScheduler, *stubGenerator, *stubSolver, *stubVerifier, *stubUncertainty, *stubNovelty, *stubReward, *stubTrajLog) {
	sched := &stubScheduler{signal: core.Signal{Domain: core.DomainMath, Difficulty: 0.3, NextTaskID: "t-1"}}
	gen := &stubGenerator{task: core.Task{TaskID: "t-1", Domain: core.DomainMath, Prompt: "2+2", Verifier: core.NumericVerifier{Expected: 4}}}
	sv := &stubSolver{trajectory: core.Trajectory{Result: "4"}}
	ver := &stubVerifier{verdict: core.Verdict{Status: core.VerdictPass}}
	unc := &stubUncertainty{prob: 0.8}
	nov := &stubNovelty{vec: []float64{1, 0}, maxSim: 0.1}
	rew := &stubReward{breakdown: core.RewardBreakdown{Total: 0.5}}
	log := &stubTrajLog{}
	return sched, gen, sv, ver, unc, nov, rew, log
}

func buildCoordinator(sched *stubScheduler, gen *stubGenerator, sv *stubSolver, ver *stubVerifier, unc *stubUncertainty, nov *stubNovelty, rew *stubReward, log *stubTrajLog) *Coordinator {
	return New(Deps{
		Scheduler:   sched,
		Generator:   gen,
		Solver:      sv,
		Verifier:    ver,
		Uncertainty: unc,
		Novelty:     nov,
		Reward:      rew,
		TrajLog:     log,
		RateLimits:  RateLimitConfig{MaxTasksPerMinute: 1000, MaxTasksPerHour: 100000},
	})
}

func TestRunOnce_HappyPathReturnsCompleteTrajectory(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, traj)

	assert.True(t, traj.Success)
	assert.Equal(t, 0.5, traj.Reward.Total)
	assert.Len(t, log.appended, 1)
	assert.Equal(t, []bool{true}, sched.updates)
	assert.Equal(t, 1, nov.Len())
}

func TestRunOnce_GeneratorFaultSkipsStepWithoutError(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	gen.err = core.NewFault(core.FaultGeneratorExhausted, nil, nil)
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, traj)
	assert.Empty(t, log.appended)
	assert.Empty(t, sched.updates, "scheduler.Update must not run when the step is skipped before solving")
}

func TestRunOnce_SolverFaultSkipsStepWithoutError(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	sv.err = core.NewFault(core.FaultInferenceUnavailable, nil, nil)
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, traj)
	assert.Empty(t, log.appended)
}

func TestRunOnce_VerifierFailureStillProducesCompleteTrajectory(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	ver.verdict = core.Verdict{Status: core.VerdictFail, Reason: "mismatch"}
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, traj)
	assert.False(t, traj.Success)
	assert.Len(t, log.appended, 1)
	assert.Equal(t, []bool{false}, sched.updates)
}

func TestRunOnce_UncertaintyFaultFallsBackToPointFive(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	unc.err = core.NewFault(core.FaultInferenceUnavailable, nil, nil)
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, rew.lastSuccessProb)
}

func TestRunOnce_TrajectoryLogFaultDoesNotAbortTheStep(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	log.err = core.NewFault(core.FaultLockContention, nil, nil)
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, traj)
	assert.Equal(t, []bool{true}, sched.updates, "scheduler.Update must still run even if the log append failed")
}

func TestRunOnce_RateLimitSkipsWithoutCallingDownstreamComponents(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	c := New(Deps{
		Scheduler:   sched,
		Generator:   gen,
		Solver:      sv,
		Verifier:    ver,
		Uncertainty: unc,
		Novelty:     nov,
		Reward:      rew,
		TrajLog:     log,
		RateLimits:  RateLimitConfig{MaxTasksPerMinute: 1, MaxTasksPerHour: 1},
	})

	first, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, 1, sched.nextCalls, "a rate-limited step must not consume a scheduler signal")
}

func TestRunOnce_RateLimitSkipAppendsSecurityEvent(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	sec := &stubSecurityLog{}
	c := New(Deps{
		Scheduler:   sched,
		Generator:   gen,
		Solver:      sv,
		Verifier:    ver,
		Uncertainty: unc,
		Novelty:     nov,
		Reward:      rew,
		TrajLog:     log,
		SecurityLog: sec,
		RateLimits:  RateLimitConfig{MaxTasksPerMinute: 1, MaxTasksPerHour: 1},
	})

	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	_, err = c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"rate_limited"}, sec.events)
}

func TestRunOnce_VerificationDowngradeSurvivesAPassingVerdict(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	confidence := 0.667
	sv.trajectory = core.Trajectory{Result: "42", Verification: &confidence, VerificationDowngraded: true}
	ver.verdict = core.Verdict{Status: core.VerdictPass}
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, traj)
	assert.False(t, traj.Success, "a low-confidence self-verification downgrade must survive a passing verifier verdict")
	assert.Equal(t, []bool{false}, sched.updates)
}

func TestRunOnce_NoveltyEmbedFaultStillCompletesStep(t *testing.T) {
	sched, gen, sv, ver, unc, nov, rew, log := newTestDeps()
	nov.embErr = core.NewFault(core.FaultInferenceUnavailable, nil, nil)
	c := buildCoordinator(sched, gen, sv, ver, unc, nov, rew, log)

	traj, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, traj)
	assert.Equal(t, 0, nov.Len(), "a failed embed must not be added to the novelty index")
}
