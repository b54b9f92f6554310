// Package reward implements the multi-component reward engine (C6):
// correctness, uncertainty, tool-use and novelty combined into a scalar
// and a component breakdown.
package reward

import (
	"sync"

	"github.com/agent0/coevolve/core"
)

const signatureWindow = 100

// Weights configures the reward engine. Correctness has a fixed weight per
// spec and is not exposed here.
type Weights struct {
	Uncertainty            float64
	ToolUse                float64
	Novelty                float64
	TargetSuccess          float64
	RepetitionSimThreshold float64
}

// DefaultWeights returns the documented defaults.
func DefaultWeights() Weights {
	return Weights{
		Uncertainty:            0.5,
		ToolUse:                0.3,
		Novelty:                0.2,
		TargetSuccess:          0.5,
		RepetitionSimThreshold: 0.9,
	}
}

const weightCorrectness = 0.3

// Engine implements core.RewardEngine. It keeps a bounded window of recent
// novelty signatures to detect repetition across steps.
type Engine struct {
	mu      sync.Mutex
	weights Weights
	recent  []string
}

// New builds a reward engine with the given weights.
func New(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Compute produces the reward breakdown for one trajectory.
func (e *Engine) Compute(trajectory core.Trajectory, successProb float64, noveltySignature string, maxSimilarity float64) core.RewardBreakdown {
	rUnc := 1.0 - absFloat(successProb-e.weights.TargetSuccess)
	rTool := toolUseReward(trajectory.ToolCalls)
	rNov := e.noveltyReward(noveltySignature, maxSimilarity)
	rCorrect := -0.5
	if trajectory.Success {
		rCorrect = 1.0
	}

	total := e.weights.Uncertainty*rUnc +
		e.weights.ToolUse*rTool +
		e.weights.Novelty*rNov +
		weightCorrectness*rCorrect

	return core.RewardBreakdown{
		Uncertainty: rUnc,
		ToolUse:     rTool,
		Novelty:     rNov,
		Correctness: rCorrect,
		Total:       total,
	}
}

func toolUseReward(calls []core.ToolCall) float64 {
	if len(calls) == 0 {
		return -0.2
	}
	nOK := 0
	for _, c := range calls {
		if c.Status == core.ToolStatusOK {
			nOK++
		}
	}
	r := 0.25 * float64(nOK)
	if r > 1.0 {
		r = 1.0
	}
	return r
}

func (e *Engine) noveltyReward(signature string, maxSimilarity float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := 1.0
	if contains(e.recent, signature) {
		r -= 0.5
	}
	if maxSimilarity > e.weights.RepetitionSimThreshold {
		r -= 0.5
	}
	if r < -1.0 {
		r = -1.0
	}

	e.recent = append(e.recent, signature)
	if len(e.recent) > signatureWindow {
		e.recent = e.recent[len(e.recent)-signatureWindow:]
	}
	return r
}

func contains(s []string, v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ core.RewardEngine = (*Engine)(nil)
