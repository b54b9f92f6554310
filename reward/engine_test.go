package reward

import (
	"fmt"
	"testing"

	"github.com/agent0/coevolve/core"
	"github.com/stretchr/testify/assert"
)

func TestEngine_CorrectnessTerm(t *testing.T) {
	e := New(DefaultWeights())

	pass := e.Compute(core.Trajectory{Success: true}, 0.5, "math:1", 0)
	fail := e.Compute(core.Trajectory{Success: false}, 0.5, "math:2", 0)

	assert.Equal(t, 1.0, pass.Correctness)
	assert.Equal(t, -0.5, fail.Correctness)
}

func TestEngine_UncertaintyPeaksAtTarget(t *testing.T) {
	e := New(DefaultWeights())

	atTarget := e.Compute(core.Trajectory{}, 0.5, "math:1", 0)
	farFromTarget := e.Compute(core.Trajectory{}, 1.0, "math:2", 0)

	assert.Equal(t, 1.0, atTarget.Uncertainty)
	assert.InDelta(t, 0.5, farFromTarget.Uncertainty, 1e-9)
}

func TestEngine_ToolUseReward(t *testing.T) {
	e := New(DefaultWeights())

	none := e.Compute(core.Trajectory{}, 0.5, "math:1", 0)
	assert.Equal(t, -0.2, none.ToolUse)

	fourOK := e.Compute(core.Trajectory{ToolCalls: []core.ToolCall{
		{Status: core.ToolStatusOK}, {Status: core.ToolStatusOK},
		{Status: core.ToolStatusOK}, {Status: core.ToolStatusOK},
	}}, 0.5, "math:2", 0)
	assert.Equal(t, 1.0, fourOK.ToolUse) // min(1.0, 0.25*4)

	twoOK := e.Compute(core.Trajectory{ToolCalls: []core.ToolCall{
		{Status: core.ToolStatusOK}, {Status: core.ToolStatusError},
	}}, 0.5, "math:3", 0)
	assert.InDelta(t, 0.25, twoOK.ToolUse, 1e-9)
}

func TestEngine_NoveltyPenalizesRepeatedSignature(t *testing.T) {
	e := New(DefaultWeights())

	first := e.Compute(core.Trajectory{}, 0.5, "math:42", 0)
	repeat := e.Compute(core.Trajectory{}, 0.5, "math:42", 0)

	assert.Equal(t, 1.0, first.Novelty)
	assert.Equal(t, 0.5, repeat.Novelty)
}

func TestEngine_NoveltyPenalizesHighSimilarity(t *testing.T) {
	e := New(DefaultWeights())

	r := e.Compute(core.Trajectory{}, 0.5, "math:1", 0.95)
	assert.Equal(t, 0.5, r.Novelty)
}

func TestEngine_NoveltyBothPenaltiesBottomOutAtZero(t *testing.T) {
	e := New(DefaultWeights())
	_ = e.Compute(core.Trajectory{}, 0.5, "math:7", 0)

	// 1.0 minus 0.5 for the repeated signature minus 0.5 for the high
	// similarity; the -1.0 floor is not reached.
	r := e.Compute(core.Trajectory{}, 0.5, "math:7", 0.99)
	assert.Equal(t, 0.0, r.Novelty)
}

func TestEngine_SignatureWindowIsBounded(t *testing.T) {
	e := New(DefaultWeights())
	for i := 0; i < 150; i++ {
		e.Compute(core.Trajectory{}, 0.5, fmt.Sprintf("math:%d", i), 0)
	}
	assert.LessOrEqual(t, len(e.recent), signatureWindow)
}

func TestEngine_TotalIsWeightedSum(t *testing.T) {
	e := New(DefaultWeights())
	r := e.Compute(core.Trajectory{Success: true}, 0.5, "math:1", 0)

	expected := DefaultWeights().Uncertainty*r.Uncertainty +
		DefaultWeights().ToolUse*r.ToolUse +
		DefaultWeights().Novelty*r.Novelty +
		weightCorrectness*r.Correctness
	assert.InDelta(t, expected, r.Total, 1e-9)
}
