// Package generator implements the task generator (C7): given a scheduler
// signal it emits a validated Task for one of three domains (math, logic,
// code), retrying degenerate draws before falling back to the easiest tier,
// and regenerating once on self-validation failure.
package generator

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/agent0/coevolve/core"
)

const maxDegenerateRetries = 10

// Generator implements core.TaskGenerator.
type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	seenIDs map[string]struct{}
}

// New builds a generator seeded from the current time.
func New() *Generator {
	return NewWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand builds a generator using the given random source, for
// deterministic tests.
func NewWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng, seenIDs: make(map[string]struct{})}
}

// Generate emits a validated task for signal, applying a prompt override
// when present.
func (g *Generator) Generate(ctx context.Context, signal core.Signal) (core.Task, error) {
	if signal.PromptOverride != nil {
		task := g.newTask(signal, signal.PromptOverride.Prompt, signal.PromptOverride.Verifier, "override", 0)
		if err := g.validate(task); err != nil {
			return core.Task{}, core.NewFault(core.FaultGeneratorExhausted, err, map[string]any{
				"domain": string(signal.Domain), "reason": "prompt_override_invalid",
			})
		}
		return task, nil
	}

	task, err := g.draw(signal, 0)
	if err == nil {
		if verr := g.validate(task); verr == nil {
			return task, nil
		}
	}

	task, err = g.draw(signal, 1)
	if err != nil {
		return core.Task{}, core.NewFault(core.FaultGeneratorExhausted, err, map[string]any{
			"domain": string(signal.Domain),
		})
	}
	if verr := g.validate(task); verr != nil {
		return core.Task{}, core.NewFault(core.FaultGeneratorExhausted, verr, map[string]any{
			"domain": string(signal.Domain),
		})
	}
	return task, nil
}

// draw dispatches to the domain-specific tier picker. attempt is 0 for the
// first draw and 1 for the single regeneration Generate performs after a
// self-validation failure; it is recorded on the emitted task's metadata.
func (g *Generator) draw(signal core.Signal, attempt int) (core.Task, error) {
	g.mu.Lock()
	rng := g.rng
	g.mu.Unlock()

	switch signal.Domain {
	case core.DomainMath:
		return g.drawMath(rng, signal.Difficulty, attempt)
	case core.DomainLogic:
		return g.drawLogic(rng, signal.Difficulty, attempt)
	case core.DomainCode:
		return g.drawCode(rng, signal.Difficulty, attempt)
	default:
		return g.drawMath(rng, signal.Difficulty, attempt)
	}
}

// newTask stamps a drawn prompt/verifier pair into a Task, recording which
// tier drew it and which Generate attempt (0 or 1) produced it.
func (g *Generator) newTask(signal core.Signal, prompt string, verifier core.VerifierSpec, tier string, attempt int) core.Task {
	id := signal.NextTaskID
	if id == "" {
		id = core.NewTaskID()
	}
	return core.Task{
		TaskID:     id,
		Domain:     signal.Domain,
		Difficulty: signal.Difficulty,
		Prompt:     prompt,
		Verifier:   verifier,
		Metadata: map[string]any{
			"created_at":     time.Now().UnixNano(),
			"generator_tier": tier,
			"attempt":        attempt,
		},
	}
}

// validate applies the self-validation rules and records task_id
// uniqueness for the lifetime of the generator.
func (g *Generator) validate(task core.Task) error {
	if strings.TrimSpace(task.Prompt) == "" {
		return errEmptyPrompt
	}
	if len(task.Prompt) > 1000 {
		return errPromptTooLong
	}
	for _, r := range task.Prompt {
		if r == 0 || (r < 0x20 && r != '\n' && r != '\t') {
			return errControlChars
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, seen := g.seenIDs[task.TaskID]; seen {
		return errDuplicateTaskID
	}
	g.seenIDs[task.TaskID] = struct{}{}
	return nil
}

var _ core.TaskGenerator = (*Generator)(nil)
