package generator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/agent0/coevolve/core"
)

var namePool = []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi"}

func (g *Generator) drawLogic(rng *rand.Rand, difficulty float64, attempt int) (core.Task, error) {
	switch {
	case difficulty < 0.3:
		return g.drawDeduction(rng, difficulty, attempt), nil
	case difficulty < 0.6:
		return g.drawChain(rng, difficulty, attempt), nil
	default:
		return g.drawPuzzle(rng, difficulty, attempt), nil
	}
}

// drawDeduction produces a two-premise syllogism with a yes/no answer.
func (g *Generator) drawDeduction(rng *rand.Rand, difficulty float64, attempt int) core.Task {
	a, b, c := pickThreeCategories(rng)
	subject := namePool[rng.Intn(len(namePool))]
	holds := rng.Intn(2) == 0

	var prompt, answer string
	if holds {
		prompt = fmt.Sprintf(
			"All %s are %s. All %s are %s. %s is a %s. Is %s a %s? Answer yes or no.",
			a, b, b, c, subject, a, subject, c,
		)
		answer = "yes"
	} else {
		prompt = fmt.Sprintf(
			"All %s are %s. No %s are %s. %s is a %s. Is %s a %s? Answer yes or no.",
			a, b, b, c, subject, a, subject, c,
		)
		answer = "no"
	}

	verifier := core.ExactStringVerifier{Expected: answer}
	return g.newTask(core.Signal{Domain: core.DomainLogic, Difficulty: difficulty}, prompt, verifier, "deduction", attempt)
}

// drawChain produces a transitive-ordering puzzle asking for the extreme
// element.
func (g *Generator) drawChain(rng *rand.Rand, difficulty float64, attempt int) core.Task {
	n := 3 + rng.Intn(2) // 3 or 4 participants
	people := shuffledNames(rng, n)

	var lines []string
	for i := 0; i < n-1; i++ {
		lines = append(lines, fmt.Sprintf("%s is taller than %s.", people[i], people[i+1]))
	}
	prompt := strings.Join(lines, " ") + " Who is the tallest?"

	verifier := core.ExactStringVerifier{Expected: people[0]}
	return g.newTask(core.Signal{Domain: core.DomainLogic, Difficulty: difficulty}, prompt, verifier, "chain", attempt)
}

// drawPuzzle produces a small two-speaker knights-and-knaves puzzle.
// Knights always tell the truth, knaves always lie. The classic
// self-referential claim "we are both knaves" has a unique consistent
// solution: the speaker is a knave and the other is a knight. The surface
// form of a correct answer varies, so the verifier is a regex.
func (g *Generator) drawPuzzle(rng *rand.Rand, difficulty float64, attempt int) core.Task {
	names := shuffledNames(rng, 2)
	first, second := names[0], names[1]

	prompt := fmt.Sprintf(
		"On an island, knights always tell the truth and knaves always lie. "+
			"%s says: \"%s and I are both knaves.\" Is %s a knight or a knave? "+
			"Answer with 'knight' or 'knave'.",
		first, second, first,
	)

	verifier := core.RegexMatchVerifier{Pattern: `(?i)knave`}
	return g.newTask(core.Signal{Domain: core.DomainLogic, Difficulty: difficulty}, prompt, verifier, "puzzle", attempt)
}

func pickThreeCategories(rng *rand.Rand) (string, string, string) {
	categories := []string{"mammals", "reptiles", "birds", "vehicles", "engineers", "musicians", "cats", "dogs"}
	idx := rng.Perm(len(categories))[:3]
	return categories[idx[0]], categories[idx[1]], categories[idx[2]]
}

func shuffledNames(rng *rand.Rand, n int) []string {
	perm := rng.Perm(len(namePool))[:n]
	out := make([]string, n)
	for i, p := range perm {
		out[i] = namePool[p]
	}
	return out
}
