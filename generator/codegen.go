package generator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/agent0/coevolve/core"
)

func (g *Generator) drawCode(rng *rand.Rand, difficulty float64, attempt int) (core.Task, error) {
	switch {
	case difficulty < 0.3:
		return g.drawCodeEasy(rng, difficulty, attempt), nil
	case difficulty < 0.6:
		return g.drawCodeMedium(rng, difficulty, attempt), nil
	default:
		return g.drawCodeHard(rng, difficulty, attempt), nil
	}
}

// drawCodeEasy alternates between a sum and an even-check task over a
// random small list.
func (g *Generator) drawCodeEasy(rng *rand.Rand, difficulty float64, attempt int) core.Task {
	xs := randomInts(rng, 4, -10, 10)

	if rng.Intn(2) == 0 {
		sum := 0
		for _, v := range xs {
			sum += v
		}
		prompt := fmt.Sprintf(
			"Write a Python expression that computes the sum of the list %s.",
			pyList(xs),
		)
		return g.newTask(core.Signal{Domain: core.DomainCode, Difficulty: difficulty}, prompt,
			core.PythonPredicateVerifier{Body: fmt.Sprintf("(%s) == %d", "{{candidate}}", sum)}, "code_easy", attempt)
	}

	n := rng.Intn(2000)
	prompt := fmt.Sprintf("Write a Python expression that evaluates to True if %d is even, and False otherwise.", n)
	expected := "True"
	if n%2 != 0 {
		expected = "False"
	}
	return g.newTask(core.Signal{Domain: core.DomainCode, Difficulty: difficulty}, prompt,
		core.PythonPredicateVerifier{Body: fmt.Sprintf("bool(%s) == %s", "{{candidate}}", expected)}, "code_easy", attempt)
}

// drawCodeMedium alternates between reversing and finding the max of a
// random small list.
func (g *Generator) drawCodeMedium(rng *rand.Rand, difficulty float64, attempt int) core.Task {
	xs := randomInts(rng, 5, -20, 20)

	if rng.Intn(2) == 0 {
		reversed := make([]int, len(xs))
		for i, v := range xs {
			reversed[len(xs)-1-i] = v
		}
		prompt := fmt.Sprintf(
			"Write a Python expression that evaluates to the reverse of the list %s.",
			pyList(xs),
		)
		return g.newTask(core.Signal{Domain: core.DomainCode, Difficulty: difficulty}, prompt,
			core.PythonPredicateVerifier{Body: fmt.Sprintf("list(%s) == %s", "{{candidate}}", pyList(reversed))}, "code_medium", attempt)
	}

	max := xs[0]
	for _, v := range xs {
		if v > max {
			max = v
		}
	}
	prompt := fmt.Sprintf(
		"Write a Python expression that evaluates to the maximum value in the list %s.",
		pyList(xs),
	)
	return g.newTask(core.Signal{Domain: core.DomainCode, Difficulty: difficulty}, prompt,
		core.PythonPredicateVerifier{Body: fmt.Sprintf("(%s) == %d", "{{candidate}}", max)}, "code_medium", attempt)
}

// drawCodeHard alternates between a binary-search index lookup and a
// primality check.
func (g *Generator) drawCodeHard(rng *rand.Rand, difficulty float64, attempt int) core.Task {
	if rng.Intn(2) == 0 {
		sorted := sortedInts(rng, 8)
		target := sorted[rng.Intn(len(sorted))]
		prompt := fmt.Sprintf(
			"Write a Python expression that evaluates to the index of %d in the sorted list %s.",
			target, pyList(sorted),
		)
		idx := indexOf(sorted, target)
		return g.newTask(core.Signal{Domain: core.DomainCode, Difficulty: difficulty}, prompt,
			core.PythonPredicateVerifier{Body: fmt.Sprintf("(%s) == %d", "{{candidate}}", idx)}, "code_hard", attempt)
	}

	n := 2 + rng.Intn(100)
	prompt := fmt.Sprintf("Write a Python expression that evaluates to True if %d is a prime number, and False otherwise.", n)
	expected := "True"
	if !isPrime(n) {
		expected = "False"
	}
	return g.newTask(core.Signal{Domain: core.DomainCode, Difficulty: difficulty}, prompt,
		core.PythonPredicateVerifier{Body: fmt.Sprintf("bool(%s) == %s", "{{candidate}}", expected)}, "code_hard", attempt)
}

func randomInts(rng *rand.Rand, n, lo, hi int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = lo + rng.Intn(hi-lo+1)
	}
	return out
}

func sortedInts(rng *rand.Rand, n int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0, n)
	for len(out) < n {
		v := rng.Intn(200)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func indexOf(xs []int, target int) int {
	for i, v := range xs {
		if v == target {
			return i
		}
	}
	return -1
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

func pyList(xs []int) string {
	parts := make([]string, len(xs))
	for i, v := range xs {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
