package generator

import (
	"fmt"
	"math/rand"

	"github.com/agent0/coevolve/core"
)

func (g *Generator) drawMath(rng *rand.Rand, difficulty float64, attempt int) (core.Task, error) {
	switch {
	case difficulty < 0.3:
		return g.drawLinear(rng, difficulty, attempt)
	case difficulty < 0.6:
		task, err := g.drawQuadratic(rng, difficulty, attempt)
		if err != nil {
			return g.drawLinear(rng, difficulty, attempt)
		}
		return task, nil
	default:
		task, err := g.drawSystem(rng, difficulty, attempt)
		if err != nil {
			return g.drawLinear(rng, difficulty, attempt)
		}
		return task, nil
	}
}

func (g *Generator) drawLinear(rng *rand.Rand, difficulty float64, attempt int) (core.Task, error) {
	for i := 0; i < maxDegenerateRetries; i++ {
		a := 1 + rng.Intn(9) // [1,9]
		b := -20 + rng.Intn(41) // [-20,20]
		x := -10 + rng.Intn(21) // [-10,10]
		if a == 0 {
			continue
		}
		c := a*x + b

		prompt := fmt.Sprintf("Solve for x: %s = %d", linearExpr(a, b), c)
		verifier := core.NumericVerifier{Expected: float64(x), Tolerance: 1e-6}
		return g.newTask(core.Signal{Domain: core.DomainMath, Difficulty: difficulty}, prompt, verifier, "linear", attempt), nil
	}
	return core.Task{}, errDegenerateDraw
}

func (g *Generator) drawQuadratic(rng *rand.Rand, difficulty float64, attempt int) (core.Task, error) {
	for i := 0; i < maxDegenerateRetries; i++ {
		r1 := -5 + rng.Intn(11)
		r2 := -5 + rng.Intn(11)

		b := -(r1 + r2)
		c := r1 * r2

		prompt := fmt.Sprintf("Solve for x: x^2 + %s + %s = 0", termInt("x", b), constTerm(c))
		verifier := core.NumericSetVerifier{Expected: []float64{float64(r1), float64(r2)}, Tolerance: 1e-6}
		return g.newTask(core.Signal{Domain: core.DomainMath, Difficulty: difficulty}, prompt, verifier, "quadratic", attempt), nil
	}
	return core.Task{}, errDegenerateDraw
}

func (g *Generator) drawSystem(rng *rand.Rand, difficulty float64, attempt int) (core.Task, error) {
	for i := 0; i < maxDegenerateRetries; i++ {
		a := -5 + rng.Intn(11)
		b := -5 + rng.Intn(11)
		c := -5 + rng.Intn(11)
		d := -5 + rng.Intn(11)

		det := a*d - b*c
		if det == 0 {
			continue
		}

		x := -10 + rng.Intn(21)
		y := -10 + rng.Intn(21)
		e := a*x + b*y
		f := c*x + d*y

		prompt := fmt.Sprintf(
			"Solve for x and y:\n%s = %d\n%s = %d",
			linearExprXY(a, b), e,
			linearExprXY(c, d), f,
		)
		verifier := core.NumericSetVerifier{Expected: []float64{float64(x), float64(y)}, Tolerance: 1e-6}
		return g.newTask(core.Signal{Domain: core.DomainMath, Difficulty: difficulty}, prompt, verifier, "system", attempt), nil
	}
	return core.Task{}, errDegenerateDraw
}

func linearExpr(a, b int) string {
	term := termInt("x", a)
	if term == "" {
		term = "0"
	}
	// a is drawn nonzero, so termInt always yields a coefficient form.
	return term + " " + constTermSuffix(b)
}

func linearExprXY(a, b int) string {
	return termInt("x", a) + " " + termIntJoined("y", b)
}

// termInt renders "3x", "-x", or "" (coefficient 0) for the given variable.
func termInt(variable string, coeff int) string {
	switch {
	case coeff == 0:
		return ""
	case coeff == 1:
		return variable
	case coeff == -1:
		return "-" + variable
	default:
		return fmt.Sprintf("%d%s", coeff, variable)
	}
}

// termIntJoined renders a second additive term with its sign, e.g. "+ 4y" or "- 4y".
func termIntJoined(variable string, coeff int) string {
	if coeff >= 0 {
		return fmt.Sprintf("+ %d%s", coeff, variable)
	}
	return fmt.Sprintf("- %d%s", -coeff, variable)
}

func constTerm(c int) string {
	if c >= 0 {
		return fmt.Sprintf("%d", c)
	}
	return fmt.Sprintf("- %d", -c)
}

func constTermSuffix(b int) string {
	if b >= 0 {
		return fmt.Sprintf("+ %d", b)
	}
	return fmt.Sprintf("- %d", -b)
}
