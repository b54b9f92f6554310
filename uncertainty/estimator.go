// Package uncertainty implements the success-probability estimator (C5):
// a logprob-based confidence proxy when the inference endpoint exposes
// per-token log-probabilities, falling back to self-critique sampling.
package uncertainty

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/agent0/coevolve/core"
)

var probPattern = regexp.MustCompile(`0(?:\.\d+)?|1(?:\.0+)?`)

// Estimator implements core.UncertaintyEstimator.
type Estimator struct {
	endpoint    core.Endpoint
	samples     int
	temperature float64
	topP        float64
}

// New builds an estimator backed by endpoint. samples is the self-critique
// fallback sample count (default 3 when <= 0).
func New(endpoint core.Endpoint, samples int, temperature, topP float64) *Estimator {
	if samples <= 0 {
		samples = 3
	}
	if temperature == 0 {
		temperature = 0.6
	}
	if topP == 0 {
		topP = 0.9
	}
	return &Estimator{endpoint: endpoint, samples: samples, temperature: temperature, topP: topP}
}

// Estimate produces p_success in [0,1] for the given task and candidate
// answer, preferring per-token logprobs when the endpoint supports them.
func (e *Estimator) Estimate(ctx context.Context, task core.Task, answer string) (float64, error) {
	if conf, ok := e.estimateFromLogprobs(ctx, task, answer); ok {
		return conf, nil
	}
	return e.estimateFromSelfCritique(ctx, task, answer)
}

func (e *Estimator) estimateFromLogprobs(ctx context.Context, task core.Task, answer string) (float64, bool) {
	prompt := fmt.Sprintf("%s\nAnswer: %s", task.Prompt, answer)
	_, logprobs, err := e.endpoint.GenerateWithLogprobs(ctx, prompt, core.GenerateOptions{
		MaxTokens:   1,
		Temperature: 0.0,
		TopP:        1.0,
	})
	if err != nil || len(logprobs.TokenLogProbs) == 0 {
		return 0, false
	}

	var sum float64
	for _, lp := range logprobs.TokenLogProbs {
		sum += lp
	}
	meanLogprob := sum / float64(len(logprobs.TokenLogProbs))
	conf := math.Exp(meanLogprob)
	return clamp01(conf), true
}

func (e *Estimator) estimateFromSelfCritique(ctx context.Context, task core.Task, answer string) (float64, error) {
	var sum float64
	var parsed int

	for i := 0; i < e.samples; i++ {
		prompt := selfCritiquePrompt(task.Prompt, answer)
		raw, err := e.endpoint.Generate(ctx, prompt, core.GenerateOptions{
			MaxTokens:   16,
			Temperature: e.temperature,
			TopP:        e.topP,
		})
		if err != nil {
			continue
		}
		if p, ok := extractProb(raw); ok {
			sum += p
			parsed++
		}
	}

	if parsed == 0 {
		return 0.5, nil
	}
	return sum / float64(parsed), nil
}

func selfCritiquePrompt(taskText, answer string) string {
	return "You are an evaluator. Given a problem and a proposed answer, estimate the probability" +
		" the answer is correct. Respond with a number between 0 and 1.\n" +
		"Problem: " + taskText + "\n" +
		"Proposed answer: " + answer + "\n" +
		"Probability:"
}

func extractProb(text string) (float64, bool) {
	match := probPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return clamp01(val), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ core.UncertaintyEstimator = (*Estimator)(nil)
