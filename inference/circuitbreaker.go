package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/agent0/coevolve/core"
	"github.com/agent0/coevolve/pkg/logging"
	"github.com/agent0/coevolve/pkg/tracing"
)

// CircuitBreakerEndpoint wraps a core.Endpoint with a per-model gobreaker
// circuit breaker, opening after a sustained failure rate and shedding
// calls until the cooldown elapses.
type CircuitBreakerEndpoint struct {
	inner   core.Endpoint
	breaker *gobreaker.CircuitBreaker
	role    string
	logger  *logging.Logger
	tracer  *tracing.Tracer
}

// NewCircuitBreakerEndpoint wraps inner. role is a label ("teacher" or
// "student") used in log fields and the breaker name. logger may be nil.
func NewCircuitBreakerEndpoint(inner core.Endpoint, role string, logger *logging.Logger) *CircuitBreakerEndpoint {
	c := &CircuitBreakerEndpoint{
		inner:  inner,
		role:   role,
		logger: logger,
	}

	name := fmt.Sprintf("%s-%s", role, inner.Model())
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if c.logger != nil {
				c.logger.LogCircuitBreaker(context.Background(), role, inner.Model(), to.String())
			}
			if c.tracer != nil {
				_, span := c.tracer.StartCircuitBreakerSpan(context.Background(), role, inner.Model(), to.String())
				span.End()
			}
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker(settings)
	return c
}

// WithTracer attaches a tracer so each circuit-breaker state transition
// gets its own span. Nil disables tracing.
func (c *CircuitBreakerEndpoint) WithTracer(t *tracing.Tracer) *CircuitBreakerEndpoint {
	c.tracer = t
	return c
}

// Generate calls the wrapped endpoint through the circuit breaker.
func (c *CircuitBreakerEndpoint) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (string, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Generate(ctx, prompt, opts)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// GenerateWithLogprobs bypasses the circuit breaker: an endpoint that does
// not support logprobs returns a permanent sentinel error on every call,
// which would otherwise trip the breaker for unrelated Generate/Embed
// traffic sharing the same model name.
func (c *CircuitBreakerEndpoint) GenerateWithLogprobs(ctx context.Context, prompt string, opts core.GenerateOptions) (string, core.LogProbs, error) {
	return c.inner.GenerateWithLogprobs(ctx, prompt, opts)
}

// Embed calls the wrapped endpoint through the circuit breaker.
func (c *CircuitBreakerEndpoint) Embed(ctx context.Context, text string) ([]float64, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

// Model returns the wrapped endpoint's model identifier.
func (c *CircuitBreakerEndpoint) Model() string { return c.inner.Model() }

var _ core.Endpoint = (*CircuitBreakerEndpoint)(nil)
