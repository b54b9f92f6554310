package curriculum

import (
	"math/rand"
	"testing"

	"github.com/agent0/coevolve/core"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_FixedStrideCyclesDomainEveryStride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domains = []core.Domain{core.DomainMath, core.DomainLogic, core.DomainCode}
	cfg.Stride = 2
	s := New(cfg)

	first := s.NextSignal().Domain
	s.Update(true)
	second := s.NextSignal().Domain
	s.Update(true) // this is the 2nd update -> stride triggers domain advance
	third := s.NextSignal().Domain

	assert.Equal(t, first, second)
	assert.NotEqual(t, second, third)
}

func TestScheduler_DifficultyClampedToBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domains = []core.Domain{core.DomainMath}
	cfg.Stride = 1000000
	s := New(cfg)

	for i := 0; i < 200; i++ {
		s.NextSignal()
		s.Update(true) // consistently above target -> difficulty should climb, then clamp
	}

	sig := s.NextSignal()
	assert.LessOrEqual(t, sig.Difficulty, 0.9)
	assert.GreaterOrEqual(t, sig.Difficulty, 0.1)
}

func TestScheduler_DifficultyDecreasesOnLowSuccessRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domains = []core.Domain{core.DomainMath}
	cfg.Stride = 1000000
	cfg.WindowSize = 20
	s := New(cfg)

	initial := s.NextSignal().Difficulty
	for i := 0; i < 25; i++ {
		s.NextSignal()
		s.Update(false)
	}
	final := s.NextSignal().Difficulty

	assert.Less(t, final, initial)
}

func TestScheduler_FrontierModePicksLowestScoreDomainMostOfTheTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableFrontier = true
	cfg.Domains = []core.Domain{core.DomainMath, core.DomainLogic}
	cfg.Epsilon = 0.0 // always exploit (probability 1-epsilon of picking the lowest-score domain)
	s := NewWithRand(cfg, rand.New(rand.NewSource(1)))

	// Bias math's history toward the target and logic's away from it so
	// math has the lower |rate-target| score.
	for i := 0; i < 10; i++ {
		s.states[core.DomainMath].history = append(s.states[core.DomainMath].history, i%2 == 0)
		s.states[core.DomainLogic].history = append(s.states[core.DomainLogic].history, true)
	}

	sig := s.NextSignal()
	assert.Equal(t, core.DomainMath, sig.Domain)
}

func TestScheduler_UpdateAppliesToTheDomainNextSignalReturned(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableFrontier = true
	cfg.Domains = []core.Domain{core.DomainMath, core.DomainLogic}
	cfg.Epsilon = 0.0
	s := NewWithRand(cfg, rand.New(rand.NewSource(2)))

	sig := s.NextSignal()
	s.Update(true)

	assert.Len(t, s.states[sig.Domain].history, 1)
}
