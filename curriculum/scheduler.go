// Package curriculum implements the curriculum scheduler (C9): per-domain
// difficulty and windowed success-rate tracking, with fixed-stride and
// frontier (success-rate-targeting) domain selection modes.
package curriculum

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/agent0/coevolve/core"
)

// Config configures the scheduler.
type Config struct {
	EnableFrontier bool
	TargetSuccess  float64
	WindowSize     int
	Epsilon        float64
	Domains        []core.Domain
	Stride         int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableFrontier: false,
		TargetSuccess:  0.5,
		WindowSize:     20,
		Epsilon:        0.2,
		Domains:        core.AllDomains(),
		Stride:         5,
	}
}

type domainState struct {
	difficulty float64
	history    []bool
}

// Scheduler implements core.CurriculumScheduler.
type Scheduler struct {
	mu        sync.Mutex
	cfg       Config
	rng       *rand.Rand
	states    map[core.Domain]*domainState
	step      int
	domainIdx int
	lastDomain core.Domain
}

// New builds a scheduler over cfg.Domains, all starting at difficulty 0.3.
func New(cfg Config) *Scheduler {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.Stride <= 0 {
		cfg.Stride = 5
	}
	if len(cfg.Domains) == 0 {
		cfg.Domains = core.AllDomains()
	}
	states := make(map[core.Domain]*domainState, len(cfg.Domains))
	for _, d := range cfg.Domains {
		states[d] = &domainState{difficulty: 0.3}
	}
	return &Scheduler{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		states: states,
	}
}

// NewWithRand builds a scheduler using the given random source, for
// deterministic tests of frontier-mode exploration.
func NewWithRand(cfg Config, rng *rand.Rand) *Scheduler {
	s := New(cfg)
	s.rng = rng
	return s
}

// NextSignal selects the next (domain, difficulty) pair.
func (s *Scheduler) NextSignal() core.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var domain core.Domain
	if s.cfg.EnableFrontier {
		domain = s.pickFrontierDomain()
	} else {
		domain = s.cfg.Domains[s.domainIdx%len(s.cfg.Domains)]
	}

	s.lastDomain = domain
	state := s.states[domain]
	return core.Signal{
		Domain:     domain,
		Difficulty: state.difficulty,
		NextTaskID: core.NewTaskID(),
	}
}

func (s *Scheduler) pickFrontierDomain() core.Domain {
	type scored struct {
		domain core.Domain
		score  float64
	}

	scores := make([]scored, 0, len(s.cfg.Domains))
	for _, d := range s.cfg.Domains {
		rate := s.successRate(d)
		scores = append(scores, scored{domain: d, score: absFloat(rate - s.cfg.TargetSuccess)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score < scores[j].score
		}
		return scores[i].domain < scores[j].domain
	})

	if len(scores) == 1 {
		return scores[0].domain
	}
	if s.rng.Float64() < (1 - s.cfg.Epsilon) {
		return scores[0].domain
	}
	return scores[1].domain
}

func (s *Scheduler) successRate(d core.Domain) float64 {
	state := s.states[d]
	if len(state.history) == 0 {
		return s.cfg.TargetSuccess
	}
	successes := 0
	for _, ok := range state.history {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(len(state.history))
}

// Update folds a step's outcome into the current domain's state, advances
// the step counter, and cycles the fixed-stride domain pointer.
func (s *Scheduler) Update(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain := s.lastDomain
	if domain == "" {
		domain = s.cfg.Domains[0]
	}
	state := s.states[domain]

	state.history = append(state.history, success)
	if len(state.history) > s.cfg.WindowSize {
		state.history = state.history[len(state.history)-s.cfg.WindowSize:]
	}

	rate := s.successRate(domain)
	const band = 0.1
	switch {
	case rate > s.cfg.TargetSuccess+band:
		state.difficulty += 0.05
	case rate < s.cfg.TargetSuccess-band:
		state.difficulty -= 0.05
	}
	state.difficulty = clamp(state.difficulty, 0.1, 0.9)

	s.step++
	if !s.cfg.EnableFrontier && s.step%s.cfg.Stride == 0 {
		s.domainIdx = (s.domainIdx + 1) % len(s.cfg.Domains)
	}
}

// DomainState reports a domain's current difficulty and windowed success
// rate, for metrics export; it has no effect on scheduling decisions.
func (s *Scheduler) DomainState(d core.Domain) (difficulty, successRate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[d]
	if !ok {
		return 0, 0
	}
	return state.difficulty, s.successRate(d)
}

// Domains returns the configured domain list in scheduling order.
func (s *Scheduler) Domains() []core.Domain {
	return s.cfg.Domains
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

var _ core.CurriculumScheduler = (*Scheduler)(nil)
