// Package config loads the run's YAML configuration, resolving the file
// path from an explicit argument or the CONFIG environment variable and
// falling back to built-in defaults for every section, the way the
// teacher's registry loader resolves router.yaml.
package config

import (
	"fmt"
	"os"

	"github.com/agent0/coevolve/core"
	"gopkg.in/yaml.v3"
)

// ModelConfig describes one inference endpoint role (teacher or student).
type ModelConfig struct {
	Backend            string  `yaml:"backend"`
	Model              string  `yaml:"model"`
	Host               string  `yaml:"host"`
	ContextLength      int     `yaml:"context_length"`
	Temperature        float64 `yaml:"temperature"`
	TopP               float64 `yaml:"top_p"`
	UncertaintySamples int     `yaml:"uncertainty_samples"`
}

// ResourceConfig bounds local compute usage.
type ResourceConfig struct {
	Device           string `yaml:"device"`
	MaxGPUMemoryGB   int    `yaml:"max_gpu_memory_gb"`
	NumThreads       int    `yaml:"num_threads"`
	MaxTokensPerTask int    `yaml:"max_tokens_per_task"`
}

// ToolingConfig gates which tools the composer may invoke.
type ToolingConfig struct {
	EnablePython  bool     `yaml:"enable_python"`
	EnableShell   bool     `yaml:"enable_shell"`
	EnableMath    bool     `yaml:"enable_math"`
	EnableTests   bool     `yaml:"enable_tests"`
	TimeoutSecs   int      `yaml:"timeout_seconds"`
	Workdir       string   `yaml:"workdir"`
	AllowedShell  []string `yaml:"allowed_shell"`
}

// RewardConfig carries the reward engine's tunable weights; correctness's
// weight is fixed in the reward package and not configurable.
type RewardConfig struct {
	WeightUncertainty          float64 `yaml:"weight_uncertainty"`
	WeightToolUse              float64 `yaml:"weight_tool_use"`
	WeightNovelty              float64 `yaml:"weight_novelty"`
	TargetSuccessRate          float64 `yaml:"target_success_rate"`
	RepetitionSimilarityThresh float64 `yaml:"repetition_similarity_threshold"`
}

// CurriculumConfig configures the scheduler's difficulty and domain
// selection policy.
type CurriculumConfig struct {
	EnableFrontier bool     `yaml:"enable_frontier"`
	TargetSuccess  float64  `yaml:"target_success"`
	FrontierWindow float64  `yaml:"frontier_window"`
	Domains        []string `yaml:"domains"`
	WindowSize     int      `yaml:"window_size"`
	Epsilon        float64  `yaml:"epsilon"`
}

// VerificationConfig configures the solver's self-verification pass.
type VerificationConfig struct {
	Enable              bool    `yaml:"enable"`
	NumSamples          int     `yaml:"num_samples"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	EnableCOT           bool    `yaml:"enable_cot"`
}

// RouterConfig configures the optional pre-step cache wrapper.
type RouterConfig struct {
	Enable                    bool    `yaml:"enable"`
	CloudConfidenceThreshold  float64 `yaml:"cloud_confidence_threshold"`
	LocalConfidenceThreshold  float64 `yaml:"local_confidence_threshold"`
	CachePath                 string  `yaml:"cache_path"`
}

// EmbeddingConfig selects the embedding backend for the novelty index.
type EmbeddingConfig struct {
	UseTransformer bool   `yaml:"use_transformer"`
	ModelName      string `yaml:"model_name"`
}

// RateLimitConfig bounds how many tasks the coordinator may run.
type RateLimitConfig struct {
	MaxTasksPerMinute int `yaml:"max_tasks_per_minute"`
	MaxTasksPerHour   int `yaml:"max_tasks_per_hour"`
}

// ResourceLimitConfig advisorily bounds tool execution.
type ResourceLimitConfig struct {
	MaxMemoryMB   int `yaml:"max_memory_mb"`
	MaxCPUSeconds int `yaml:"max_cpu_seconds"`
	MaxOutputKB   int `yaml:"max_output_kb"`
}

// Config is the full recognized configuration surface.
type Config struct {
	Models struct {
		Teacher ModelConfig `yaml:"teacher"`
		Student ModelConfig `yaml:"student"`
	} `yaml:"models"`
	Resources      ResourceConfig      `yaml:"resources"`
	Tooling        ToolingConfig       `yaml:"tooling"`
	Rewards        RewardConfig        `yaml:"rewards"`
	Curriculum     CurriculumConfig    `yaml:"curriculum"`
	Verification   VerificationConfig  `yaml:"verification"`
	Router         RouterConfig        `yaml:"router"`
	Embedding      EmbeddingConfig     `yaml:"embedding"`
	RateLimits     RateLimitConfig     `yaml:"rate_limits"`
	ResourceLimits ResourceLimitConfig `yaml:"resource_limits"`
}

// Default returns a Config populated with the documented defaults, the
// same shape NextSignal/reward/curriculum packages assume when a section
// is absent from the file on disk.
func Default() Config {
	var c Config
	c.Models.Teacher = ModelConfig{Backend: "openai", Model: "gpt-4o-mini", ContextLength: 8192, Temperature: 0.7, TopP: 0.9, UncertaintySamples: 3}
	c.Models.Student = ModelConfig{Backend: "openai", Model: "gpt-4o-mini", ContextLength: 8192, Temperature: 0.7, TopP: 0.9, UncertaintySamples: 3}
	c.Resources = ResourceConfig{Device: "cpu", MaxGPUMemoryGB: 0, NumThreads: 4, MaxTokensPerTask: 2048}
	c.Tooling = ToolingConfig{EnablePython: true, EnableShell: false, EnableMath: true, EnableTests: false, TimeoutSecs: 30, Workdir: "runs/work"}
	c.Rewards = RewardConfig{WeightUncertainty: 0.5, WeightToolUse: 0.3, WeightNovelty: 0.2, TargetSuccessRate: 0.5, RepetitionSimilarityThresh: 0.9}
	c.Curriculum = CurriculumConfig{EnableFrontier: false, TargetSuccess: 0.5, FrontierWindow: 0.1, Domains: []string{"math", "logic", "code"}, WindowSize: 20, Epsilon: 0.2}
	c.Verification = VerificationConfig{Enable: false, NumSamples: 3, ConfidenceThreshold: 0.7, EnableCOT: false}
	c.Router = RouterConfig{Enable: false, CloudConfidenceThreshold: 0.7, LocalConfidenceThreshold: 0.5, CachePath: "runs/router_cache.json"}
	c.Embedding = EmbeddingConfig{UseTransformer: false, ModelName: "fallback-hash"}
	c.RateLimits = RateLimitConfig{MaxTasksPerMinute: 30, MaxTasksPerHour: 1000}
	c.ResourceLimits = ResourceLimitConfig{MaxMemoryMB: 512, MaxCPUSeconds: 10, MaxOutputKB: 64}
	return c
}

// Load resolves the config path (explicit argument, then CONFIG env var,
// then "config.yaml"), returning defaults unmodified if no file exists at
// that path, and merges any YAML section it finds over the defaults.
func Load(path string) (Config, error) {
	if envPath := os.Getenv("CONFIG"); path == "" && envPath != "" {
		path = envPath
	}
	if path == "" {
		path = "config.yaml"
	}

	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, core.NewFault(core.FaultConfigInvalid, err, map[string]any{"path": path})
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, core.NewFault(core.FaultConfigInvalid, err, map[string]any{"path": path})
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a configuration that would make the coordinator or its
// components misbehave; failures here are fatal at startup per the
// ConfigInvalid fault kind.
func (c Config) Validate() error {
	if c.Verification.NumSamples < 1 {
		return core.NewFault(core.FaultConfigInvalid, fmt.Errorf("verification.num_samples must be >= 1"), map[string]any{"value": c.Verification.NumSamples})
	}
	if c.Curriculum.WindowSize < 1 {
		return core.NewFault(core.FaultConfigInvalid, fmt.Errorf("curriculum.window_size must be >= 1"), map[string]any{"value": c.Curriculum.WindowSize})
	}
	if c.Curriculum.Epsilon < 0 || c.Curriculum.Epsilon > 1 {
		return core.NewFault(core.FaultConfigInvalid, fmt.Errorf("curriculum.epsilon must be in [0,1]"), map[string]any{"value": c.Curriculum.Epsilon})
	}
	if len(c.Curriculum.Domains) == 0 {
		return core.NewFault(core.FaultConfigInvalid, fmt.Errorf("curriculum.domains must be non-empty"), nil)
	}
	if c.RateLimits.MaxTasksPerMinute < 0 || c.RateLimits.MaxTasksPerHour < 0 {
		return core.NewFault(core.FaultConfigInvalid, fmt.Errorf("rate_limits must be non-negative"), nil)
	}
	if c.Tooling.EnableShell && len(c.Tooling.AllowedShell) == 0 {
		return core.NewFault(core.FaultConfigInvalid, fmt.Errorf("tooling.allowed_shell must be non-empty when enable_shell is true"), nil)
	}
	return nil
}

// Domains converts the string domain list into core.Domain values,
// returning a ConfigInvalid fault for the first unrecognized name.
func (c Config) Domains() ([]core.Domain, error) {
	out := make([]core.Domain, 0, len(c.Curriculum.Domains))
	for _, d := range c.Curriculum.Domains {
		switch core.Domain(d) {
		case core.DomainMath, core.DomainLogic, core.DomainCode:
			out = append(out, core.Domain(d))
		default:
			return nil, core.NewFault(core.FaultConfigInvalid, fmt.Errorf("unrecognized domain %q", d), map[string]any{"domain": d})
		}
	}
	return out, nil
}
