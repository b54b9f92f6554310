// Command coevolve runs the self-play co-evolution loop: it wires the tool
// registry, reasoning parser, verifier, novelty index, uncertainty
// estimator, reward engine, task generator, solver, curriculum scheduler
// and on-disk persistence into a coordinator, then drives run_once in a
// loop until the process is signaled to stop.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agent0/coevolve/config"
	"github.com/agent0/coevolve/coordinator"
	"github.com/agent0/coevolve/core"
	"github.com/agent0/coevolve/curriculum"
	"github.com/agent0/coevolve/embed"
	"github.com/agent0/coevolve/generator"
	"github.com/agent0/coevolve/inference"
	"github.com/agent0/coevolve/novelty"
	"github.com/agent0/coevolve/persist"
	"github.com/agent0/coevolve/pkg/logging"
	"github.com/agent0/coevolve/pkg/metrics"
	"github.com/agent0/coevolve/pkg/tokens"
	"github.com/agent0/coevolve/pkg/tracing"
	"github.com/agent0/coevolve/reasoning"
	"github.com/agent0/coevolve/reward"
	"github.com/agent0/coevolve/safety"
	"github.com/agent0/coevolve/solver"
	"github.com/agent0/coevolve/tools"
	"github.com/agent0/coevolve/uncertainty"
	"github.com/agent0/coevolve/verifier"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: "stdout", AddCaller: true})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer logger.Sync()

	var tracer *tracing.Tracer
	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		t, err := tracing.NewTracer(tracing.Config{
			ServiceName:    "coevolve",
			ServiceVersion: "0.1.0",
			JaegerEndpoint: endpoint,
			Environment:    envOr("ENVIRONMENT", "development"),
		})
		if err != nil {
			logger.Warn("tracing disabled", "error", err.Error())
		} else {
			tracer = t
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracer.Shutdown(shutdownCtx); err != nil {
					logger.Warn("tracer shutdown failed", "error", err.Error())
				}
			}()
		}
	}

	promMetrics := metrics.NewPrometheusMetrics()

	if err := os.MkdirAll("runs", 0755); err != nil {
		log.Fatalf("runs dir: %v", err)
	}
	if cfg.Tooling.Workdir != "" {
		if err := os.MkdirAll(cfg.Tooling.Workdir, 0755); err != nil {
			log.Fatalf("tooling workdir: %v", err)
		}
	}

	secLog := persist.NewSecurityLog(filepath.Join("runs", "security_events.jsonl"), 5*time.Second)

	reviewer := safety.NewReviewer()
	toolCfg := tools.ToolingConfig{
		EnablePython: cfg.Tooling.EnablePython,
		EnableShell:  cfg.Tooling.EnableShell,
		EnableMath:   cfg.Tooling.EnableMath,
		EnableTests:  cfg.Tooling.EnableTests,
		Timeout:      time.Duration(cfg.Tooling.TimeoutSecs) * time.Second,
		Workdir:      cfg.Tooling.Workdir,
		AllowedShell: cfg.Tooling.AllowedShell,
	}
	registry := tools.NewDefaultRegistry(reviewer, toolCfg, secLog)
	composer := tools.NewComposer(registry, 2).WithTracer(tracer)
	parser := reasoning.NewParser()

	pythonTool, _ := registry.Get("python")
	taskVerifier := verifier.NewVerifier(pythonTool)

	embedder := buildEmbedder(cfg, logger)
	noveltyIndex := novelty.NewIndex(embedder)

	studentEndpoint := buildEndpoint(cfg.Models.Student, "student", logger).WithTracer(tracer)

	uncertaintyEstimator := uncertainty.New(studentEndpoint, cfg.Models.Student.UncertaintySamples, cfg.Models.Student.Temperature, cfg.Models.Student.TopP)

	rewardEngine := reward.New(reward.Weights{
		Uncertainty:            cfg.Rewards.WeightUncertainty,
		ToolUse:                cfg.Rewards.WeightToolUse,
		Novelty:                cfg.Rewards.WeightNovelty,
		TargetSuccess:          cfg.Rewards.TargetSuccessRate,
		RepetitionSimThreshold: cfg.Rewards.RepetitionSimilarityThresh,
	})

	taskGenerator := generator.New()

	verificationCfg := solver.VerificationConfig{
		Enabled:             cfg.Verification.Enable,
		Samples:             cfg.Verification.NumSamples,
		ConfidenceThreshold: cfg.Verification.ConfidenceThreshold,
	}
	studentSolver := solver.New(studentEndpoint, parser, composer, logger, verificationCfg).WithTracer(tracer)
	if cfg.Models.Student.Backend == "openai" {
		if enc, err := tokens.NewTiktokenEncoder("cl100k_base"); err != nil {
			logger.Warn("tiktoken encoder unavailable, falling back to mock", "error", err.Error())
		} else {
			studentSolver.WithEncoder(enc)
		}
	}

	domains, err := cfg.Domains()
	if err != nil {
		log.Fatalf("curriculum: %v", err)
	}
	scheduler := curriculum.New(curriculum.Config{
		EnableFrontier: cfg.Curriculum.EnableFrontier,
		TargetSuccess:  cfg.Curriculum.TargetSuccess,
		WindowSize:     cfg.Curriculum.WindowSize,
		Epsilon:        cfg.Curriculum.Epsilon,
		Domains:        domains,
	})

	trajLog := persist.NewTrajectoryLog(filepath.Join("runs", "trajectories.jsonl"), 5*time.Second)

	if cfg.Router.Enable {
		routerCache, err := persist.NewRouterCache(cfg.Router.CachePath, 10000)
		if err != nil {
			logger.Warn("router cache disabled", "error", err.Error())
		} else {
			logger.Info("router cache ready", "path", cfg.Router.CachePath, "entries", routerCache.Len())
		}
	}

	coord := coordinator.New(coordinator.Deps{
		Scheduler:   scheduler,
		Generator:   taskGenerator,
		Solver:      studentSolver,
		Verifier:    taskVerifier,
		Uncertainty: uncertaintyEstimator,
		Novelty:     noveltyIndex,
		Reward:      rewardEngine,
		TrajLog:     trajLog,
		Logger:      logger,
		Metrics:     promMetricsAdapter{promMetrics},
		SecurityLog: secLog,
		Tracer:      tracer,
		RateLimits: coordinator.RateLimitConfig{
			MaxTasksPerMinute: cfg.RateLimits.MaxTasksPerMinute,
			MaxTasksPerHour:   cfg.RateLimits.MaxTasksPerHour,
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"coevolve"}`))
	})
	server := &http.Server{Addr: ":8082", Handler: mux}
	go func() {
		logger.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLoop(ctx, coord, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func runLoop(ctx context.Context, coord *coordinator.Coordinator, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		default:
		}

		traj, err := coord.RunOnce(ctx)
		if err != nil {
			logger.Error("run_once returned an error", "error", err.Error())
			time.Sleep(200 * time.Millisecond)
			continue
		}
		if traj == nil {
			// rate-limited or skipped step; back off briefly rather than
			// spinning against the limiter.
			time.Sleep(200 * time.Millisecond)
			continue
		}
		logger.Info("step complete", "task_id", traj.Task.TaskID, "domain", string(traj.Task.Domain), "success", traj.Success, "reward", traj.Reward.Total)
	}
}

func buildEndpoint(m config.ModelConfig, role string, logger *logging.Logger) *inference.CircuitBreakerEndpoint {
	var inner core.Endpoint
	apiKey := os.Getenv(envKeyFor(role))
	if m.Backend == "openai" && apiKey != "" {
		inner = inference.NewOpenAIEndpoint(apiKey, m.Model, m.Host)
	} else {
		inner = inference.NewMockEndpoint()
	}
	return inference.NewCircuitBreakerEndpoint(inner, role, logger)
}

func envKeyFor(role string) string {
	if role == "teacher" {
		return "TEACHER_API_KEY"
	}
	return "STUDENT_API_KEY"
}

func buildEmbedder(cfg config.Config, logger *logging.Logger) core.EmbeddingProvider {
	if cfg.Embedding.UseTransformer {
		if apiKey := os.Getenv("EMBEDDING_API_KEY"); apiKey != "" {
			e, err := embed.NewOpenAIEmbedder(apiKey, cfg.Embedding.ModelName)
			if err == nil {
				return e
			}
			logger.Warn("openai embedder unavailable, falling back", "error", err.Error())
		}
	}
	return embed.NewFallbackEmbedder(64, 4)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type promMetricsAdapter struct {
	m *metrics.PrometheusMetrics
}

func (a promMetricsAdapter) RecordTaskGenerated(domain string) { a.m.RecordTaskGenerated(domain) }
func (a promMetricsAdapter) RecordTrajectory(domain, outcome string) {
	a.m.RecordTrajectory(domain, outcome)
}
func (a promMetricsAdapter) RecordVerifierResult(kind string, passed bool) {
	a.m.RecordVerifierResult(kind, passed)
}
func (a promMetricsAdapter) RecordReward(total float64)    { a.m.RecordReward(total) }
func (a promMetricsAdapter) RecordNovelty(score float64)    { a.m.RecordNovelty(score) }
func (a promMetricsAdapter) RecordUncertainty(score float64) { a.m.RecordUncertainty(score) }
func (a promMetricsAdapter) SetCurriculumState(domain string, difficulty, successRate float64) {
	a.m.SetCurriculumState(domain, difficulty, successRate)
}
func (a promMetricsAdapter) RecordRateLimitSkip(window string) { a.m.RecordRateLimitSkip(window) }
func (a promMetricsAdapter) RecordFault(code string)           { a.m.RecordFault(code) }
