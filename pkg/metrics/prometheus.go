package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics emitted by the loop
type PrometheusMetrics struct {
	InferenceTotal    *prometheus.CounterVec
	InferenceLatency  *prometheus.HistogramVec

	TasksGeneratedTotal *prometheus.CounterVec
	TrajectoriesTotal   *prometheus.CounterVec
	VerifierResultTotal *prometheus.CounterVec

	RewardTotal      prometheus.Histogram
	NoveltyScore     prometheus.Histogram
	UncertaintyScore prometheus.Histogram

	CurriculumDifficulty *prometheus.GaugeVec
	CurriculumSuccessRate *prometheus.GaugeVec

	RouterCacheHitsTotal   prometheus.Counter
	RouterCacheMissesTotal prometheus.Counter

	RateLimitSkipsTotal *prometheus.CounterVec
	RetriesTotal        *prometheus.CounterVec

	CircuitOpenTotal     *prometheus.CounterVec
	CircuitClosedTotal   *prometheus.CounterVec
	CircuitHalfOpenTotal *prometheus.CounterVec

	FaultsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics registers and returns the metric set
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		InferenceTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_inference_requests_total",
				Help: "Total number of inference endpoint calls",
			},
			[]string{"role", "model", "status"},
		),

		InferenceLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coevolve_inference_latency_seconds",
				Help:    "Inference call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role", "model"},
		),

		TasksGeneratedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_tasks_generated_total",
				Help: "Total number of tasks generated by domain",
			},
			[]string{"domain"},
		),

		TrajectoriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_trajectories_total",
				Help: "Total number of trajectories persisted, by outcome",
			},
			[]string{"domain", "outcome"},
		),

		VerifierResultTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_verifier_result_total",
				Help: "Total verifier decisions by kind and result",
			},
			[]string{"kind", "passed"},
		),

		RewardTotal: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coevolve_reward_total",
				Help:    "Distribution of combined reward signal",
				Buckets: prometheus.LinearBuckets(-1, 0.2, 11),
			},
		),

		NoveltyScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coevolve_novelty_score",
				Help:    "Distribution of novelty index scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		UncertaintyScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coevolve_uncertainty_score",
				Help:    "Distribution of estimated solver uncertainty",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		CurriculumDifficulty: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coevolve_curriculum_difficulty",
				Help: "Current curriculum difficulty per domain",
			},
			[]string{"domain"},
		),

		CurriculumSuccessRate: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coevolve_curriculum_success_rate",
				Help: "Windowed success rate per domain",
			},
			[]string{"domain"},
		),

		RouterCacheHitsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "coevolve_router_cache_hits_total",
				Help: "Total router cache hits",
			},
		),

		RouterCacheMissesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "coevolve_router_cache_misses_total",
				Help: "Total router cache misses",
			},
		),

		RateLimitSkipsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_rate_limit_skips_total",
				Help: "Total steps skipped due to rate limiting",
			},
			[]string{"window"},
		),

		RetriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_retries_total",
				Help: "Total inference retries",
			},
			[]string{"role", "model", "reason"},
		),

		CircuitOpenTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_circuit_open_total",
				Help: "Total circuit breaker opens",
			},
			[]string{"role", "model"},
		),

		CircuitClosedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_circuit_closed_total",
				Help: "Total circuit breaker closes",
			},
			[]string{"role", "model"},
		),

		CircuitHalfOpenTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_circuit_half_open_total",
				Help: "Total circuit breaker half-opens",
			},
			[]string{"role", "model"},
		),

		FaultsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coevolve_faults_total",
				Help: "Total faults caught at the coordinator boundary",
			},
			[]string{"code"},
		),
	}
}

func (m *PrometheusMetrics) RecordInference(role, model, status string, duration time.Duration) {
	m.InferenceTotal.WithLabelValues(role, model, status).Inc()
	m.InferenceLatency.WithLabelValues(role, model).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordTaskGenerated(domain string) {
	m.TasksGeneratedTotal.WithLabelValues(domain).Inc()
}

func (m *PrometheusMetrics) RecordTrajectory(domain, outcome string) {
	m.TrajectoriesTotal.WithLabelValues(domain, outcome).Inc()
}

func (m *PrometheusMetrics) RecordVerifierResult(kind string, passed bool) {
	m.VerifierResultTotal.WithLabelValues(kind, boolLabel(passed)).Inc()
}

func (m *PrometheusMetrics) RecordReward(total float64) {
	m.RewardTotal.Observe(total)
}

func (m *PrometheusMetrics) RecordNovelty(score float64) {
	m.NoveltyScore.Observe(score)
}

func (m *PrometheusMetrics) RecordUncertainty(score float64) {
	m.UncertaintyScore.Observe(score)
}

func (m *PrometheusMetrics) SetCurriculumState(domain string, difficulty, successRate float64) {
	m.CurriculumDifficulty.WithLabelValues(domain).Set(difficulty)
	m.CurriculumSuccessRate.WithLabelValues(domain).Set(successRate)
}

func (m *PrometheusMetrics) RecordRouterCacheHit() {
	m.RouterCacheHitsTotal.Inc()
}

func (m *PrometheusMetrics) RecordRouterCacheMiss() {
	m.RouterCacheMissesTotal.Inc()
}

func (m *PrometheusMetrics) RecordRateLimitSkip(window string) {
	m.RateLimitSkipsTotal.WithLabelValues(window).Inc()
}

func (m *PrometheusMetrics) RecordRetry(role, model, reason string) {
	m.RetriesTotal.WithLabelValues(role, model, reason).Inc()
}

func (m *PrometheusMetrics) RecordCircuitOpen(role, model string) {
	m.CircuitOpenTotal.WithLabelValues(role, model).Inc()
}

func (m *PrometheusMetrics) RecordCircuitClosed(role, model string) {
	m.CircuitClosedTotal.WithLabelValues(role, model).Inc()
}

func (m *PrometheusMetrics) RecordCircuitHalfOpen(role, model string) {
	m.CircuitHalfOpenTotal.WithLabelValues(role, model).Inc()
}

func (m *PrometheusMetrics) RecordFault(code string) {
	m.FaultsTotal.WithLabelValues(code).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
