package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes recorded on the turns_total counter.
const (
	OutcomeAnswered        = "answered"
	OutcomeHedged          = "hedged"
	OutcomeBlockedInbound  = "blocked_inbound"
	OutcomeBlockedOutbound = "blocked_outbound"
	OutcomeFailed          = "failed"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	TurnsTotal        *prometheus.CounterVec
	GuardrailVerdicts *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	FallbackSearches  *prometheus.CounterVec
	IntentSubmissions *prometheus.CounterVec
	ActiveUserQueues  prometheus.Gauge
	RetrievalTopScore prometheus.Histogram
	TurnLatency       prometheus.Histogram

	// Stages is a rolling in-process latency window per pipeline stage,
	// served on the debug endpoint alongside the Prometheus view.
	Stages *TurnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome.",
		}, []string{"outcome"}),
		GuardrailVerdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_verdicts_total",
			Help:      "Guardrail verdicts by direction, decision and reason.",
		}, []string{"direction", "decision", "reason"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		FallbackSearches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_searches_total",
			Help:      "Freshness fallback searches by trigger.",
		}, []string{"trigger"}),
		IntentSubmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_submissions_total",
			Help:      "Intents submitted to the personalization source by type and status.",
		}, []string{"type", "status"}),
		ActiveUserQueues: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_user_queues",
			Help:      "Per-user turn queues currently live.",
		}),
		RetrievalTopScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_top_score",
			Help:      "Top relevance score of the merged evidence set per turn.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 3500, 5000, 8000, 15000},
		}),
		Stages: NewTurnStageWindow(0),
	}
}

func (m *Metrics) ObserveTurnLatency(d time.Duration) {
	m.TurnLatency.Observe(float64(d.Milliseconds()))
	m.Stages.Observe(StageTurnTotal, float64(d.Milliseconds()))
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.Stages.Observe(stage, float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
