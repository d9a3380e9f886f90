package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/albertai/studyset/internal/core/domain"
)

// PipelineMetrics records generation runs and per-content-type outcomes.
type PipelineMetrics struct {
	service string

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	outcomesTotal *prometheus.CounterVec
	itemsTotal    *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total generation runs by summary.",
		},
		[]string{"service", "summary"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Generation run duration in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "summary"},
	)
	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "outcomes_total",
			Help:      "Content type outcomes by status and error kind.",
		},
		[]string{"service", "content_type", "status", "kind"},
	)
	itemsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "items_total",
			Help:      "Generated items by content type and disposition.",
		},
		[]string{"service", "content_type", "disposition"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "retries_total",
			Help:      "Retries performed by outbound operation.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(runsTotal, runDuration, outcomesTotal, itemsTotal, retriesTotal)

	return &PipelineMetrics{
		service:       service,
		runsTotal:     runsTotal,
		runDuration:   runDuration,
		outcomesTotal: outcomesTotal,
		itemsTotal:    itemsTotal,
		retriesTotal:  retriesTotal,
	}
}

func (m *PipelineMetrics) ObserveRun(summary string, duration time.Duration) {
	if summary == "" {
		summary = "unknown"
	}
	m.runsTotal.WithLabelValues(m.service, summary).Inc()
	if duration >= 0 {
		m.runDuration.WithLabelValues(m.service, summary).Observe(duration.Seconds())
	}
}

func (m *PipelineMetrics) ObserveOutcome(contentType domain.ContentType, outcome domain.GenerationOutcome) {
	kind := outcome.Kind
	if kind == "" {
		kind = "none"
	}
	ct := string(contentType)
	m.outcomesTotal.WithLabelValues(m.service, ct, string(outcome.Status), kind).Inc()

	accepted := outcome.Count
	if outcome.Status == domain.OutcomePartiallyRejected {
		accepted = outcome.AcceptedCount
	}
	if accepted > 0 {
		m.itemsTotal.WithLabelValues(m.service, ct, "accepted").Add(float64(accepted))
	}
	if rejected := len(outcome.Rejected); rejected > 0 {
		m.itemsTotal.WithLabelValues(m.service, ct, "rejected").Add(float64(rejected))
	}
}

// ObserveRetry matches resilience.RetryHook.
func (m *PipelineMetrics) ObserveRetry(operation string, _ int, _ error) {
	// "llm.chat_completion:<endpoint>" is reported without the endpoint.
	operation, _, _ = strings.Cut(operation, ":")
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

