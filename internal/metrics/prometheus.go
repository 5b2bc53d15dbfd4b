package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	routesTotal        *prometheus.CounterVec
	identityTotal      *prometheus.CounterVec
	clinicalPathTotal  *prometheus.CounterVec
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the assistant's metrics with reg.  Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		routesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_routes_total",
				Help: "Total number of turns by answering handler and routing reason",
			},
			[]string{"agent", "reason"},
		),
		identityTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_identity_outcomes_total",
				Help: "Total number of identity resolution attempts by outcome",
			},
			[]string{"outcome"},
		),
		clinicalPathTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_clinical_paths_total",
				Help: "Total number of clinical answers by context assembly path",
			},
			[]string{"path"},
		),
		completionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of completion requests by model and status",
			},
			[]string{"model", "status"},
		),
		completionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of completion requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
	}
}

// ObserveRoute records which handler answered a turn.
func (p *PrometheusRecorder) ObserveRoute(agent, reason string) {
	p.routesTotal.WithLabelValues(agent, reason).Inc()
}

// ObserveIdentity records an identity resolution outcome.
func (p *PrometheusRecorder) ObserveIdentity(outcome string) {
	p.identityTotal.WithLabelValues(outcome).Inc()
}

// ObserveClinicalPath records the clinical context path taken.
func (p *PrometheusRecorder) ObserveClinicalPath(path string) {
	p.clinicalPathTotal.WithLabelValues(path).Inc()
}

// ObserveCompletion records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveCompletion(model string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.completionsTotal.WithLabelValues(model, status).Inc()
	p.completionDuration.WithLabelValues(model).Observe(duration.Seconds())
}
