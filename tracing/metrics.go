package tracing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for GET /metrics, supplementing the relational
// aggregation queries the monitoring dashboard uses. Grounded on
// vasic-digital-SuperAgent's metrics registration style (package-level
// promauto collectors registered at init, labeled by span/query-type).
var (
	spanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vexora_span_duration_seconds",
		Help:    "Duration of each named pipeline span.",
		Buckets: prometheus.DefBuckets,
	}, []string{"span"})

	queryTypeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vexora_query_type_total",
		Help: "Count of requests by router-classified query type.",
	}, []string{"query_type"})

	strategyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vexora_retrieval_strategy_total",
		Help: "Count of requests by retrieval/graph strategy used.",
	}, []string{"strategy"})

	tracesSampled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vexora_traces_sampled_total",
		Help: "Count of traces selected by the sampler for persistence.",
	})
)

// RecordSpan observes one span's duration under its name label.
func RecordSpan(name SpanName, d time.Duration) {
	spanDuration.WithLabelValues(string(name)).Observe(d.Seconds())
}

// RecordRequest increments the query-type and strategy counters for
// one finished request.
func RecordRequest(queryType, strategy string) {
	if queryType != "" {
		queryTypeTotal.WithLabelValues(queryType).Inc()
	}
	if strategy != "" {
		strategyTotal.WithLabelValues(strategy).Inc()
	}
}

// recordSampled notes that EndTrace persisted a trace.
func recordSampled() {
	tracesSampled.Inc()
}
