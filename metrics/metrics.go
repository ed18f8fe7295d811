// Package metrics exposes Prometheus collectors for the pipelines and the
// HTTP API. Every method is safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "condolex"

// Metrics groups the collectors registered by New
type Metrics struct {
	pipelineRuns    *prometheus.CounterVec
	nodeExecutions  *prometheus.CounterVec
	gradedDocuments *prometheus.CounterVec
	clauseResults   *prometheus.CounterVec
	modelLatency    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline invocations by pipeline and outcome.",
		}, []string{"pipeline", "outcome"}),
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_node_executions_total",
			Help:      "State machine node executions.",
		}, []string{"pipeline", "node"}),
		gradedDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graded_documents_total",
			Help:      "Documents evaluated by the relevance scorer.",
		}, []string{"origin", "verdict"}),
		clauseResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clause_results_total",
			Help:      "Analyzed clauses by verdict.",
		}, []string{"verdict"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of Gemini calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_cache_lookups_total",
			Help:      "Answer cache lookups by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.pipelineRuns,
			m.nodeExecutions,
			m.gradedDocuments,
			m.clauseResults,
			m.modelLatency,
			m.httpRequests,
			m.httpDuration,
			m.cacheLookups,
		)
	}
	return m
}

// PipelineRun counts one finished pipeline invocation
func (m *Metrics) PipelineRun(pipeline string, err error) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(pipeline, outcome(err)).Inc()
}

// NodeExecuted counts one state machine node execution
func (m *Metrics) NodeExecuted(pipeline, node string) {
	if m == nil {
		return
	}
	m.nodeExecutions.WithLabelValues(pipeline, node).Inc()
}

// DocumentGraded counts one relevance verdict
func (m *Metrics) DocumentGraded(origin string, relevant bool) {
	if m == nil {
		return
	}
	verdict := "rejected"
	if relevant {
		verdict = "kept"
	}
	m.gradedDocuments.WithLabelValues(origin, verdict).Inc()
}

// ClauseAnalyzed counts one clause verdict
func (m *Metrics) ClauseAnalyzed(illegal, fallback bool) {
	if m == nil {
		return
	}
	verdict := "conform"
	switch {
	case fallback:
		verdict = "fallback"
	case illegal:
		verdict = "potentially_illegal"
	}
	m.clauseResults.WithLabelValues(verdict).Inc()
}

// ObserveModelCall records the latency of a model call. Its signature
// matches llm.Observer.
func (m *Metrics) ObserveModelCall(operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.modelLatency.WithLabelValues(operation, outcome(err)).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CacheLookup counts an answer cache hit or miss
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
