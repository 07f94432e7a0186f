// Package metrics exposes Prometheus counters for the scan pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/calder/phishscan/internal/core"
)

// Recorder implements core.MetricsRecorder on a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	llmAssists   *prometheus.CounterVec
	llmOverrides *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry, including the
// standard Go runtime and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phishscan",
			Name:      "scans_total",
			Help:      "Completed scans by verdict.",
		}, []string{"verdict"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "phishscan",
			Name:      "scan_duration_seconds",
			Help:      "End-to-end scan latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		llmAssists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phishscan",
			Name:      "llm_assists_total",
			Help:      "LLM second-opinion calls by availability.",
		}, []string{"enabled"}),
		llmOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phishscan",
			Name:      "llm_overrides_total",
			Help:      "Fusion overrides triggered by the LLM, by rule.",
		}, []string{"rule"}),
	}

	registry.MustRegister(r.scansTotal, r.scanDuration, r.llmAssists, r.llmOverrides)
	return r
}

// RecordScan counts a completed scan and observes its latency.
func (r *Recorder) RecordScan(verdict core.Verdict, duration time.Duration) {
	r.scansTotal.WithLabelValues(string(verdict)).Inc()
	r.scanDuration.Observe(duration.Seconds())
}

// RecordLlmAssist counts an LLM consultation. overrideRule is empty when
// the LLM opinion did not change the fused verdict.
func (r *Recorder) RecordLlmAssist(enabled bool, overrideRule string) {
	if enabled {
		r.llmAssists.WithLabelValues("true").Inc()
	} else {
		r.llmAssists.WithLabelValues("false").Inc()
	}
	if overrideRule != "" {
		r.llmOverrides.WithLabelValues(overrideRule).Inc()
	}
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
