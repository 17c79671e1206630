// Package metrics exposes the oracle's Prometheus gauges/counters and
// satisfies the observer interfaces pkg/orchestrator and pkg/llm define
// (cycle duration, probe outcomes, chain writes, slashes, LLM cache
// hit/miss).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics wraps the oracle's Prometheus collectors. A nil *Metrics is not
// usable; pass one built by New to orchestrator.New and llm.Client.WithMetrics.
type Metrics struct {
	cycleDuration prometheus.Histogram
	probeOutcomes *prometheus.CounterVec
	chainWrites   *prometheus.CounterVec
	slashesFired  prometheus.Counter
	llmCache      *prometheus.CounterVec
}

// New registers and returns the oracle's metric collectors against the
// default Prometheus registry.
func New() *Metrics {
	return &Metrics{
		cycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "oracle_cycle_duration_seconds",
			Help:    "Duration of one full monitoring cycle across all discovered agents",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		probeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_probe_outcomes_total",
			Help: "Total probes, partitioned by success",
		}, []string{"outcome"}),
		chainWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_chain_writes_total",
			Help: "Total on-chain writes, partitioned by kind and outcome",
		}, []string{"kind", "outcome"}),
		slashesFired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oracle_slashes_fired_total",
			Help: "Total reportSuspicious calls fired after the threshold was reached",
		}),
		llmCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_llm_cache_results_total",
			Help: "LLM response cache lookups, partitioned by hit/miss",
		}, []string{"result"}),
	}
}

// ObserveCycle satisfies orchestrator.Metrics.
func (m *Metrics) ObserveCycle(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}

// ObserveProbe satisfies orchestrator.Metrics.
func (m *Metrics) ObserveProbe(success bool) {
	if success {
		m.probeOutcomes.WithLabelValues("success").Inc()
		return
	}
	m.probeOutcomes.WithLabelValues("failure").Inc()
}

// ObserveChainWrite satisfies orchestrator.Metrics.
func (m *Metrics) ObserveChainWrite(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.chainWrites.WithLabelValues(kind, outcome).Inc()
}

// ObserveSlash satisfies orchestrator.Metrics.
func (m *Metrics) ObserveSlash() {
	m.slashesFired.Inc()
}

// ObserveCacheResult satisfies llm.CacheObserver.
func (m *Metrics) ObserveCacheResult(hit bool) {
	if hit {
		m.llmCache.WithLabelValues("hit").Inc()
		return
	}
	m.llmCache.WithLabelValues("miss").Inc()
}
