// Package metrics exposes pipeline events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/nutriload/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nutriload"

// Collector implements core.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	activeRuns       prometheus.Gauge
	runsTotal        *prometheus.CounterVec
	chunksCommitted  prometheus.Counter
	chunksFailed     prometheus.Counter
	recordsCommitted prometheus.Counter
	tokensDegraded   *prometheus.CounterVec
	rowsDegraded     prometheus.Counter
	chunkDuration    prometheus.Histogram
	runDuration      prometheus.Histogram
	lastSuccess      prometheus.Gauge
}

// NewCollector registers the pipeline metrics on reg. Use
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewCollector(reg *prometheus.Registry) *Collector {
	f := promauto.With(reg)
	return &Collector{
		gatherer: reg,
		activeRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_runs",
			Help: "Ingestion runs currently executing.",
		}),
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Finished ingestion runs by terminal status.",
		}, []string{"status"}),
		chunksCommitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_committed_total",
			Help: "Chunks committed to the food store.",
		}),
		chunksFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "chunks_failed_total",
			Help: "Chunk transactions that were rolled back.",
		}),
		recordsCommitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_committed_total",
			Help: "Food records committed to the food store.",
		}),
		tokensDegraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tokens_degraded_total",
			Help: "Numeric tokens read as 0, by field.",
		}, []string{"field"}),
		rowsDegraded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_degraded_total",
			Help: "Records with at least one degraded numeric token.",
		}),
		chunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "chunk_flush_seconds",
			Help:    "Time to commit one chunk.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_seconds",
			Help:    "Duration of finished runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last COMPLETED run.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) RunStarted() { c.activeRuns.Inc() }

func (c *Collector) ChunkCommitted(records int, elapsed time.Duration) {
	c.chunksCommitted.Inc()
	c.recordsCommitted.Add(float64(records))
	c.chunkDuration.Observe(elapsed.Seconds())
}

func (c *Collector) ChunkFailed(elapsed time.Duration) {
	c.chunksFailed.Inc()
	c.chunkDuration.Observe(elapsed.Seconds())
}

func (c *Collector) TokenDegraded(field string) {
	c.tokensDegraded.WithLabelValues(field).Inc()
}

func (c *Collector) RunFinished(res core.RunResult) {
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(string(res.Status)).Inc()
	c.rowsDegraded.Add(float64(res.RowsDegraded))
	c.runDuration.Observe(res.Duration().Seconds())
	if res.Status == core.StatusCompleted {
		c.lastSuccess.Set(float64(res.FinishedAt.Unix()))
	}
}
