// Package metrics exposes engine counters as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the engine's stats sink on a private registry so
// tests can create collectors freely without global-registry collisions.
type Collector struct {
	reg *prometheus.Registry

	eventsPosted     *prometheus.CounterVec
	batchesCommitted prometheus.Counter
	batchesFailed    prometheus.Counter
	batchAppends     prometheus.Histogram
	activeJobs       prometheus.Gauge
	runningJobs      prometheus.Gauge
}

// NewCollector creates and registers the engine metric set.
func NewCollector() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		eventsPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmanager_events_posted_total",
			Help: "Total number of events posted, by event name",
		}, []string{"name"}),
		batchesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobmanager_batches_committed_total",
			Help: "Total number of eventlog batches committed",
		}),
		batchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobmanager_batches_failed_total",
			Help: "Total number of eventlog batch commit failures",
		}),
		batchAppends: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobmanager_batch_appends",
			Help:    "Number of KVS appends per committed batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobmanager_active_jobs",
			Help: "Current number of jobs in the active index",
		}),
		runningJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobmanager_running_jobs",
			Help: "Current number of jobs in run or cleanup state",
		}),
	}
	c.reg.MustRegister(c.eventsPosted, c.batchesCommitted, c.batchesFailed,
		c.batchAppends, c.activeJobs, c.runningJobs)
	return c
}

// EventPosted counts one posted event.
func (c *Collector) EventPosted(name string) {
	c.eventsPosted.WithLabelValues(name).Inc()
}

// BatchCommitted counts one committed batch and its append size.
func (c *Collector) BatchCommitted(appends int) {
	c.batchesCommitted.Inc()
	c.batchAppends.Observe(float64(appends))
}

// BatchFailed counts one fatal commit failure.
func (c *Collector) BatchFailed() {
	c.batchesFailed.Inc()
}

// ActiveJobs records the active-index size.
func (c *Collector) ActiveJobs(n int) {
	c.activeJobs.Set(float64(n))
}

// RunningJobs records the running-set size.
func (c *Collector) RunningJobs(n int) {
	c.runningJobs.Set(float64(n))
}

// Handler returns the scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
