package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ytqdgo/internal/download"
)

// Metrics tracks queue depth and download outcomes. It plugs into the
// controller as a notifier.
type Metrics struct {
	registry *prometheus.Registry
	queued   prometheus.Gauge
	progress prometheus.Gauge
	finished *prometheus.CounterVec
	attempts prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytqd",
			Name:      "queue_length",
			Help:      "Entries waiting in the download queue.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ytqd",
			Name:      "active_progress_percent",
			Help:      "Progress of the active download.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ytqd",
			Name:      "downloads_total",
			Help:      "Finished downloads by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ytqd",
			Name:      "download_attempts",
			Help:      "Attempts used per finished download.",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
	}
	m.registry.MustRegister(
		m.queued, m.progress, m.finished, m.attempts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) QueueChanged(length int) {
	m.queued.Set(float64(length))
}

func (m *Metrics) Progress(p download.Progress) {
	m.progress.Set(float64(p.Percent))
}

func (m *Metrics) Status(string) {}

func (m *Metrics) Finished(r download.Report) {
	outcome := "failed"
	switch {
	case r.Success:
		outcome = "completed"
	case r.Cancelled:
		outcome = "cancelled"
	}
	m.finished.WithLabelValues(outcome).Inc()
	m.attempts.Observe(float64(r.Attempts))
	m.progress.Set(0)
}
