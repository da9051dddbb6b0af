package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	generationAttempts   *prometheus.CounterVec
	pixelsProcessedTotal prometheus.Counter
	bytesStoredTotal     prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconpress_worker_jobs_total",
			Help: "Total icon generation jobs by output format and final status.",
		}, []string{"format", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iconpress_worker_job_duration_seconds",
			Help:    "Total processing duration for each generation job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iconpress_worker_active_jobs",
			Help: "Current number of active generation jobs in the worker.",
		}),
		generationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconpress_worker_generation_upstream_total",
			Help: "Total calls to the image generation upstream by outcome.",
		}, []string{"outcome"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconpress_usage_pixels_processed_total",
			Help: "Total pixels processed across all successful jobs.",
		}),
		bytesStoredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconpress_usage_bytes_stored_total",
			Help: "Total artifact bytes written to object storage.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconpress_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful jobs.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.generationAttempts,
		m.pixelsProcessedTotal,
		m.bytesStoredTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
