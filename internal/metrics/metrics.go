// Package metrics exposes Prometheus instrumentation for the detection
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	EventsIngested     *prometheus.CounterVec
	AnomaliesDetected  prometheus.Counter
	JobsDispatched     prometheus.Counter
	JobsFailed         prometheus.Counter
	AlertsCreated      *prometheus.CounterVec
	EnrichmentDuration prometheus.Histogram
	PlaybookActions    *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
}

// New registers the pipeline collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securewatch_events_ingested_total",
			Help: "Ingested log events by severity.",
		}, []string{"severity"}),
		AnomaliesDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "securewatch_anomalies_detected_total",
			Help: "Events flagged anomalous by the scorer.",
		}),
		JobsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "securewatch_alert_jobs_dispatched_total",
			Help: "Alert follow-up jobs handed to the task queue.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "securewatch_alert_jobs_failed_total",
			Help: "Alert jobs that failed and were left to queue retry.",
		}),
		AlertsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securewatch_alerts_created_total",
			Help: "Alerts created by the worker, by threat category.",
		}, []string{"category"}),
		EnrichmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "securewatch_enrichment_duration_seconds",
			Help:    "Latency of threat intel reputation lookups.",
			Buckets: prometheus.DefBuckets,
		}),
		PlaybookActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securewatch_playbook_actions_total",
			Help: "Playbook actions executed, by action and status.",
		}, []string{"action", "status"}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "securewatch_ingest_duration_seconds",
			Help:    "Latency of the synchronous ingestion path.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// NewUnregistered builds metrics on a private registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
