// Package worker consumes alert jobs from the task queue and materializes
// alerts: classify the threat, persist the alert, enrich it with reputation
// data, and run the response playbook. Enrichment and playbook failures
// leave the alert in place as partial success.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/broadcast"
	"github.com/securewatch/securewatch/internal/detection"
	"github.com/securewatch/securewatch/internal/intel"
	"github.com/securewatch/securewatch/internal/metrics"
	"github.com/securewatch/securewatch/internal/models"
	"github.com/securewatch/securewatch/internal/playbook"
	"github.com/securewatch/securewatch/internal/queue"
	"github.com/securewatch/securewatch/internal/store"
)

const (
	alertSource       = "ML Engine"
	descriptionMaxLen = 200
	descriptionPrefix = "Suspicious activity detected: "
)

// Worker is the asynchronous execution context for alert jobs.
type Worker struct {
	store       store.Store
	enricher    *intel.Enricher
	engine      *playbook.Engine
	broadcaster *broadcast.Broadcaster
	redeliver   queue.Dispatcher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a worker. broadcaster and redeliver may be nil; without a
// redeliver dispatcher a failed job is dropped after logging.
func New(st store.Store, enricher *intel.Enricher, engine *playbook.Engine,
	broadcaster *broadcast.Broadcaster, redeliver queue.Dispatcher,
	m *metrics.Metrics, logger *zap.Logger) *Worker {
	return &Worker{
		store:       st,
		enricher:    enricher,
		engine:      engine,
		broadcaster: broadcaster,
		redeliver:   redeliver,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Run consumes jobs until the context is cancelled. Each popped job is
// handled start to finish on this goroutine; a handler error re-enqueues the
// job so delivery stays at-least-once.
func (w *Worker) Run(ctx context.Context, consumer queue.Consumer) {
	w.logger.Info("Alert worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("Alert worker stopped")
			return
		}

		job, err := consumer.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Warn("Queue pop failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := w.HandleJob(ctx, *job); err != nil {
			w.metrics.JobsFailed.Inc()
			w.logger.Error("Alert job failed",
				zap.String("job_id", job.ID),
				zap.String("event_id", job.EventID),
				zap.Error(err),
			)
			w.requeue(ctx, *job)
		}
	}
}

func (w *Worker) requeue(ctx context.Context, job queue.Job) {
	if w.redeliver == nil {
		return
	}
	if err := w.redeliver.Dispatch(ctx, job); err != nil {
		w.logger.Error("Job redelivery failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

// HandleJob runs the full alert materialization for one job. Every
// invocation creates one new alert; redelivered jobs create duplicates
// rather than silently deduplicating.
func (w *Worker) HandleJob(ctx context.Context, job queue.Job) error {
	threatType := detection.ClassifyThreat(job.RawLog)
	severity := detection.SeverityFromConfidence(job.Confidence)

	alert := &models.Alert{
		ID:           uuid.NewString(),
		Title:        fmt.Sprintf("Anomaly detected from %s", sourceOrUnknown(job.SourceIP)),
		Description:  descriptionPrefix + truncate(job.RawLog, descriptionMaxLen),
		Severity:     severity,
		Source:       alertSource,
		SourceIP:     job.SourceIP,
		Timestamp:    w.now().UTC(),
		Status:       models.AlertStatusOpen,
		Category:     threatType,
		Mitre:        detection.TechniqueForThreat(threatType),
		AnomalyScore: detection.FormatScore(job.AnomalyScore),
	}

	// The alert insert is the unit of work that must succeed; everything
	// after it is best-effort and leaves the alert as partial success.
	if err := w.store.InsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	w.metrics.AlertsCreated.WithLabelValues(threatType).Inc()
	w.broadcaster.NewAlert(alert)

	w.logger.Info("Alert created",
		zap.String("alert_id", alert.ID),
		zap.String("event_id", job.EventID),
		zap.String("category", threatType),
		zap.String("severity", string(severity)),
	)

	w.enrich(ctx, alert, job.SourceIP)

	if threatType != detection.ThreatUnknown {
		w.runPlaybook(ctx, alert, threatType, job)
	}

	return nil
}

func (w *Worker) enrich(ctx context.Context, alert *models.Alert, sourceIP string) {
	if sourceIP == "" {
		return
	}

	start := w.now()
	rec := w.enricher.CheckIPReputation(ctx, sourceIP)
	w.metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())

	if _, err := w.store.UpdateAlert(ctx, alert.ID, store.AlertUpdate{ThreatIntel: &rec}); err != nil {
		w.logger.Warn("Failed to attach threat intel",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return
	}
	alert.ThreatIntel = &rec
}

func (w *Worker) runPlaybook(ctx context.Context, alert *models.Alert, threatType string, job queue.Job) {
	result := w.engine.Execute(ctx, threatType, playbook.ExecutionContext{
		SourceIP: job.SourceIP,
		AlertID:  alert.ID,
		RawLog:   job.RawLog,
		LogType:  job.LogType,
	})
	for _, res := range result.Results {
		w.metrics.PlaybookActions.WithLabelValues(res.Action, res.Status).Inc()
	}

	if _, err := w.store.UpdateAlert(ctx, alert.ID, store.AlertUpdate{Playbook: &result}); err != nil {
		w.logger.Warn("Failed to attach playbook result",
			zap.String("alert_id", alert.ID),
			zap.Error(err),
		)
		return
	}
	alert.Playbook = &result
}

func sourceOrUnknown(ip string) string {
	if ip == "" {
		return "unknown"
	}
	return ip
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
