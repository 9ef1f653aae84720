// Package pipeline contains the synchronous ingestion coordinator: score an
// incoming event, persist it, feed the fire-and-forget sinks, and dispatch
// follow-up work for anomalies without blocking the caller on it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/broadcast"
	"github.com/securewatch/securewatch/internal/detection"
	"github.com/securewatch/securewatch/internal/metrics"
	"github.com/securewatch/securewatch/internal/models"
	"github.com/securewatch/securewatch/internal/queue"
	"github.com/securewatch/securewatch/internal/search"
	"github.com/securewatch/securewatch/internal/store"
)

// Submission is one event handed to the ingestion path.
type Submission struct {
	SourceIP      string
	DestinationIP string
	LogType       string
	RawLog        string
	Message       string
}

// Result is the synchronous outcome: the persisted event view and the
// scoring verdict.
type Result struct {
	Event   *models.EventRecord
	Verdict detection.Verdict
}

// Coordinator orchestrates the ingestion path. Stateless per call and safe
// for concurrent use across events.
type Coordinator struct {
	detector    detection.Scorer
	store       store.Store
	dispatcher  queue.Dispatcher
	indexer     search.Indexer
	broadcaster *broadcast.Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewCoordinator wires the ingestion path. broadcaster may be nil; indexer
// must not be (use search.NopIndexer to disable indexing).
func NewCoordinator(detector detection.Scorer, st store.Store, dispatcher queue.Dispatcher,
	indexer search.Indexer, broadcaster *broadcast.Broadcaster,
	m *metrics.Metrics, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		detector:    detector,
		store:       st,
		dispatcher:  dispatcher,
		indexer:     indexer,
		broadcaster: broadcaster,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit ingests one event: extract features, score, persist the labeled
// record, then index, broadcast, and (for anomalies) dispatch the follow-up
// job. The call either fully succeeds or fails with nothing stored; sink and
// dispatch failures are logged, never surfaced.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (*Result, error) {
	start := c.now()
	ts := start.UTC()

	features := detection.ExtractFeatures(detection.RawEvent{
		SourceIP:      sub.SourceIP,
		DestinationIP: sub.DestinationIP,
		RawLog:        sub.RawLog,
		Timestamp:     ts,
	})
	verdict := c.detector.Score(features)

	severity := models.SeverityLow
	if verdict.IsAnomaly {
		severity = detection.SeverityFromConfidence(verdict.Confidence)
	}

	message := sub.Message
	if message == "" {
		message = sub.RawLog
	}

	ev := &models.EventRecord{
		ID:            uuid.NewString(),
		SourceIP:      sub.SourceIP,
		DestinationIP: sub.DestinationIP,
		Timestamp:     ts,
		LogType:       sub.LogType,
		RawLog:        sub.RawLog,
		Message:       message,
		Severity:      severity,
		IsAnomaly:     verdict.IsAnomaly,
		AnomalyScore:  detection.FormatScore(verdict.AnomalyScore),
	}

	if err := c.store.InsertEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("persisting event: %w", err)
	}

	c.metrics.EventsIngested.WithLabelValues(string(severity)).Inc()
	if verdict.IsAnomaly {
		c.metrics.AnomaliesDetected.Inc()
	}

	if err := c.indexer.Index(ctx, ev); err != nil {
		c.logger.Warn("Search indexing failed",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
	}
	c.broadcaster.NewLog(ev)

	if verdict.IsAnomaly {
		c.dispatch(ctx, ev, sub, verdict)
	}

	c.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return &Result{Event: ev, Verdict: verdict}, nil
}

// dispatch hands the follow-up job to the task queue. A dispatch failure
// must not fail the ingestion call.
func (c *Coordinator) dispatch(ctx context.Context, ev *models.EventRecord, sub Submission, verdict detection.Verdict) {
	job := queue.JobFromVerdict(uuid.NewString(), ev.ID,
		sub.SourceIP, sub.DestinationIP, sub.LogType, sub.RawLog, verdict)

	if err := c.dispatcher.Dispatch(ctx, job); err != nil {
		c.logger.Error("Alert job dispatch failed",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
		return
	}
	c.metrics.JobsDispatched.Inc()
	c.logger.Info("Alert job dispatched",
		zap.String("event_id", ev.ID),
		zap.String("job_id", job.ID),
		zap.Float64("confidence", verdict.Confidence),
	)
}
