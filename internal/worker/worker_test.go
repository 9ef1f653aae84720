package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/detection"
	"github.com/securewatch/securewatch/internal/intel"
	"github.com/securewatch/securewatch/internal/metrics"
	"github.com/securewatch/securewatch/internal/models"
	"github.com/securewatch/securewatch/internal/playbook"
	"github.com/securewatch/securewatch/internal/queue"
	"github.com/securewatch/securewatch/internal/store"
)

type failingStore struct {
	*store.MemoryStore
	insertErr error
}

func (f *failingStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.MemoryStore.InsertAlert(ctx, alert)
}

func newTestWorker(t *testing.T, st store.Store) *Worker {
	t.Helper()
	logger := zap.NewNop()
	enricher := intel.NewEnricher(intel.Config{
		AbuseIPDBKeyEnv:  "TEST_WORKER_ABUSE_KEY",
		VirusTotalKeyEnv: "TEST_WORKER_VT_KEY",
	}, logger)
	engine := playbook.NewEngine(playbook.DefaultConfig(), logger)
	return New(st, enricher, engine, nil, nil, metrics.NewUnregistered(), logger)
}

func onlyAlert(t *testing.T, st store.Store) *models.Alert {
	t.Helper()
	alerts, err := st.ListAlerts(context.Background(), store.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	return alerts[0]
}

func TestHandleJobBruteForce(t *testing.T) {
	st := store.NewMemoryStore()
	w := newTestWorker(t, st)

	job := queue.Job{
		ID:           "job-1",
		EventID:      "event-1",
		SourceIP:     "203.0.113.5",
		LogType:      "ssh",
		RawLog:       "Failed login attempt for root from 203.0.113.5",
		AnomalyScore: -0.6,
		Confidence:   0.7,
	}
	require.NoError(t, w.HandleJob(context.Background(), job))

	alert := onlyAlert(t, st)
	assert.Equal(t, "Anomaly detected from 203.0.113.5", alert.Title)
	assert.Equal(t, detection.ThreatBruteForce, alert.Category)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, "ML Engine", alert.Source)
	assert.Equal(t, models.AlertStatusOpen, alert.Status)
	assert.Equal(t, "-0.6", alert.AnomalyScore)

	require.NotNil(t, alert.ThreatIntel)
	assert.Equal(t, "203.0.113.5", alert.ThreatIntel.IP)
	assert.Equal(t, intel.SourceMock, alert.ThreatIntel.Source)

	require.NotNil(t, alert.Mitre)
	assert.Equal(t, "T1110", alert.Mitre.TechniqueID)

	require.NotNil(t, alert.Playbook)
	assert.Equal(t, detection.ThreatBruteForce, alert.Playbook.ThreatType)
	assert.Len(t, alert.Playbook.Results, 3)
}

func TestHandleJobUnknownCategorySkipsPlaybook(t *testing.T) {
	st := store.NewMemoryStore()
	w := newTestWorker(t, st)

	job := queue.Job{
		ID:         "job-1",
		EventID:    "event-1",
		SourceIP:   "10.0.0.4",
		RawLog:     "User admin logged in successfully",
		Confidence: 0.55,
	}
	require.NoError(t, w.HandleJob(context.Background(), job))

	alert := onlyAlert(t, st)
	assert.Equal(t, detection.ThreatUnknown, alert.Category)
	assert.Nil(t, alert.Mitre)
	assert.Nil(t, alert.Playbook)
	require.NotNil(t, alert.ThreatIntel)
}

func TestHandleJobMissingSourceIP(t *testing.T) {
	st := store.NewMemoryStore()
	w := newTestWorker(t, st)

	job := queue.Job{ID: "job-1", EventID: "event-1", RawLog: "something odd", Confidence: 0.3}
	require.NoError(t, w.HandleJob(context.Background(), job))

	alert := onlyAlert(t, st)
	assert.Equal(t, "Anomaly detected from unknown", alert.Title)
	assert.Nil(t, alert.ThreatIntel)
}

func TestHandleJobInsertFailure(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore(), insertErr: errors.New("db down")}
	w := newTestWorker(t, st)

	err := w.HandleJob(context.Background(), queue.Job{ID: "job-1", RawLog: "Failed login"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	alerts, err := st.ListAlerts(context.Background(), store.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestHandleJobTruncatesDescription(t *testing.T) {
	st := store.NewMemoryStore()
	w := newTestWorker(t, st)

	long := strings.Repeat("x", 500)
	require.NoError(t, w.HandleJob(context.Background(), queue.Job{ID: "job-1", RawLog: long}))

	alert := onlyAlert(t, st)
	assert.True(t, strings.HasPrefix(alert.Description, "Suspicious activity detected: "))
	assert.Len(t, alert.Description, len("Suspicious activity detected: ")+200)
}
