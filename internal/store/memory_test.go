package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securewatch/securewatch/internal/models"
)

func seedAlert(t *testing.T, s *MemoryStore, id string, sev models.Severity, ts time.Time) {
	t.Helper()
	err := s.InsertAlert(context.Background(), &models.Alert{
		ID:        id,
		Title:     "test alert " + id,
		Severity:  sev,
		Status:    models.AlertStatusOpen,
		Timestamp: ts,
	})
	require.NoError(t, err)
}

func TestMemoryStoreEventRoundtrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ev := &models.EventRecord{
		ID:        "event-1",
		SourceIP:  "203.0.113.5",
		Timestamp: time.Now().UTC(),
		LogType:   "ssh",
		Severity:  models.SeverityHigh,
		IsAnomaly: true,
	}
	require.NoError(t, s.InsertEvent(ctx, ev))

	got, err := s.GetEvent(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, ev, got)

	// The returned record is a copy; mutating it must not touch the store.
	got.Severity = models.SeverityLow
	again, err := s.GetEvent(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, again.Severity)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListEventsFilterAndOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		sev := models.SeverityLow
		if i == 1 {
			sev = models.SeverityCritical
		}
		require.NoError(t, s.InsertEvent(ctx, &models.EventRecord{
			ID:        fmt.Sprintf("event-%d", i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Severity:  sev,
		}))
	}

	all, err := s.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "event-2", all[0].ID)
	assert.Equal(t, "event-0", all[2].ID)

	crit := models.SeverityCritical
	filtered, err := s.ListEvents(ctx, EventFilter{Severity: &crit})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "event-1", filtered[0].ID)
}

func TestMemoryStoreListAlertsPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		seedAlert(t, s, fmt.Sprintf("alert-%d", i), models.SeverityMedium, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := s.ListAlerts(ctx, AlertFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "alert-3", page[0].ID)
	assert.Equal(t, "alert-2", page[1].ID)

	past, err := s.ListAlerts(ctx, AlertFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestMemoryStoreUpdateAlertResolveSetsStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedAlert(t, s, "alert-1", models.SeverityHigh, time.Now().UTC())

	resolved := true
	got, err := s.UpdateAlert(ctx, "alert-1", AlertUpdate{IsResolved: &resolved})
	require.NoError(t, err)
	assert.True(t, got.IsResolved)
	assert.Equal(t, models.AlertStatusResolved, got.Status)
}

func TestMemoryStoreUpdateAlertEnrichment(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedAlert(t, s, "alert-1", models.SeverityHigh, time.Now().UTC())

	intel := models.ReputationRecord{IP: "203.0.113.5", IsMalicious: true, AbuseScore: 75}
	pb := models.PlaybookResult{ThreatType: "brute_force", Status: "completed"}

	got, err := s.UpdateAlert(ctx, "alert-1", AlertUpdate{ThreatIntel: &intel, Playbook: &pb})
	require.NoError(t, err)
	require.NotNil(t, got.ThreatIntel)
	assert.Equal(t, 75, got.ThreatIntel.AbuseScore)
	require.NotNil(t, got.Playbook)
	assert.Equal(t, "brute_force", got.Playbook.ThreatType)

	_, err = s.UpdateAlert(ctx, "missing", AlertUpdate{ThreatIntel: &intel})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreAlertStats(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedAlert(t, s, "alert-1", models.SeverityCritical, now)
	seedAlert(t, s, "alert-2", models.SeverityHigh, now)
	seedAlert(t, s, "alert-3", models.SeverityHigh, now)
	seedAlert(t, s, "alert-4", models.SeverityLow, now)

	resolved := true
	_, err := s.UpdateAlert(ctx, "alert-4", AlertUpdate{IsResolved: &resolved})
	require.NoError(t, err)

	stats, err := s.AlertStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Unresolved)
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 2, stats.High)
	assert.Equal(t, 0, stats.Medium)
	assert.Equal(t, 1, stats.Low)
}

func TestMemoryStoreIncidentLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.InsertIncident(ctx, &models.Incident{
		ID:        "inc-1",
		Title:     "suspicious logins",
		Severity:  models.SeverityHigh,
		Status:    models.IncidentStatusOpen,
		CreatedAt: time.Now().UTC(),
	}))

	open := models.IncidentStatusOpen
	list, err := s.ListIncidents(ctx, IncidentFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := s.UpdateIncidentStatus(ctx, "inc-1", models.IncidentStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.IncidentStatusResolved, got.Status)
	assert.False(t, got.UpdatedAt.IsZero())

	list, err = s.ListIncidents(ctx, IncidentFilter{Status: &open})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.UpdateIncidentStatus(ctx, "missing", models.IncidentStatusClosed)
	assert.ErrorIs(t, err, ErrNotFound)
}
