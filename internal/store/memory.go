package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/securewatch/securewatch/internal/models"
)

// MemoryStore is a thread-safe in-memory Store used for tests and for
// running without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]*models.EventRecord
	alerts    map[string]*models.Alert
	incidents map[string]*models.Incident
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]*models.EventRecord),
		alerts:    make(map[string]*models.Alert),
		incidents: make(map[string]*models.Incident),
	}
}

func (s *MemoryStore) InsertEvent(_ context.Context, ev *models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*models.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) ListEvents(_ context.Context, filter EventFilter) ([]*models.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.EventRecord, 0, len(s.events))
	for _, ev := range s.events {
		if filter.Severity != nil && ev.Severity != *filter.Severity {
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *alert
	s.alerts[alert.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *alert
	return &cp, nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, filter AlertFilter) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if filter.Severity != nil && alert.Severity != *filter.Severity {
			continue
		}
		if filter.Status != nil && alert.Status != *filter.Status {
			continue
		}
		if filter.Resolved != nil && alert.IsResolved != *filter.Resolved {
			continue
		}
		cp := *alert
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) UpdateAlert(_ context.Context, id string, update AlertUpdate) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}

	if update.Status != nil {
		alert.Status = *update.Status
	}
	if update.AssignedTo != nil {
		alert.AssignedTo = *update.AssignedTo
	}
	if update.IsResolved != nil {
		alert.IsResolved = *update.IsResolved
		if *update.IsResolved {
			alert.Status = models.AlertStatusResolved
		}
	}
	if update.ThreatIntel != nil {
		intel := *update.ThreatIntel
		alert.ThreatIntel = &intel
	}
	if update.Playbook != nil {
		pb := *update.Playbook
		alert.Playbook = &pb
	}

	cp := *alert
	return &cp, nil
}

func (s *MemoryStore) AlertStats(_ context.Context) (AlertStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats AlertStats
	for _, alert := range s.alerts {
		stats.Total++
		if !alert.IsResolved {
			stats.Unresolved++
		}
		switch alert.Severity {
		case models.SeverityCritical:
			stats.Critical++
		case models.SeverityHigh:
			stats.High++
		case models.SeverityMedium:
			stats.Medium++
		case models.SeverityLow:
			stats.Low++
		}
	}
	return stats, nil
}

func (s *MemoryStore) InsertIncident(_ context.Context, inc *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inc
	s.incidents[inc.ID] = &cp
	return nil
}

func (s *MemoryStore) ListIncidents(_ context.Context, filter IncidentFilter) ([]*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		if filter.Status != nil && inc.Status != *filter.Status {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Offset, filter.Limit), nil
}

func (s *MemoryStore) UpdateIncidentStatus(_ context.Context, id string, status models.IncidentStatus) (*models.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, ErrNotFound
	}
	inc.Status = status
	inc.UpdatedAt = time.Now().UTC()
	cp := *inc
	return &cp, nil
}

func (s *MemoryStore) Close() error { return nil }

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ Store = (*MemoryStore)(nil)
