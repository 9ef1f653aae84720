// Package store persists SecureWatch entities. The Postgres implementation
// backs production deployments; the in-memory implementation backs tests and
// store-less development runs.
package store

import (
	"context"
	"errors"

	"github.com/securewatch/securewatch/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// EventFilter narrows event listings. A nil Severity means no filter.
type EventFilter struct {
	Severity *models.Severity
	Limit    int
	Offset   int
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Severity *models.Severity
	Status   *models.AlertStatus
	Resolved *bool
	Limit    int
	Offset   int
}

// IncidentFilter narrows incident listings.
type IncidentFilter struct {
	Status *models.IncidentStatus
	Limit  int
	Offset int
}

// AlertUpdate carries the mutable alert fields; nil means leave unchanged.
type AlertUpdate struct {
	Status      *models.AlertStatus
	AssignedTo  *string
	IsResolved  *bool
	ThreatIntel *models.ReputationRecord
	Playbook    *models.PlaybookResult
}

// AlertStats summarizes the alert table.
type AlertStats struct {
	Total      int `json:"total_alerts"`
	Unresolved int `json:"unresolved"`
	Critical   int `json:"critical"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
}

// Store is the entity store boundary. Writes are durable on return.
type Store interface {
	InsertEvent(ctx context.Context, ev *models.EventRecord) error
	GetEvent(ctx context.Context, id string) (*models.EventRecord, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*models.EventRecord, error)

	InsertAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error)
	UpdateAlert(ctx context.Context, id string, update AlertUpdate) (*models.Alert, error)
	AlertStats(ctx context.Context) (AlertStats, error)

	InsertIncident(ctx context.Context, inc *models.Incident) error
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*models.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) (*models.Incident, error)

	Close() error
}
