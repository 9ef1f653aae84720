// Package models defines the core SecureWatch entities: ingested log events,
// alerts raised by the detection pipeline, and incidents opened by operators.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the ordinal urgency of an event or alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparisons (LOW < MEDIUM < HIGH < CRITICAL).
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the severity, -1 if unknown.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// ParseSeverity converts a case-insensitive severity name into a Severity.
// Callers on read paths may ignore the error; write paths must reject it.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "open"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusResolved      AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// ParseAlertStatus converts a case-insensitive status name into an AlertStatus.
func ParseAlertStatus(s string) (AlertStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return AlertStatusOpen, nil
	case "investigating":
		return AlertStatusInvestigating, nil
	case "resolved":
		return AlertStatusResolved, nil
	case "false_positive", "false positive":
		return AlertStatusFalsePositive, nil
	default:
		return "", fmt.Errorf("unknown alert status %q", s)
	}
}

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusResolved      IncidentStatus = "resolved"
	IncidentStatusClosed        IncidentStatus = "closed"
)

// ParseIncidentStatus converts a case-insensitive status name into an IncidentStatus.
func ParseIncidentStatus(s string) (IncidentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return IncidentStatusOpen, nil
	case "investigating":
		return IncidentStatusInvestigating, nil
	case "resolved":
		return IncidentStatusResolved, nil
	case "closed":
		return IncidentStatusClosed, nil
	default:
		return "", fmt.Errorf("unknown incident status %q", s)
	}
}

// EventRecord is one ingested observation. Immutable once persisted.
type EventRecord struct {
	ID            string    `json:"id"`
	SourceIP      string    `json:"source_ip"`
	DestinationIP string    `json:"destination_ip"`
	Timestamp     time.Time `json:"timestamp"`
	LogType       string    `json:"log_type"`
	RawLog        string    `json:"raw_log"`
	Message       string    `json:"message"`
	Severity      Severity  `json:"severity"`
	IsAnomaly     bool      `json:"is_anomaly"`
	AnomalyScore  string    `json:"anomaly_score,omitempty"`
}

// ReputationRecord is threat intelligence about a source address.
type ReputationRecord struct {
	IP          string `json:"ip"`
	IsMalicious bool   `json:"is_malicious"`
	AbuseScore  int    `json:"abuse_score"`
	Country     string `json:"country"`
	Reports     int    `json:"reports"`
	Source      string `json:"source"` // mock, heuristic, or provider name
}

// ActionResult is the outcome of one playbook action.
type ActionResult struct {
	Action  string            `json:"action"`
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// PlaybookResult is the per-action outcome list for one playbook execution.
// Immutable after creation.
type PlaybookResult struct {
	ThreatType string         `json:"threat_type"`
	Status     string         `json:"status"`
	Results    []ActionResult `json:"results"`
	ExecutedAt time.Time      `json:"executed_at"`
}

// TechniqueRef points an alert at the ATT&CK technique its threat category
// corresponds to.
type TechniqueRef struct {
	TechniqueID   string `json:"technique_id"`
	TechniqueName string `json:"technique_name"`
	Tactic        string `json:"tactic"`
	URL           string `json:"url,omitempty"`
}

// Alert is a durable record of a detected threat.
type Alert struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Severity     Severity          `json:"severity"`
	Source       string            `json:"source"`
	SourceIP     string            `json:"source_ip,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	IsResolved   bool              `json:"is_resolved"`
	Status       AlertStatus       `json:"status"`
	AssignedTo   string            `json:"assigned_to,omitempty"`
	Category     string            `json:"category,omitempty"`
	Mitre        *TechniqueRef     `json:"mitre,omitempty"`
	ThreatIntel  *ReputationRecord `json:"threat_intel,omitempty"`
	Playbook     *PlaybookResult   `json:"playbook,omitempty"`
	AnomalyScore string            `json:"anomaly_score,omitempty"`
}

// Incident is an operator-managed case that may aggregate alerts.
type Incident struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Severity         Severity        `json:"severity"`
	Status           IncidentStatus  `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at,omitempty"`
	AssignedTo       string          `json:"assigned_to,omitempty"`
	PlaybookExecuted bool            `json:"playbook_executed"`
	PlaybookResults  *PlaybookResult `json:"playbook_results,omitempty"`
}
