// Package broadcast is the best-effort live-update sink. Event and alert
// summaries are published to NATS subjects for connected observers; delivery
// is fire-and-forget with no acknowledgment.
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/models"
)

// NATS subjects for live updates.
const (
	SubjectLogs   = "securewatch.logs"
	SubjectAlerts = "securewatch.alerts"
)

// Config holds live-update sink settings.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:  nats.DefaultURL,
		Name: "securewatch",
	}
}

// Broadcaster publishes summaries to connected observers. A nil Broadcaster
// is a valid no-op, so callers never need to branch on configuration.
type Broadcaster struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// Connect establishes the NATS connection.
func Connect(cfg Config, logger *zap.Logger) (*Broadcaster, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Broadcaster{nc: nc, logger: logger}, nil
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewLog broadcasts a freshly ingested event summary.
func (b *Broadcaster) NewLog(ev *models.EventRecord) {
	b.publish(SubjectLogs, envelope{Type: "new_log", Data: map[string]any{
		"id":         ev.ID,
		"source_ip":  ev.SourceIP,
		"log_type":   ev.LogType,
		"message":    ev.Message,
		"severity":   string(ev.Severity),
		"is_anomaly": ev.IsAnomaly,
		"timestamp":  ev.Timestamp.UTC().Format(time.RFC3339),
	}})
}

// NewAlert broadcasts a freshly created alert summary.
func (b *Broadcaster) NewAlert(alert *models.Alert) {
	b.publish(SubjectAlerts, envelope{Type: "new_alert", Data: map[string]any{
		"id":        alert.ID,
		"title":     alert.Title,
		"severity":  string(alert.Severity),
		"category":  alert.Category,
		"source_ip": alert.SourceIP,
		"timestamp": alert.Timestamp.UTC().Format(time.RFC3339),
	}})
}

func (b *Broadcaster) publish(subject string, payload envelope) {
	if b == nil || b.nc == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("Broadcast encode failed", zap.Error(err))
		return
	}
	if err := b.nc.Publish(subject, data); err != nil {
		b.logger.Warn("Broadcast publish failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// Close drains and closes the connection.
func (b *Broadcaster) Close() {
	if b == nil || b.nc == nil {
		return
	}
	b.nc.Close()
}
