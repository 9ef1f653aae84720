package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/securewatch/securewatch/internal/models"
)

// PostgresConfig holds database connection settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultPostgresConfig returns sensible defaults. An empty DSN means the
// server falls back to the in-memory store.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the database, verifies connectivity, and ensures
// the schema exists.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS log_entries (
			id TEXT PRIMARY KEY,
			source_ip TEXT,
			destination_ip TEXT,
			ts TIMESTAMPTZ NOT NULL,
			log_type TEXT,
			raw_log TEXT,
			message TEXT,
			severity TEXT NOT NULL,
			is_anomaly BOOLEAN NOT NULL DEFAULT FALSE,
			anomaly_score TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS log_entries_ts_idx ON log_entries (ts DESC)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			severity TEXT NOT NULL,
			source TEXT,
			source_ip TEXT,
			ts TIMESTAMPTZ NOT NULL,
			is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			assigned_to TEXT,
			category TEXT,
			mitre JSONB,
			threat_intel JSONB,
			playbook JSONB,
			anomaly_score TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS alerts_ts_idx ON alerts (ts DESC)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ,
			assigned_to TEXT,
			playbook_executed BOOLEAN NOT NULL DEFAULT FALSE,
			playbook_results JSONB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *models.EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO log_entries
			(id, source_ip, destination_ip, ts, log_type, raw_log, message, severity, is_anomaly, anomaly_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID, ev.SourceIP, ev.DestinationIP, ev.Timestamp, ev.LogType,
		ev.RawLog, ev.Message, string(ev.Severity), ev.IsAnomaly, ev.AnomalyScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*models.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_ip, destination_ip, ts, log_type, raw_log, message, severity, is_anomaly, anomaly_score
		FROM log_entries WHERE id = $1`, id)
	return scanEvent(row)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter EventFilter) ([]*models.EventRecord, error) {
	query := `
		SELECT id, source_ip, destination_ip, ts, log_type, raw_log, message, severity, is_anomaly, anomaly_score
		FROM log_entries`
	var conds []string
	var args []any
	if filter.Severity != nil {
		args = append(args, string(*filter.Severity))
		conds = append(conds, fmt.Sprintf("severity = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	query += limitOffset(&args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []*models.EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.EventRecord, error) {
	var ev models.EventRecord
	var severity string
	err := row.Scan(&ev.ID, &ev.SourceIP, &ev.DestinationIP, &ev.Timestamp, &ev.LogType,
		&ev.RawLog, &ev.Message, &severity, &ev.IsAnomaly, &ev.AnomalyScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	ev.Severity = models.Severity(severity)
	return &ev, nil
}

func (s *PostgresStore) InsertAlert(ctx context.Context, alert *models.Alert) error {
	intel, err := marshalNullable(alert.ThreatIntel)
	if err != nil {
		return fmt.Errorf("failed to encode threat intel: %w", err)
	}
	pb, err := marshalNullable(alert.Playbook)
	if err != nil {
		return fmt.Errorf("failed to encode playbook result: %w", err)
	}
	mitre, err := marshalNullable(alert.Mitre)
	if err != nil {
		return fmt.Errorf("failed to encode technique mapping: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts
			(id, title, description, severity, source, source_ip, ts, is_resolved,
			 status, assigned_to, category, mitre, threat_intel, playbook, anomaly_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		alert.ID, alert.Title, alert.Description, string(alert.Severity), alert.Source,
		alert.SourceIP, alert.Timestamp, alert.IsResolved, string(alert.Status),
		alert.AssignedTo, alert.Category, mitre, intel, pb, alert.AnomalyScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, alertSelect+` WHERE id = $1`, id)
	return scanAlert(row)
}

const alertSelect = `
	SELECT id, title, description, severity, source, source_ip, ts, is_resolved,
	       status, assigned_to, category, mitre, threat_intel, playbook, anomaly_score
	FROM alerts`

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error) {
	query := alertSelect
	var conds []string
	var args []any
	if filter.Severity != nil {
		args = append(args, string(*filter.Severity))
		conds = append(conds, fmt.Sprintf("severity = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Resolved != nil {
		args = append(args, *filter.Resolved)
		conds = append(conds, fmt.Sprintf("is_resolved = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	query += limitOffset(&args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var alert models.Alert
	var severity, status string
	var mitre, intel, pb sql.NullString
	err := row.Scan(&alert.ID, &alert.Title, &alert.Description, &severity, &alert.Source,
		&alert.SourceIP, &alert.Timestamp, &alert.IsResolved, &status,
		&alert.AssignedTo, &alert.Category, &mitre, &intel, &pb, &alert.AnomalyScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	alert.Severity = models.Severity(severity)
	alert.Status = models.AlertStatus(status)
	if mitre.Valid && mitre.String != "" {
		var ref models.TechniqueRef
		if err := json.Unmarshal([]byte(mitre.String), &ref); err == nil {
			alert.Mitre = &ref
		}
	}
	if intel.Valid && intel.String != "" {
		var rec models.ReputationRecord
		if err := json.Unmarshal([]byte(intel.String), &rec); err == nil {
			alert.ThreatIntel = &rec
		}
	}
	if pb.Valid && pb.String != "" {
		var res models.PlaybookResult
		if err := json.Unmarshal([]byte(pb.String), &res); err == nil {
			alert.Playbook = &res
		}
	}
	return &alert, nil
}

func (s *PostgresStore) UpdateAlert(ctx context.Context, id string, update AlertUpdate) (*models.Alert, error) {
	var sets []string
	var args []any

	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.AssignedTo != nil {
		args = append(args, *update.AssignedTo)
		sets = append(sets, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if update.IsResolved != nil {
		args = append(args, *update.IsResolved)
		sets = append(sets, fmt.Sprintf("is_resolved = $%d", len(args)))
		if *update.IsResolved {
			args = append(args, string(models.AlertStatusResolved))
			sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
		}
	}
	if update.ThreatIntel != nil {
		encoded, err := json.Marshal(update.ThreatIntel)
		if err != nil {
			return nil, fmt.Errorf("failed to encode threat intel: %w", err)
		}
		args = append(args, string(encoded))
		sets = append(sets, fmt.Sprintf("threat_intel = $%d", len(args)))
	}
	if update.Playbook != nil {
		encoded, err := json.Marshal(update.Playbook)
		if err != nil {
			return nil, fmt.Errorf("failed to encode playbook result: %w", err)
		}
		args = append(args, string(encoded))
		sets = append(sets, fmt.Sprintf("playbook = $%d", len(args)))
	}

	if len(sets) == 0 {
		return s.GetAlert(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE alerts SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return s.GetAlert(ctx, id)
}

func (s *PostgresStore) AlertStats(ctx context.Context) (AlertStats, error) {
	var stats AlertStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE NOT is_resolved),
		       COUNT(*) FILTER (WHERE severity = 'critical'),
		       COUNT(*) FILTER (WHERE severity = 'high'),
		       COUNT(*) FILTER (WHERE severity = 'medium'),
		       COUNT(*) FILTER (WHERE severity = 'low')
		FROM alerts`).
		Scan(&stats.Total, &stats.Unresolved, &stats.Critical, &stats.High, &stats.Medium, &stats.Low)
	if err != nil {
		return AlertStats{}, fmt.Errorf("failed to query alert stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) InsertIncident(ctx context.Context, inc *models.Incident) error {
	results, err := marshalNullable(inc.PlaybookResults)
	if err != nil {
		return fmt.Errorf("failed to encode playbook results: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents
			(id, title, description, severity, status, created_at, updated_at,
			 assigned_to, playbook_executed, playbook_results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inc.ID, inc.Title, inc.Description, string(inc.Severity), string(inc.Status),
		inc.CreatedAt, nullTime(inc.UpdatedAt), inc.AssignedTo, inc.PlaybookExecuted, results,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*models.Incident, error) {
	query := `
		SELECT id, title, description, severity, status, created_at, updated_at,
		       assigned_to, playbook_executed, playbook_results
		FROM incidents`
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += " WHERE status = $1"
	}
	query += " ORDER BY created_at DESC"
	query += limitOffset(&args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var out []*models.Incident
	for rows.Next() {
		var inc models.Incident
		var severity, status string
		var updated sql.NullTime
		var results sql.NullString
		if err := rows.Scan(&inc.ID, &inc.Title, &inc.Description, &severity, &status,
			&inc.CreatedAt, &updated, &inc.AssignedTo, &inc.PlaybookExecuted, &results); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		inc.Severity = models.Severity(severity)
		inc.Status = models.IncidentStatus(status)
		if updated.Valid {
			inc.UpdatedAt = updated.Time
		}
		if results.Valid && results.String != "" {
			var pb models.PlaybookResult
			if err := json.Unmarshal([]byte(results.String), &pb); err == nil {
				inc.PlaybookResults = &pb
			}
		}
		out = append(out, &inc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) (*models.Incident, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update incident: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	incidents, err := s.ListIncidents(ctx, IncidentFilter{})
	if err != nil {
		return nil, err
	}
	for _, inc := range incidents {
		if inc.ID == id {
			return inc, nil
		}
	}
	return nil, ErrNotFound
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil || isNilPointer(v) {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

func isNilPointer(v any) bool {
	switch p := v.(type) {
	case *models.ReputationRecord:
		return p == nil
	case *models.PlaybookResult:
		return p == nil
	case *models.TechniqueRef:
		return p == nil
	default:
		return false
	}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func limitOffset(args *[]any, limit, offset int) string {
	var out string
	if limit > 0 {
		*args = append(*args, limit)
		out += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if offset > 0 {
		*args = append(*args, offset)
		out += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return out
}

var _ Store = (*PostgresStore)(nil)
