// Package api exposes the HTTP surface: the ingestion endpoint plus read and
// mutation endpoints for logs, alerts, and incidents. Handlers are thin
// adapters over the pipeline and the entity store.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/securewatch/securewatch/internal/models"
	"github.com/securewatch/securewatch/internal/pipeline"
	"github.com/securewatch/securewatch/internal/store"
)

// Handler serves the SecureWatch API.
type Handler struct {
	coordinator *pipeline.Coordinator
	store       store.Store
	logger      *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(coordinator *pipeline.Coordinator, st store.Store, logger *zap.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		store:       st,
		logger:      logger,
	}
}

// Routes mounts all API endpoints on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/logs", func(r chi.Router) {
		r.Post("/ingest", h.handleIngest)
		r.Post("/ingest/bulk", h.handleIngestBulk)
		r.Get("/", h.handleListLogs)
		r.Get("/{id}", h.handleGetLog)
	})
	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", h.handleListAlerts)
		r.Get("/stats/summary", h.handleAlertStats)
		r.Get("/{id}", h.handleGetAlert)
		r.Patch("/{id}", h.handleUpdateAlert)
		r.Patch("/{id}/resolve", h.handleResolveAlert)
	})
	r.Route("/api/incidents", func(r chi.Router) {
		r.Get("/", h.handleListIncidents)
		r.Post("/", h.handleCreateIncident)
		r.Patch("/{id}", h.handleUpdateIncident)
	})
}

type ingestRequest struct {
	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip"`
	LogType       string `json:"log_type"`
	RawLog        string `json:"raw_log"`
	Message       string `json:"message,omitempty"`
}

type ingestResponse struct {
	Event   *models.EventRecord `json:"event"`
	Verdict verdictView         `json:"verdict"`
}

type verdictView struct {
	IsAnomaly    bool    `json:"is_anomaly"`
	AnomalyScore float64 `json:"anomaly_score"`
	Confidence   float64 `json:"confidence"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RawLog == "" {
		writeError(w, http.StatusBadRequest, "raw_log is required")
		return
	}

	result, err := h.coordinator.Submit(r.Context(), pipeline.Submission{
		SourceIP:      req.SourceIP,
		DestinationIP: req.DestinationIP,
		LogType:       req.LogType,
		RawLog:        req.RawLog,
		Message:       req.Message,
	})
	if err != nil {
		h.logger.Error("Ingestion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "event was not stored")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Event: result.Event,
		Verdict: verdictView{
			IsAnomaly:    result.Verdict.IsAnomaly,
			AnomalyScore: result.Verdict.AnomalyScore,
			Confidence:   result.Verdict.Confidence,
		},
	})
}

// maxBulkBody bounds one bulk ingestion request.
const maxBulkBody = 1 << 20

type bulkIngestResponse struct {
	Accepted  int `json:"accepted"`
	Anomalies int `json:"anomalies"`
	Failed    int `json:"failed"`
}

// handleIngestBulk accepts newline-delimited JSON event objects and runs each
// through the ingestion pipeline. Events that fail to store are counted, not
// fatal to the batch.
func (h *Handler) handleIngestBulk(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBulkBody))

	var resp bulkIngestResponse
	for decoder.More() {
		var req ingestRequest
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid event in batch")
			return
		}
		if req.RawLog == "" {
			resp.Failed++
			continue
		}

		result, err := h.coordinator.Submit(r.Context(), pipeline.Submission{
			SourceIP:      req.SourceIP,
			DestinationIP: req.DestinationIP,
			LogType:       req.LogType,
			RawLog:        req.RawLog,
			Message:       req.Message,
		})
		if err != nil {
			h.logger.Error("Bulk ingestion event failed", zap.Error(err))
			resp.Failed++
			continue
		}
		resp.Accepted++
		if result.Verdict.IsAnomaly {
			resp.Anomalies++
		}
	}

	if resp.Accepted == 0 && resp.Failed == 0 {
		writeError(w, http.StatusBadRequest, "no valid events found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "skip", 0),
	}
	// Unrecognized filter values are skipped on read paths, not rejected.
	if raw := r.URL.Query().Get("severity"); raw != "" {
		if sev, err := models.ParseSeverity(raw); err == nil {
			filter.Severity = &sev
		}
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		h.logger.Error("Listing logs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if events == nil {
		events = []*models.EventRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleGetLog(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load log")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := store.AlertFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "skip", 0),
	}
	q := r.URL.Query()
	if raw := q.Get("severity"); raw != "" {
		if sev, err := models.ParseSeverity(raw); err == nil {
			filter.Severity = &sev
		}
	}
	if raw := q.Get("status"); raw != "" {
		if status, err := models.ParseAlertStatus(raw); err == nil {
			filter.Status = &status
		}
	}
	if raw := q.Get("resolved"); raw != "" {
		if resolved, err := strconv.ParseBool(raw); err == nil {
			filter.Resolved = &resolved
		}
	}

	alerts, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		h.logger.Error("Listing alerts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := h.store.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

type alertUpdateRequest struct {
	Status     *string `json:"status,omitempty"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	IsResolved *bool   `json:"is_resolved,omitempty"`
}

func (h *Handler) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	var req alertUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := store.AlertUpdate{
		AssignedTo: req.AssignedTo,
		IsResolved: req.IsResolved,
	}
	// Mutations reject unrecognized status values; no partial update applies.
	if req.Status != nil {
		status, err := models.ParseAlertStatus(*req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		update.Status = &status
	}

	alert, err := h.store.UpdateAlert(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	resolved := true
	id := chi.URLParam(r, "id")
	if _, err := h.store.UpdateAlert(r.Context(), id, store.AlertUpdate{IsResolved: &resolved}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "alert_id": id})
}

func (h *Handler) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.AlertStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	filter := store.IncidentFilter{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "skip", 0),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		if status, err := models.ParseIncidentStatus(raw); err == nil {
			filter.Status = &status
		}
	}

	incidents, err := h.store.ListIncidents(r.Context(), filter)
	if err != nil {
		h.logger.Error("Listing incidents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}
	if incidents == nil {
		incidents = []*models.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

type incidentCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`
	AssignedTo  string `json:"assigned_to,omitempty"`
}

func (h *Handler) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	severity, err := models.ParseSeverity(req.Severity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid severity level")
		return
	}

	inc := &models.Incident{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Severity:    severity,
		Status:      models.IncidentStatusOpen,
		CreatedAt:   time.Now().UTC(),
		AssignedTo:  req.AssignedTo,
	}
	if err := h.store.InsertIncident(r.Context(), inc); err != nil {
		h.logger.Error("Creating incident failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create incident")
		return
	}
	writeJSON(w, http.StatusCreated, inc)
}

type incidentUpdateRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := models.ParseIncidentStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	inc, err := h.store.UpdateIncidentStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "incident not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update incident")
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
