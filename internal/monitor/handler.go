package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okgrp/groupwatch/internal/repository"
)

// Handler exposes the pipeline to the HTTP control surface.
type Handler struct {
	pipeline *Pipeline
}

// NewHandler creates a handler for the given pipeline.
func NewHandler(pipeline *Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Status handles GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.Status()

	state := "idle"
	if status.Running {
		state = "running"
	}

	stats, err := h.pipeline.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":           state,
		"name":             status.Name,
		"groups_monitored": status.GroupCount,
		"stats":            stats,
	})
}

// SetWebhook handles POST /api/v1/webhook
func (h *Handler) SetWebhook(w http.ResponseWriter, r *http.Request) {
	var req ConfigureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.pipeline.Configure(req.Target())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "webhook updated",
		"task_id":    task.ID.String(),
		"started_at": task.StartedAt.Format(time.RFC3339),
	})
}

// ingestRequest mirrors what the event producer supplies per inbound event.
type ingestRequest struct {
	GroupID    int64   `json:"group_id"`
	GroupName  string  `json:"group_name"`
	SenderID   *int64  `json:"sender_id"`
	SenderName *string `json:"sender_name"`
	MessageID  int64   `json:"message_id"`
	Content    string  `json:"content"`
	HasMedia   bool    `json:"has_media"`
}

// IngestMessage handles POST /api/v1/messages
func (h *Handler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if req.GroupID == 0 || req.GroupName == "" {
		respondError(w, http.StatusBadRequest, "group_id and group_name are required")
		return
	}

	h.pipeline.Ingest(IncomingMessage{
		GroupID:         req.GroupID,
		GroupName:       req.GroupName,
		SenderID:        req.SenderID,
		SenderName:      req.SenderName,
		SourceMessageID: req.MessageID,
		Content:         req.Content,
		HasMedia:        req.HasMedia,
	})

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ListMessages handles GET /api/v1/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	opts := repository.QueryOptions{}

	if v := r.URL.Query().Get("group_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "group_id must be an integer")
			return
		}
		opts.GroupID = &id
	}

	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = &since
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	messages, err := h.pipeline.Messages(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// GetSummary handles GET /api/v1/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	hours := defaultWindowHours
	if v := r.URL.Query().Get("window_hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "window_hours must be an integer")
			return
		}
		hours = parsed
	}

	report, err := h.pipeline.Summary(r.Context(), hours)
	if err != nil {
		if errors.Is(err, ErrInvalidWindow) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
