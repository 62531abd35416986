// Package api exposes the HTTP surface: the sync trigger endpoint invoked
// by the admin UI (and its cron schedule), plus read-only alert and audit
// queries.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"

	"regiq/internal/model"
	"regiq/internal/storage"
	"regiq/internal/sync"
)

// Syncer runs one ingestion pass.
type Syncer interface {
	Run(ctx context.Context, opts sync.Options) (*model.RunSummary, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	syncer Syncer
	store  storage.Storage
	log    *slog.Logger
}

// NewServer creates a Server.
func NewServer(syncer Syncer, store storage.Storage, log *slog.Logger) *Server {
	return &Server{syncer: syncer, store: store, log: log}
}

// Routes builds the router. The endpoints are called from a browser-based
// admin UI on another origin, so CORS is permissive.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.handleSync)
		r.Get("/alerts", s.handleListAlerts)
		r.Get("/sync/logs", s.handleSyncLogs)
	})

	return r
}

type syncRequest struct {
	Days    int      `json:"days"`
	Sources []string `json:"sources"`
	Action  string   `json:"action"`
}

type syncResponse struct {
	Success       bool               `json:"success"`
	Status        model.RunStatus    `json:"status"`
	RunID         string             `json:"runId"`
	TotalFetched  int                `json:"totalFetched"`
	TotalInserted int                `json:"totalInserted"`
	TotalUpdated  int                `json:"totalUpdated"`
	TotalSkipped  int                `json:"totalSkipped"`
	Results       []model.SyncResult `json:"results"`
	Timestamp     time.Time          `json:"timestamp"`
}

// handleSync triggers a run. Partial failure still answers 200 with the
// per-source breakdown; 500 is reserved for runs that could not start.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	summary, err := s.syncer.Run(r.Context(), sync.Options{Days: req.Days, Sources: req.Sources})
	if err != nil {
		s.log.Error("sync run failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "sync failed: datastore unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, syncResponse{
		Success:       summary.Success,
		Status:        summary.Status,
		RunID:         summary.RunID,
		TotalFetched:  summary.TotalFetched,
		TotalInserted: summary.TotalInserted,
		TotalUpdated:  summary.TotalUpdated,
		TotalSkipped:  summary.TotalSkipped,
		Results:       summary.Results,
		Timestamp:     time.Now().UTC(),
	})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := storage.AlertFilter{
		Source:  r.URL.Query().Get("source"),
		Urgency: r.URL.Query().Get("urgency"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = &t
	}

	alerts, err := s.store.ListAlerts(r.Context(), filter)
	if err != nil {
		s.log.Error("list alerts", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"alerts": toAlertViews(alerts)})
}

func (s *Server) handleSyncLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	logs, err := s.store.ListSyncLogs(r.Context(), limit)
	if err != nil {
		s.log.Error("list sync logs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"logs": toLogViews(logs)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "datastore unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
