// Package api serves the review HTTP interface: stats, observations, alerts
// and feedback submission.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/storewatch/internal/config"
	"github.com/sells-group/storewatch/internal/feedback"
	"github.com/sells-group/storewatch/internal/model"
	"github.com/sells-group/storewatch/internal/store"
	"github.com/sells-group/storewatch/internal/telemetry"
)

// Server exposes the review API over HTTP.
type Server struct {
	store      store.Store
	aggregator *telemetry.Aggregator
	feedback   *feedback.Service
	cfg        config.Config
	startedAt  time.Time
}

// NewServer wires the review API.
func NewServer(st store.Store, cfg config.Config) *Server {
	return &Server{
		store:      st,
		aggregator: telemetry.NewAggregator(st),
		feedback:   feedback.NewService(st),
		cfg:        cfg,
		startedAt:  time.Now().UTC(),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/trends", s.handleTrends)
	r.Get("/accuracy", s.handleAccuracy)
	r.Get("/observations", s.handleObservations)
	r.Get("/alerts", s.handleAlerts)
	r.Post("/alerts/{alertID}/ack", s.handleAckAlert)
	r.Post("/feedback", s.handleFeedback)

	return r
}

// HTTPServer builds the http.Server for the configured port. The caller owns
// its lifecycle and shutdown.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	open, err := s.store.CountOpenAlerts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"open_alerts":    open,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r, s.cfg.Monitoring.AggregationWindow())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	stats, err := s.aggregator.Aggregate(r.Context(), window, r.URL.Query().Get("operation_kind"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": window,
		"stats":  stats,
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	points, err := s.aggregator.Trends(r.Context(), window, r.URL.Query().Get("operation_kind"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window": window,
		"trends": points,
	})
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.feedback.Accuracy(r.Context(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r, 24*time.Hour)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	filter := store.ObservationFilter{
		Window:   window,
		Category: model.VerdictCategory(r.URL.Query().Get("category")),
		Limit:    limitFromQuery(r),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		writeError(w, http.StatusBadRequest, eris.Errorf("unknown category %q", filter.Category))
		return
	}

	observations, err := s.store.ListObservations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(observations),
		"observations": observations,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	filter := store.AlertFilter{Limit: limitFromQuery(r)}
	if v := r.URL.Query().Get("acknowledged"); v != "" {
		ack, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, eris.Wrap(err, "parse acknowledged"))
			return
		}
		filter.Acknowledged = &ack
	}

	alerts, err := s.store.ListAlerts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleAckAlert(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "alertID")
	if err := s.store.AcknowledgeAlert(r.Context(), alertID); err != nil {
		if store.IsStorage(err) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged", "alert_id": alertID})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var entry model.FeedbackEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "decode feedback"))
		return
	}

	if err := s.feedback.Submit(r.Context(), entry); err != nil {
		if errors.Is(err, model.ErrValidation) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"status":   "recorded",
		"event_id": entry.EventID,
	})
}

// windowFromQuery reads optional from/to RFC3339 bounds; absent bounds fall
// back to the trailing defaultSpan ending now.
func windowFromQuery(r *http.Request, defaultSpan time.Duration) (model.TimeRange, error) {
	q := r.URL.Query()
	now := time.Now().UTC()
	window := model.LastWindow(now, defaultSpan)

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return model.TimeRange{}, eris.Wrap(err, "parse from")
		}
		window.Start = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return model.TimeRange{}, eris.Wrap(err, "parse to")
		}
		window.End = t
	}
	if !window.End.After(window.Start) {
		return model.TimeRange{}, eris.New("window end must be after start")
	}
	return window, nil
}

func limitFromQuery(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		zap.L().Error("api: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
