package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"yacht-twin/monitor/internal/auth"
	"yacht-twin/monitor/internal/domain"
	"yacht-twin/monitor/internal/metrics"
	"yacht-twin/monitor/internal/surrogate"
	"yacht-twin/monitor/internal/twin"
)

const maxUpdateBody = 1 << 16

// HistoryArchive serves persisted history. *store.TimescaleStore satisfies it.
type HistoryArchive interface {
	RecentHistory(ctx context.Context, sessionID string, limit int) ([]domain.HistoryPoint, error)
}

type Server struct {
	state     *twin.State
	model     *surrogate.Model
	hub       *Hub
	archive   HistoryArchive
	auth      *auth.Authenticator
	sessionID string
	logger    zerolog.Logger
}

type ServerOptions struct {
	Hub       *Hub
	Archive   HistoryArchive
	Auth      *auth.Authenticator
	SessionID string
}

func NewServer(state *twin.State, model *surrogate.Model, opts ServerOptions, logger zerolog.Logger) *Server {
	return &Server{
		state:     state,
		model:     model,
		hub:       opts.Hub,
		archive:   opts.Archive,
		auth:      opts.Auth,
		sessionID: opts.SessionID,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	protect := func(route string, h http.HandlerFunc) http.Handler {
		if s.auth == nil {
			return h
		}
		return requireAPIKey(s.auth, route, h)
	}

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /api/params", s.handleParams)
	mux.Handle("POST /api/update_params", protect("update_params", s.handleUpdateParams))
	mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	mux.Handle("POST /api/toggle_system", protect("toggle_system", s.handleToggle))
	mux.HandleFunc("GET /api/history", s.handleArchivedHistory)
	mux.HandleFunc("GET /charts/telemetry", s.handleTelemetryChart)
	if s.hub != nil {
		mux.HandleFunc("GET /ws/telemetry", s.hub.ServeWS)
	}
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Params())
}

// handleUpdateParams merges a partial parameter set and answers with a
// fresh assessment, whether or not the loop is running.
func (s *Server) handleUpdateParams(w http.ResponseWriter, r *http.Request) {
	var update domain.ParameterUpdate
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err := dec.Decode(&update); err != nil {
		metrics.BadRequests.WithLabelValues("update_params").Inc()
		writeJSONError(w, http.StatusBadRequest, "invalid parameter payload: "+err.Error())
		return
	}

	params := s.state.Apply(update)
	assessment := s.model.Assess(params)
	metrics.ParamUpdates.Inc()

	s.logger.Debug().
		Interface("params", params).
		Float64("rr", assessment.Resistance).
		Str("tier", string(assessment.Tier)).
		Msg("parameters updated")

	writeJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.History())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	active := s.state.Toggle()
	metrics.Toggles.Inc()
	if active {
		metrics.Running.Set(1)
	} else {
		metrics.Running.Set(0)
	}

	s.logger.Info().Bool("active", active).Msg("telemetry toggled")
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) handleArchivedHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}

	limit := s.state.Capacity()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 10000 {
			metrics.BadRequests.WithLabelValues("history").Inc()
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 10000")
			return
		}
		limit = n
	}
	session := r.URL.Query().Get("session")
	if session == "" {
		session = s.sessionID
	}

	points, err := s.archive.RecentHistory(r.Context(), session, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		writeJSONError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn().Err(err).Msg("http server shutdown error")
		}
	}()

	s.logger.Info().Str("port", port).Msg("http server started")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
