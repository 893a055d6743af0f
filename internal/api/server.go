// Package api exposes the engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/internal/core"
	"github.com/valter-silva-au/ax-engine/pkg/models"
)

// Server routes HTTP requests to the engine.
type Server struct {
	router   chi.Router
	engine   core.Engine
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// NewServer builds the router. A nil gatherer serves the default registry
// on /metrics.
func NewServer(engine core.Engine, logger *zap.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:   chi.NewRouter(),
		engine:   engine,
		logger:   logger,
		gatherer: gatherer,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// maxBodyBytes caps /v1 request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
			)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequestSize(maxBodyBytes))
		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/suggestions/{id}/feedback", s.handleFeedback)
		r.Post("/scratchpad", s.handleScratchpadWrite)
		r.Get("/scratchpad", s.handleScratchpadRead)
		r.Post("/scratchpad/{id}/consume", s.handleScratchpadConsume)
		r.Post("/events", s.handleEvent)
		r.Get("/session", s.handleSessionStatus)
		r.Post("/session/start", s.handleSessionStart)
		r.Post("/session/end", s.handleSessionEnd)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidEvent),
		errors.Is(err, models.ErrInvalidScratchpadEntry),
		errors.Is(err, models.ErrInvalidQuietHours):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrSuggestionNotFound),
		errors.Is(err, models.ErrScratchpadEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoOpenSession):
		return http.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// bodyStatus is 413 for an oversized body and 400 otherwise.
func bodyStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// SnapshotResponse wraps a snapshot. When scoring fails but entities load,
// Enriched is false and only the raw workspace is returned.
type SnapshotResponse struct {
	Enriched  bool                 `json:"enriched"`
	Snapshot  *models.AXStateGraph `json:"snapshot,omitempty"`
	Workspace *models.Workspace    `json:"workspace,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	graph, err := s.engine.Snapshot()
	if err == nil {
		writeJSON(w, http.StatusOK, SnapshotResponse{Enriched: true, Snapshot: graph})
		return
	}

	ws, wsErr := s.engine.Workspace()
	if wsErr != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.logger.Warn("serving unenriched workspace", zap.Error(err))
	writeJSON(w, http.StatusOK, SnapshotResponse{Enriched: false, Workspace: ws, Error: err.Error()})
}

type feedbackRequest struct {
	Action      models.FeedbackAction `json:"action"`
	TriggerType string                `json:"trigger_type,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, bodyStatus(err), err)
		return
	}
	event, err := s.engine.RecordFeedback(chi.URLParam(r, "id"), req.Action, req.TriggerType)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

type scratchpadWriteRequest struct {
	Scope     string                `json:"scope"`
	ProjectID string                `json:"project_id,omitempty"`
	Kind      models.ScratchpadKind `json:"kind"`
	Content   string                `json:"content"`
}

func (s *Server) handleScratchpadWrite(w http.ResponseWriter, r *http.Request) {
	var req scratchpadWriteRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, bodyStatus(err), err)
		return
	}
	scope, err := models.ParseScratchpadScope(req.Scope, req.ProjectID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	entry, err := s.engine.WriteScratchpad(scope, req.Kind, req.Content)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleScratchpadRead(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.ScratchpadQuery{Kind: models.ScratchpadKind(q.Get("kind"))}
	if q.Get("scope") != "" || q.Get("project") != "" {
		scope, err := models.ParseScratchpadScope(q.Get("scope"), q.Get("project"))
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		query.Scope = &scope
	}
	if all := q.Get("all"); all != "" {
		include, err := strconv.ParseBool(all)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("parsing all=%q: %w", all, err))
			return
		}
		query.IncludeConsumed = include
	}

	entries, err := s.engine.ReadScratchpad(query)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleScratchpadConsume(w http.ResponseWriter, r *http.Request) {
	entry, err := s.engine.ConsumeScratchpad(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var event models.TrackableEvent
	if err := decodeBody(r, &event); err != nil {
		s.writeError(w, bodyStatus(err), err)
		return
	}
	stored, err := s.engine.RecordEvent(event)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.CurrentSession()
	if err != nil {
		if errors.Is(err, models.ErrNoOpenSession) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.StartSession()
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.EndSession()
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
