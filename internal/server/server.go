// Package server provides the HTTP control surface for the paperframe daemon.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/paperframe/internal/app"
	"github.com/ayusman/paperframe/internal/server/api"
	"github.com/ayusman/paperframe/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	Events    *EventsHub
}

// Server represents the HTTP control surface.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/pause", s.handlePause)
	s.mux.HandleFunc("/api/resume", s.handleResume)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/plugins", s.handlePlugins)

	instanceHandler := api.NewInstanceHandler(s.config.App.Store(), s.config.App.Registry())
	s.mux.Handle("/api/instances", instanceHandler)
	s.mux.Handle("/api/instances/", instanceHandler)

	historyHandler := api.NewHistoryHandler(s.config.App.Store())
	s.mux.Handle("/api/history", historyHandler)

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

type statusResponse struct {
	Paused      bool       `json:"paused"`
	UpdateTime  string     `json:"update_time"`
	LastRefresh *string    `json:"last_refresh"`
	NextUpdate  string     `json:"next_update"`
	ActiveID    string     `json:"active_instance_id,omitempty"`
	LastEvent   *app.Event `json:"last_event,omitempty"`
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sched := s.config.App.Scheduler()
	resp := statusResponse{
		Paused:     sched.Paused(),
		UpdateTime: sched.UpdateTime().String(),
		NextUpdate: sched.NextUpdate(time.Now()).Format(time.RFC3339),
		LastEvent:  s.config.App.LastEvent(),
	}
	if last, ok := sched.LastRefresh(); ok {
		v := last.Format(time.RFC3339)
		resp.LastRefresh = &v
	}
	if inst, err := s.config.App.Store().Instances().Active(); err == nil {
		resp.ActiveID = inst.ID
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

// handlePause handles POST requests to /api/pause. Pausing an already
// paused scheduler is a no-op.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.config.App.Scheduler().Pause(); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to pause scheduler")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// handleResume handles POST requests to /api/resume.
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.config.App.Scheduler().Resume(); err != nil {
		api.WriteError(w, http.StatusInternalServerError, "Failed to resume scheduler")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// handleRefresh handles POST requests to /api/refresh and runs a manual
// refresh cycle synchronously. A manual refresh works regardless of pause
// state.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	err := s.config.App.Refresh(context.Background(), "manual")
	if err != nil {
		var pluginErr *app.PluginError
		switch {
		case errors.Is(err, app.ErrNoActiveInstance):
			api.WriteError(w, http.StatusConflict, "No active plugin instance")
		case errors.As(err, &pluginErr):
			api.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			api.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	outcome := store.OutcomeOK
	if ev := s.config.App.LastEvent(); ev != nil {
		outcome = ev.Outcome
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"outcome": outcome})
}

// handlePlugins handles GET requests to /api/plugins and lists the
// registered plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"plugins": s.config.App.Registry().List(),
	}); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
