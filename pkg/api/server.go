// Package api serves the dashboard over HTTP: read endpoints over the run
// log and artifacts, run control, and live websocket and SSE feeds.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/JaiwanShin/ai-marketing-team/pkg/config"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/middleware"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
	"github.com/JaiwanShin/ai-marketing-team/pkg/watch"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	maxRequestBody  = 64 << 10
)

// ProgressReporter exposes the in-process workflow stage
type ProgressReporter interface {
	Stage() runtime.Progress
}

// Dependencies are the components the server reads from and controls
type Dependencies struct {
	Log        *runlog.RunLog
	Artifacts  storage.ArtifactStore
	Agents     runtime.AgentStore
	Supervisor *runtime.RunSupervisor

	// Progress is optional
	Progress ProgressReporter

	// Tokens enables bearer auth on control routes when set
	Tokens middleware.TokenValidator

	// Watcher wakes the live feed early when set
	Watcher *watch.Watcher

	Logger logging.Logger
}

// Server represents the HTTP API server
type Server struct {
	config *config.Config
	router *mux.Router
	server *http.Server
	deps   Dependencies
	logger logging.Logger

	feed      *Feed
	websocket *WebSocketManager
	events    *EventStream

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		config: cfg,
		router: mux.NewRouter(),
		deps:   deps,
		logger: logger,
	}
	s.feed = NewFeed(s.statusView, deps.Log.Tail, cfg.Dashboard.PollInterval(), cfg.Dashboard.LogLimit, logger)
	s.websocket = NewWebSocketManager(s.feed, logger)
	s.events = NewEventStream(s.feed, logger)

	s.setupRoutes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the live feeds and the HTTP server. It blocks until Stop.
func (s *Server) Start() error {
	s.startFeeds(context.Background())

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Websocket and SSE responses stay open, so no read or write timeout.
		IdleTimeout: 60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", logging.F("addr", addr))
	err := srv.ListenAndServe()

	// If the server was shut down gracefully, this error is expected
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the live feeds and the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.stopFeeds()
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) startFeeds(parent context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.feed.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.events.Run(ctx)
	}()

	if w := s.deps.Watcher; w != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-w.Events():
					if !ok {
						return
					}
					s.feed.Wake()
				}
			}
		}()
	}
}

func (s *Server) stopFeeds() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.events.Close()
	s.wg.Wait()
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Read routes
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/logs", s.handleLogs).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/outputs", s.handleListOutputs).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/outputs/{name}", s.handleGetOutput).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/agents", s.handleAgents).Methods(http.MethodGet, http.MethodOptions)

	// Live feeds
	api.HandleFunc("/ws", s.websocket.HandleWebSocket).Methods(http.MethodGet)
	api.Handle("/events", s.events).Methods(http.MethodGet)

	// Control routes
	control := api.PathPrefix("/runs").Subrouter()
	if s.deps.Tokens != nil {
		control.Use(middleware.NewAuthMiddleware(s.deps.Tokens).Authenticate)
	}
	control.HandleFunc("", s.handleStartRun).Methods(http.MethodPost, http.MethodOptions)
	control.HandleFunc("", s.handleClear).Methods(http.MethodDelete, http.MethodOptions)

	s.router.Use(s.logRequests)

	// CORS middleware for all routes
	s.router.Use(middleware.CORS())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("duration", time.Since(start).String()))
	})
}

// statusView merges the persisted snapshot with supervisor and engine state.
func (s *Server) statusView() StatusView {
	view := StatusView{RunStatus: s.deps.Log.CurrentStatus()}
	if sup := s.deps.Supervisor; sup != nil {
		view.Running = sup.Active()
		if h := sup.Current(); h != nil && view.Running {
			view.RunID = h.ID
		}
	}
	if s.deps.Progress != nil {
		view.Stage = string(s.deps.Progress.Stage().Stage)
	}
	return view
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusView())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": s.deps.Log.Tail(limit),
	})
}

func (s *Server) handleListOutputs(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Artifacts.List()
	if err != nil {
		s.logger.Error("Failed to list outputs", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to list outputs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"outputs": names,
	})
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	content, err := s.deps.Artifacts.Read(name)
	switch {
	case errors.Is(err, storage.ErrInvalidArtifactName):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrArtifactNotFound):
		writeError(w, http.StatusNotFound, "output not found: "+name)
		return
	case err != nil:
		s.logger.Error("Failed to read output", logging.F("name", name), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to read output")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    name,
		"content": content,
	})
}

// agentSummary is the dashboard's view of an agent record
type agentSummary struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Role  string `json:"role"`
	Goal  string `json:"goal"`
}

type teamSummary struct {
	Team   string         `json:"team"`
	Agents []agentSummary `json:"agents"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	teams := make([]teamSummary, 0)
	if s.deps.Agents != nil {
		for _, team := range s.deps.Agents.Names() {
			summary := teamSummary{Team: team, Agents: []agentSummary{}}
			for _, agent := range s.deps.Agents.Agents(team) {
				summary.Agents = append(summary.Agents, summarize(agent))
			}
			teams = append(teams, summary)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"teams": teams,
	})
}

func summarize(agent models.AgentRecord) agentSummary {
	return agentSummary{
		Name:  agent.Name,
		Title: agent.Title,
		Role:  agent.Role,
		Goal:  agent.Goal,
	}
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Supervisor == nil {
		writeError(w, http.StatusServiceUnavailable, "run control is not available")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	handle, started := s.deps.Supervisor.StartIfIdle(query)
	if !started {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  "a workflow run is already in progress",
			"run_id": handle.ID,
		})
		return
	}

	fields := []logging.Field{logging.F("run_id", handle.ID)}
	if operator, ok := middleware.GetOperator(r); ok {
		fields = append(fields, logging.F("operator", operator))
	}
	s.logger.Info("Run started from API", fields...)
	s.feed.Wake()

	writeJSON(w, http.StatusAccepted, handle)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Supervisor == nil {
		writeError(w, http.StatusServiceUnavailable, "run control is not available")
		return
	}
	if err := s.deps.Supervisor.ClearAll(); err != nil {
		if errors.Is(err, runtime.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("Failed to clear run data", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "failed to clear run data")
		return
	}
	s.feed.Wake()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
