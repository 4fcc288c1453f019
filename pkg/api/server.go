// Package api provides the HTTP surface of the retrieval engine: skill
// listing, matching, session management, and budget-bounded resolution over
// a REST API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skilldex/pkg/engine"
	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/resolver"
	"github.com/jingkaihe/skilldex/pkg/scorer"
	"github.com/jingkaihe/skilldex/pkg/usagelog"
)

// ServerConfig holds the configuration for the API server.
type ServerConfig struct {
	Host string
	Port int
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	return nil
}

// Server serves the retrieval engine over HTTP.
type Server struct {
	router  *mux.Router
	handler http.Handler
	engine  *engine.Engine
	usage   *usagelog.Store
	config  *ServerConfig
	server  *http.Server
}

// NewServer creates an API server. The usage store is optional; when nil,
// activations are not recorded.
func NewServer(config *ServerConfig, eng *engine.Engine, usage *usagelog.Store) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid server configuration")
	}

	s := &Server{
		router: mux.NewRouter(),
		engine: eng,
		usage:  usage,
		config: config,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/skills", s.handleListSkills).Methods("GET")
	api.HandleFunc("/skills/{id}", s.handleGetSkill).Methods("GET")
	api.HandleFunc("/match", s.handleMatch).Methods("POST")
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleEndSession).Methods("DELETE")
	api.HandleFunc("/resolve", s.handleResolve).Methods("POST")
	api.HandleFunc("/reload", s.handleReload).Methods("POST")

	s.router.Use(s.loggingMiddleware)

	// CORS wraps the router itself: mux runs Use middleware only on matched
	// routes, which would leave preflight OPTIONS requests unanswered.
	s.handler = s.corsMiddleware(s.router)
}

// Handler returns the root HTTP handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the server until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "api server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Wrap(s.server.Shutdown(shutdownCtx), "api server shutdown failed")
	}
}

// API handlers

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type skillSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	References  int    `json:"references"`
	Size        int    `json:"size"`
}

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.engine.List()
	if err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, err)
		return
	}

	summaries := make([]skillSummary, 0, len(skills))
	for _, skill := range skills {
		summaries = append(summaries, skillSummary{
			ID:          skill.ID,
			Description: skill.Description,
			Category:    skill.Category,
			References:  len(skill.References),
			Size:        skill.SizeEstimate,
		})
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]any{"skills": summaries})
}

type referenceSummary struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	skill, err := s.engine.Describe(id)
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, err)
		return
	}

	references := make([]referenceSummary, 0, len(skill.References))
	for _, ref := range skill.References {
		references = append(references, referenceSummary{Path: ref.Path, Size: ref.SizeEstimate})
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"id":          skill.ID,
		"description": skill.Description,
		"category":    skill.Category,
		"overview":    skill.Overview,
		"size":        skill.SizeEstimate,
		"keywords":    skill.Keywords,
		"references":  references,
	})
}

type matchRequest struct {
	Query    string   `json:"query"`
	Hints    []string `json:"hints,omitempty"`
	MinScore float64  `json:"minScore,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	matches, err := s.engine.Match(r.Context(), scorer.Query{Text: req.Query, Hints: req.Hints})
	if err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, err)
		return
	}

	if req.MinScore > 0 {
		filtered := matches[:0]
		for _, m := range matches {
			if m.Score >= req.MinScore || m.Hinted {
				filtered = append(filtered, m)
			}
		}
		matches = filtered
	}
	if req.Limit > 0 && len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}

	s.writeJSONResponse(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.engine.NewSession()
	s.writeJSONResponse(w, http.StatusCreated, map[string]string{"sessionId": sess.ID()})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.engine.EndSession(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

type resolveRequest struct {
	SessionID string   `json:"sessionId,omitempty"`
	Query     string   `json:"query"`
	Hints     []string `json:"hints,omitempty"`
	Budget    int      `json:"budget,omitempty"`
	Refs      []string `json:"refs,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	matches, err := s.engine.Match(ctx, scorer.Query{Text: req.Query, Hints: req.Hints})
	if err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, err)
		return
	}
	if req.Limit > 0 && len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}

	resolved, err := s.engine.Resolve(ctx, req.SessionID, resolver.Request{
		Matches:     matches,
		RefPatterns: req.Refs,
		Budget:      req.Budget,
	})
	if err != nil {
		if errors.Is(err, engine.ErrSessionNotFound) {
			s.writeErrorResponse(w, http.StatusNotFound, err)
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}

	s.recordActivations(ctx, req.SessionID, resolved)

	s.writeJSONResponse(w, http.StatusOK, map[string]any{
		"blocks":         resolved.Blocks,
		"consumed":       resolved.Consumed,
		"remaining":      resolved.Budget - resolved.Consumed,
		"budget":         resolved.Budget,
		"unit":           resolved.Unit,
		"budgetExceeded": resolved.BudgetExceeded,
	})
}

// recordActivations writes disclosed blocks to the usage log. Failures are
// logged and swallowed: the log is observability, not control flow.
func (s *Server) recordActivations(ctx context.Context, sessionID string, resolved *resolver.ResolvedContent) {
	if s.usage == nil {
		return
	}
	for _, block := range resolved.Blocks {
		if block.Kind == resolver.KindCacheHit {
			continue
		}
		if err := s.usage.Record(ctx, sessionID, block.SkillID, block.RefPath, block.Cost, resolved.Unit); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record activation")
		}
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reload(r.Context()); err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// Middleware

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.G(r.Context()).WithFields(map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration":    time.Since(start),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsMiddleware adds permissive CORS headers for local tooling.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Response helpers

func (s *Server) writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.G(context.Background()).WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, status int, err error) {
	s.writeJSONResponse(w, status, map[string]string{"error": err.Error()})
}
