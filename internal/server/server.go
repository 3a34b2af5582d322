// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local ADK-compatible HTTP backend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/logging"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr matches the address of a local ADK api_server.
	DefaultAddr = "127.0.0.1:8000"

	// DefaultChunkDelay paces streamed chunks.
	DefaultChunkDelay = 40 * time.Millisecond

	sessionRoute = "/apps/{app}/users/{user}/sessions/{session}"

	// maxRequestBody bounds decoded request bodies.
	maxRequestBody = 1 << 20

	// Version is the server version.
	Version = "1.0.0"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// ServerStats tracks what the backend has served.
type ServerStats struct {
	Runs            int64
	StreamRuns      int64
	SessionsCreated int64
	EventsEmitted   int64
	InjectedFaults  int64
	StartTime       time.Time
	mu              sync.RWMutex
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{StartTime: time.Now()}
}

// RecordRun records one /run or /run_sse call and the events it produced.
func (s *ServerStats) RecordRun(streaming bool, events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if streaming {
		s.StreamRuns++
	} else {
		s.Runs++
	}
	s.EventsEmitted += int64(events)
}

// RecordSession records a created session.
func (s *ServerStats) RecordSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SessionsCreated++
}

// RecordFault records an injected failure.
func (s *ServerStats) RecordFault() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InjectedFaults++
}

// GetStats returns a copy of the current stats.
func (s *ServerStats) GetStats() ServerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ServerStats{
		Runs:            s.Runs,
		StreamRuns:      s.StreamRuns,
		SessionsCreated: s.SessionsCreated,
		EventsEmitted:   s.EventsEmitted,
		InjectedFaults:  s.InjectedFaults,
		StartTime:       s.StartTime,
	}
}

// Uptime returns the server uptime.
func (s *ServerStats) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ============================================================================
// FAULT INJECTION
// ============================================================================

// Faults makes the run endpoints fail on purpose so retry and rate-limit
// handling can be exercised against a live server. Counters are consumed
// by successive run calls, rate limits first.
type Faults struct {
	// RateLimitRuns answers this many run calls with 429.
	RateLimitRuns int
	// RetryAfter is sent with injected 429s; empty omits the header.
	RetryAfter string
	// FailRuns answers this many run calls with FailStatus.
	FailRuns int
	// FailStatus defaults to 503.
	FailStatus int
	// Latency delays every run call before it is answered.
	Latency time.Duration
}

type faultState struct {
	mu sync.Mutex
	f  Faults
}

// next consumes one fault, returning the status to fail with or 0.
func (fs *faultState) next() (status int, retryAfter string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	switch {
	case fs.f.RateLimitRuns > 0:
		fs.f.RateLimitRuns--
		return http.StatusTooManyRequests, fs.f.RetryAfter
	case fs.f.FailRuns > 0:
		fs.f.FailRuns--
		if fs.f.FailStatus == 0 {
			return http.StatusServiceUnavailable, ""
		}
		return fs.f.FailStatus, ""
	}
	return 0, ""
}

func (fs *faultState) latency() time.Duration {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.f.Latency
}

// ============================================================================
// RESPONDER
// ============================================================================

// Responder produces the reply to a run request as ordered text chunks.
// Streaming runs send one event per chunk; standard runs send the
// concatenation as a single event.
type Responder func(ctx context.Context, req adk.RunRequest) []string

// EchoResponder answers with the user's text, split into word chunks.
func EchoResponder(_ context.Context, req adk.RunRequest) []string {
	reply := fmt.Sprintf("You said: %s", req.Text())
	return strings.SplitAfter(reply, " ")
}

// ============================================================================
// SERVER
// ============================================================================

// Server is an in-memory ADK backend: sessions, run, run_sse, list-apps
// and health, plus /stats and optionally /metrics.
type Server struct {
	addr   string
	server *http.Server

	apps       []string
	respond    Responder
	chunkDelay time.Duration
	sessions   *sessionStore
	stats      *ServerStats
	faults     *faultState
	cors       *CORSConfig
	limiter    *RateLimiter
	metrics    *telemetry.Metrics
	logger     *slog.Logger

	mu sync.RWMutex
}

// NewServer creates a new Server listening on addr once started. An empty
// addr uses DefaultAddr. Routes are built by Handler, so With* calls may
// follow NewServer.
func NewServer(addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		addr:       addr,
		apps:       []string{model.DefaultAppName},
		respond:    EchoResponder,
		chunkDelay: DefaultChunkDelay,
		sessions:   newSessionStore(),
		stats:      NewServerStats(),
		faults:     &faultState{},
		cors:       DefaultCORSConfig(),
		logger:     logging.Discard(),
	}
}

// WithApps sets the app names reported by /list-apps and accepted by the
// session routes.
func (s *Server) WithApps(apps ...string) *Server {
	s.apps = append([]string(nil), apps...)
	return s
}

// WithResponder replaces the echo responder.
func (s *Server) WithResponder(r Responder) *Server {
	s.respond = r
	return s
}

// WithChunkDelay sets the pause between streamed chunks.
func (s *Server) WithChunkDelay(d time.Duration) *Server {
	s.chunkDelay = d
	return s
}

// WithFaults installs failure injection for run calls.
func (s *Server) WithFaults(f Faults) *Server {
	s.faults.mu.Lock()
	s.faults.f = f
	s.faults.mu.Unlock()
	return s
}

// WithCORS sets the CORS configuration. Nil disables CORS headers.
func (s *Server) WithCORS(c *CORSConfig) *Server {
	s.cors = c
	return s
}

// WithRateLimit enables per-client rate limiting.
func (s *Server) WithRateLimit(rl *RateLimiter) *Server {
	s.limiter = rl
	return s
}

// WithMetrics counts served requests and exposes GET /metrics.
func (s *Server) WithMetrics(m *telemetry.Metrics) *Server {
	s.metrics = m
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	if l != nil {
		s.logger = l
	}
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Stats returns the live stats.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

// ============================================================================
// ROUTES
// ============================================================================

// Handler builds the router with its middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger, s.metrics))
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(SecurityHeadersMiddleware)
	if s.cors != nil {
		r.Use(CORSMiddleware(s.cors))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(api chi.Router) {
		if s.limiter != nil {
			api.Use(RateLimitMiddleware(s.limiter, s.logger))
		}
		api.Get("/list-apps", s.handleListApps)
		api.Get(sessionRoute, s.handleGetSession)
		api.Post(sessionRoute, s.handleCreateSession)
		api.Post("/run", s.handleRun)
		api.Post("/run_sse", s.handleRunSSE)
	})
	return r
}

// ============================================================================
// SESSIONS
// ============================================================================

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*model.Session)}
}

func sessionKey(app, user, session string) string {
	return app + "\x00" + user + "\x00" + session
}

func (st *sessionStore) get(app, user, session string) (model.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionKey(app, user, session)]
	if !ok {
		return model.Session{}, false
	}
	return snapshotSession(sess), true
}

func (st *sessionStore) create(app, user, session string, state map[string]any) (model.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := sessionKey(app, user, session)
	if _, exists := st.sessions[key]; exists {
		return model.Session{}, false
	}
	if state == nil {
		state = map[string]any{}
	}
	sess := &model.Session{
		ID:             session,
		AppName:        app,
		UserID:         user,
		State:          state,
		Events:         []json.RawMessage{},
		LastUpdateTime: nowSeconds(),
	}
	st.sessions[key] = sess
	return snapshotSession(sess), true
}

func (st *sessionStore) appendEvents(app, user, session string, events ...json.RawMessage) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[sessionKey(app, user, session)]
	if !ok {
		return false
	}
	sess.Events = append(sess.Events, events...)
	sess.LastUpdateTime = nowSeconds()
	return true
}

func snapshotSession(sess *model.Session) model.Session {
	out := *sess
	out.Events = append([]json.RawMessage(nil), sess.Events...)
	return out
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

func (s *Server) knownApp(app string) bool {
	if len(s.apps) == 0 {
		return true
	}
	for _, a := range s.apps {
		if a == app {
			return true
		}
	}
	return false
}

// handleGetSession handles GET /apps/{app}/users/{user}/sessions/{session}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	app, user, id := chi.URLParam(r, "app"), chi.URLParam(r, "user"), chi.URLParam(r, "session")
	sess, ok := s.sessions.get(app, user, id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleCreateSession handles POST /apps/{app}/users/{user}/sessions/{session}.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	app, user, id := chi.URLParam(r, "app"), chi.URLParam(r, "user"), chi.URLParam(r, "session")
	if !s.knownApp(app) {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("App not found: %s", app))
		return
	}

	var body adk.CreateSessionRequest
	if err := decodeBody(r, &body, true); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, ok := s.sessions.create(app, user, id, body.State)
	if !ok {
		writeDetail(w, http.StatusConflict, fmt.Sprintf("Session already exists: %s", id))
		return
	}
	s.stats.RecordSession()
	s.logger.Debug("session created", "app", app, "user", user, "session", id)
	writeJSON(w, http.StatusOK, sess)
}

// ============================================================================
// RUN ENDPOINTS
// ============================================================================

// wireEvent is the subset of an ADK event the backend emits.
type wireEvent struct {
	ID           string      `json:"id"`
	InvocationID string      `json:"invocationId"`
	Author       string      `json:"author"`
	Partial      bool        `json:"partial,omitempty"`
	Timestamp    float64     `json:"timestamp"`
	Content      adk.Content `json:"content"`
}

func newEvent(invocationID, author, text string, partial bool) wireEvent {
	return wireEvent{
		ID:           uuid.NewString(),
		InvocationID: invocationID,
		Author:       author,
		Partial:      partial,
		Timestamp:    nowSeconds(),
		Content: adk.Content{
			Role:  "model",
			Parts: []adk.TextPart{{Text: text}},
		},
	}
}

// prepareRun decodes and checks a run request, applying latency and
// injected faults. It writes the error response itself and reports false
// when the handler should stop.
func (s *Server) prepareRun(w http.ResponseWriter, r *http.Request) (adk.RunRequest, bool) {
	var req adk.RunRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.AppName == "" || req.UserID == "" || req.SessionID == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "app_name, user_id and session_id are required")
		return req, false
	}
	if strings.TrimSpace(req.Text()) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "new_message must contain text")
		return req, false
	}

	if d := s.faults.latency(); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return req, false
		}
	}
	if status, retryAfter := s.faults.next(); status != 0 {
		s.stats.RecordFault()
		if retryAfter != "" {
			w.Header().Set("Retry-After", retryAfter)
		}
		writeDetail(w, status, fmt.Sprintf("injected failure (%d)", status))
		return req, false
	}

	if _, ok := s.sessions.get(req.AppName, req.UserID, req.SessionID); !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return req, false
	}
	return req, true
}

func (s *Server) recordUserMessage(req adk.RunRequest, invocationID string) {
	raw, _ := json.Marshal(wireEvent{
		ID:           uuid.NewString(),
		InvocationID: invocationID,
		Author:       "user",
		Timestamp:    nowSeconds(),
		Content:      req.NewMessage,
	})
	s.sessions.appendEvents(req.AppName, req.UserID, req.SessionID, raw)
}

// handleRun handles POST /run and answers with a JSON array of events.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.prepareRun(w, r)
	if !ok {
		return
	}
	invocationID := "e-" + uuid.NewString()
	s.recordUserMessage(req, invocationID)

	reply := strings.Join(s.respond(r.Context(), req), "")
	ev := newEvent(invocationID, req.AppName, reply, false)
	raw, _ := json.Marshal(ev)
	s.sessions.appendEvents(req.AppName, req.UserID, req.SessionID, raw)

	s.stats.RecordRun(false, 1)
	writeJSON(w, http.StatusOK, []wireEvent{ev})
}

// handleRunSSE handles POST /run_sse. Each chunk is one "data:" frame
// holding a partial event.
//
// STREAMING: Frames are flushed individually so the client sees them as
// they are produced.
func (s *Server) handleRunSSE(w http.ResponseWriter, r *http.Request) {
	req, ok := s.prepareRun(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	invocationID := "e-" + uuid.NewString()
	s.recordUserMessage(req, invocationID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	var full strings.Builder
	sent := 0
	for i, chunk := range s.respond(ctx, req) {
		if i > 0 && s.chunkDelay > 0 {
			select {
			case <-time.After(s.chunkDelay):
			case <-ctx.Done():
				s.logger.Debug("stream aborted by client", "sent", sent)
				return
			}
		}
		data, err := json.Marshal(newEvent(invocationID, req.AppName, chunk, true))
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
		full.WriteString(chunk)
		sent++
	}

	raw, _ := json.Marshal(newEvent(invocationID, req.AppName, full.String(), false))
	s.sessions.appendEvents(req.AppName, req.UserID, req.SessionID, raw)
	s.stats.RecordRun(true, sent)
}

// ============================================================================
// INFO ENDPOINTS
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string  `json:"status"`
	Version    string  `json:"version"`
	UptimeSecs float64 `json:"uptime_secs"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    Version,
		UptimeSecs: s.stats.Uptime().Seconds(),
	})
}

// handleListApps handles GET /list-apps.
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps := s.apps
	if apps == nil {
		apps = []string{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Runs            int64   `json:"runs"`
	StreamRuns      int64   `json:"stream_runs"`
	SessionsCreated int64   `json:"sessions_created"`
	EventsEmitted   int64   `json:"events_emitted"`
	InjectedFaults  int64   `json:"injected_faults"`
	UptimeSecs      float64 `json:"uptime_secs"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.stats.GetStats()
	writeJSON(w, http.StatusOK, StatsResponse{
		Runs:            st.Runs,
		StreamRuns:      st.StreamRuns,
		SessionsCreated: st.SessionsCreated,
		EventsEmitted:   st.EventsEmitted,
		InjectedFaults:  st.InjectedFaults,
		UptimeSecs:      s.stats.Uptime().Seconds(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("server starting", "addr", s.addr, "version", Version, "apps", s.apps)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body in the {"detail": "..."} form ADK
// servers use.
func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}

// decodeBody decodes a JSON request body into v. allowEmpty accepts a
// missing body.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}
