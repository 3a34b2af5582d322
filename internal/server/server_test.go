// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

func newTestBackend(t *testing.T, s *Server) (*httptest.Server, *adk.Client) {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	c, err := adk.NewClient(ts.URL)
	require.NoError(t, err)
	c.WithBackoff(time.Millisecond, 5*time.Millisecond).
		WithRateLimitFallback(time.Millisecond).
		WithTimeout(5 * time.Second)
	return ts, c
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

func testConfig(baseURL string) model.ChatConfig {
	cfg := model.DefaultChatConfig()
	cfg.APIBaseURL = baseURL
	return cfg
}

// =============================================================================
// SERVER STATS TESTS
// =============================================================================

func TestServerStats_Record(t *testing.T) {
	stats := NewServerStats()
	if stats.StartTime.IsZero() {
		t.Fatal("StartTime should be set")
	}

	stats.RecordRun(false, 1)
	stats.RecordRun(true, 4)
	stats.RecordSession()
	stats.RecordFault()

	got := stats.GetStats()
	if got.Runs != 1 || got.StreamRuns != 1 {
		t.Errorf("runs = %d/%d, want 1/1", got.Runs, got.StreamRuns)
	}
	if got.EventsEmitted != 5 {
		t.Errorf("EventsEmitted = %d, want 5", got.EventsEmitted)
	}
	if got.SessionsCreated != 1 || got.InjectedFaults != 1 {
		t.Errorf("sessions/faults = %d/%d, want 1/1", got.SessionsCreated, got.InjectedFaults)
	}
}

func TestEchoResponder(t *testing.T) {
	req := adk.RunRequest{NewMessage: adk.Content{Parts: []adk.TextPart{{Text: "hi there"}}}}
	chunks := EchoResponder(context.Background(), req)
	if got := strings.Join(chunks, ""); got != "You said: hi there" {
		t.Errorf("joined = %q", got)
	}
	if len(chunks) != 4 {
		t.Errorf("len(chunks) = %d, want 4", len(chunks))
	}
}

// =============================================================================
// END TO END WITH THE CLIENT
// =============================================================================

func TestSessions_GetThenCreate(t *testing.T) {
	ts, c := newTestBackend(t, NewServer(""))
	cfg := testConfig(ts.URL)
	ctx := context.Background()

	_, err := c.GetSession(ctx, cfg)
	require.ErrorIs(t, err, adk.ErrNotFound)

	sess, err := c.CreateSession(ctx, cfg, map[string]any{"lang": "en"})
	require.NoError(t, err)
	assert.Equal(t, "session_123", sess.ID)
	assert.Equal(t, "my_sample_agent", sess.AppName)
	assert.Equal(t, "en", sess.State["lang"])

	got, err := c.GetSession(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = c.CreateSession(ctx, cfg, nil)
	var apiErr *adk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestSessions_UnknownApp(t *testing.T) {
	ts, c := newTestBackend(t, NewServer("").WithApps("weather"))
	cfg := testConfig(ts.URL)

	_, err := c.CreateSession(context.Background(), cfg, nil)
	require.ErrorIs(t, err, adk.ErrNotFound)
	assert.Contains(t, err.Error(), "App not found")
}

func TestRun_Standard(t *testing.T) {
	srv := NewServer("")
	ts, c := newTestBackend(t, srv)
	cfg := testConfig(ts.URL)
	ctx := context.Background()

	_, err := c.CreateSession(ctx, cfg, nil)
	require.NoError(t, err)

	events, err := c.SendMessage(ctx, cfg, "hello")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "You said: hello", adk.ExtractText(events))
	assert.Equal(t, adk.ShapeParts, events[0].Shape)

	sess, err := c.GetSession(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.EventCount(), "user message and reply are recorded")
	assert.Equal(t, int64(1), srv.Stats().GetStats().Runs)
}

func TestRun_MissingSession(t *testing.T) {
	ts, c := newTestBackend(t, NewServer(""))
	_, err := c.SendMessage(context.Background(), testConfig(ts.URL), "hello")
	require.ErrorIs(t, err, adk.ErrNotFound)
	assert.Contains(t, err.Error(), "Session not found")
}

func TestRunSSE_Streams(t *testing.T) {
	srv := NewServer("").WithChunkDelay(0)
	ts, c := newTestBackend(t, srv)
	cfg := testConfig(ts.URL)
	ctx := context.Background()

	_, err := c.CreateSession(ctx, cfg, nil)
	require.NoError(t, err)

	var chunks []string
	err = c.SendMessageStreaming(ctx, cfg, "one two", func(ev adk.Event) {
		assert.True(t, ev.Partial)
		chunks = append(chunks, ev.Text())
	}, func(err error) {
		t.Errorf("unexpected parse error: %v", err)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"You ", "said: ", "one ", "two"}, chunks)
	assert.Equal(t, int64(4), srv.Stats().GetStats().EventsEmitted)
}

func TestRunSSE_CustomResponder(t *testing.T) {
	srv := NewServer("").WithChunkDelay(0).WithResponder(func(_ context.Context, req adk.RunRequest) []string {
		return []string{"Hel", "lo"}
	})
	ts, c := newTestBackend(t, srv)
	cfg := testConfig(ts.URL)
	ctx := context.Background()
	_, err := c.CreateSession(ctx, cfg, nil)
	require.NoError(t, err)

	var acc string
	require.NoError(t, c.SendMessageStreaming(ctx, cfg, "x", func(ev adk.Event) { acc += ev.Text() }, nil))
	assert.Equal(t, "Hello", acc)
}

func TestFaults_RetriedByClient(t *testing.T) {
	srv := NewServer("").WithFaults(Faults{RateLimitRuns: 1, RetryAfter: "0", FailRuns: 2})
	ts, c := newTestBackend(t, srv)
	cfg := testConfig(ts.URL)
	ctx := context.Background()
	_, err := c.CreateSession(ctx, cfg, nil)
	require.NoError(t, err)

	events, err := c.SendMessage(ctx, cfg, "retry me")
	require.NoError(t, err, "one 429 and two 503s fit in three retries")
	assert.Equal(t, "You said: retry me", adk.ExtractText(events))
	assert.Equal(t, int64(3), srv.Stats().GetStats().InjectedFaults)
}

func TestFaults_Exhausted(t *testing.T) {
	srv := NewServer("").WithFaults(Faults{FailRuns: 10, FailStatus: http.StatusBadGateway})
	ts, c := newTestBackend(t, srv)
	cfg := testConfig(ts.URL)
	ctx := context.Background()
	_, err := c.CreateSession(ctx, cfg, nil)
	require.NoError(t, err)

	_, err = c.SendMessage(ctx, cfg, "x")
	var apiErr *adk.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "injected failure (502)", apiErr.Message)
	assert.Equal(t, int64(4), srv.Stats().GetStats().InjectedFaults)
}

func TestListAppsAndHealth(t *testing.T) {
	_, c := newTestBackend(t, NewServer("").WithApps("a", "b"))
	ctx := context.Background()

	apps, err := c.ListApps(ctx, model.ChatConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, apps)
	assert.True(t, c.HealthCheck(ctx, model.ChatConfig{}))

	_, empty := newTestBackend(t, NewServer("").WithApps())
	apps, err = empty.ListApps(ctx, model.ChatConfig{})
	require.NoError(t, err)
	assert.Empty(t, apps)
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestRun_Validation(t *testing.T) {
	h := NewServer("").Handler()
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"missing ids", `{"new_message":{"role":"user","parts":[{"text":"x"}]}}`, http.StatusUnprocessableEntity},
		{"blank text", `{"app_name":"a","user_id":"u","session_id":"s","new_message":{"role":"user","parts":[{"text":"  "}]}}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/run", strings.NewReader(tc.body))
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Errorf("status = %d, want %d", resp.Code, tc.status)
			}
			var body map[string]string
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestRequestIDEcho(t *testing.T) {
	var logs bytes.Buffer
	h := NewServer("").WithLogger(slog.New(slog.NewTextHandler(&logs, nil))).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, "req-42", resp.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), "request_id=req-42")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.NotEmpty(t, resp.Header().Get(RequestIDHeader))
}

func TestHealthResponse(t *testing.T) {
	h := NewServer("").Handler()
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	if body.Status != "ok" {
		t.Errorf("Status = %q, want ok", body.Status)
	}
	if body.Version != Version {
		t.Errorf("Version = %q, want %q", body.Version, Version)
	}
	assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))
}

func TestStatsEndpoint(t *testing.T) {
	srv := NewServer("")
	srv.Stats().RecordRun(true, 3)
	resp := httptest.NewRecorder()
	srv.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var body StatsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.StreamRuns)
	assert.Equal(t, int64(3), body.EventsEmitted)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewServer("").WithMetrics(telemetry.New()).Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/list-apps", nil))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `adkchat_mockserver_requests_total{code="200",route="/list-apps"} 1`)

	resp = httptest.NewRecorder()
	NewServer("").Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code, "metrics are off by default")
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestCORS(t *testing.T) {
	h := NewServer("").Handler()

	req := httptest.NewRequest(http.MethodOptions, "/run", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "http://localhost:5173", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header().Get("Access-Control-Allow-Headers"), RequestIDHeader)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_Wildcards(t *testing.T) {
	c := &CORSConfig{AllowedOrigins: []string{"*.example.com"}}
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"https://example.org", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := c.isOriginAllowed(tc.origin); got != tc.want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
	if !(&CORSConfig{AllowedOrigins: []string{"*"}}).isOriginAllowed("http://x") {
		t.Error("* should allow any origin")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := NewServer("").WithRateLimit(NewRateLimiter(2, time.Minute)).Handler()

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/list-apps", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/list-apps", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	// Health stays outside the limit.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := newBufferLogger(&logs)
	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, logs.String(), "panic recovered")
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)
	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	rw.Flush()
	assert.True(t, rec.Flushed)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestStartShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0")
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	// Shutdown before the listener exists is a no-op; retry until it takes.
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.RLock()
		started := srv.server != nil
		srv.mu.RUnlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Start() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}

func TestDecodeBody_AllowsEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("")))
	var v adk.CreateSessionRequest
	assert.NoError(t, decodeBody(req, &v, true))
	assert.Error(t, decodeBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &v, false))
}
