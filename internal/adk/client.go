// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/logging"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/sse"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/telemetry"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds one request attempt. For streaming requests it
	// bounds connecting and receiving response headers only.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3

	// DefaultRetryBaseDelay is the first backoff delay; it doubles per retry.
	DefaultRetryBaseDelay = time.Second

	// DefaultRetryMaxDelay caps the backoff delay.
	DefaultRetryMaxDelay = 10 * time.Second

	// DefaultRateLimitFallback is the wait after a 429 without Retry-After.
	DefaultRateLimitFallback = 5 * time.Second

	// MaxResponseSize is the largest non-streaming body the client reads.
	// SECURITY: Prevents memory exhaustion from a misbehaving server.
	MaxResponseSize = 10 * 1024 * 1024

	// DefaultUserAgent is sent on every request.
	DefaultUserAgent = "adkchat/1.0"

	// RequestIDHeader carries the per-request correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Operation names used in errors, logs and metrics.
const (
	OpCreateSession = "create_session"
	OpGetSession    = "get_session"
	OpRun           = "run"
	OpRunSSE        = "run_sse"
	OpListApps      = "list_apps"
	OpHealth        = "health"
)

// PERFORMANCE: One pooled transport shared by every client. No
// http.Client.Timeout is set; deadlines come from contexts so that streams
// can outlive the connect timeout.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// TextPart is one part of an outgoing message.
type TextPart struct {
	Text string `json:"text"`
}

// Content is the new_message body of a run request.
type Content struct {
	Role  string     `json:"role"`
	Parts []TextPart `json:"parts"`
}

// RunRequest is the body of POST /run and POST /run_sse.
type RunRequest struct {
	AppName    string  `json:"app_name"`
	UserID     string  `json:"user_id"`
	SessionID  string  `json:"session_id"`
	NewMessage Content `json:"new_message"`
	Streaming  bool    `json:"streaming,omitempty"`
}

// Text returns the concatenated text of the request's message parts.
func (r RunRequest) Text() string {
	var sb strings.Builder
	for _, p := range r.NewMessage.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// CreateSessionRequest is the body of the create-session call.
type CreateSessionRequest struct {
	State map[string]any `json:"state"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to an ADK API server. It is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	httpClient   *http.Client
	timeout      time.Duration
	retry        retryPolicy
	logger       *slog.Logger
	metrics      *telemetry.Metrics
	newRequestID func() string
	userAgent    string

	inflight *inflightSet
}

// NewClient creates a client for the server at baseURL, which must be an
// absolute http or https URL.
func NewClient(baseURL string) (*Client, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:      base,
		httpClient:   &http.Client{Transport: sharedTransport},
		timeout:      DefaultTimeout,
		retry:        defaultRetryPolicy(),
		logger:       slog.Default(),
		newRequestID: uuid.NewString,
		userAgent:    DefaultUserAgent,
		inflight:     newInflightSet(),
	}, nil
}

// WithTimeout sets the per-attempt timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithMaxRetries sets how many times a failed request is retried.
func (c *Client) WithMaxRetries(maxRetries int) *Client {
	if maxRetries >= 0 {
		c.retry.maxRetries = maxRetries
	}
	return c
}

// WithBackoff sets the base and maximum exponential backoff delays.
func (c *Client) WithBackoff(base, maxDelay time.Duration) *Client {
	if base > 0 {
		c.retry.baseDelay = base
	}
	if maxDelay > 0 {
		c.retry.maxDelay = maxDelay
	}
	return c
}

// WithRateLimitFallback sets the wait used after a 429 without Retry-After.
func (c *Client) WithRateLimitFallback(d time.Duration) *Client {
	if d >= 0 {
		c.retry.rateLimitFallback = d
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client. Its Timeout should be
// zero; the client applies its own deadlines.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithMetrics enables Prometheus instrumentation.
func (c *Client) WithMetrics(m *telemetry.Metrics) *Client {
	c.metrics = m
	return c
}

// WithRequestIDFunc overrides request id generation.
func (c *Client) WithRequestIDFunc(fn func() string) *Client {
	if fn != nil {
		c.newRequestID = fn
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// BaseURL returns the client's default server address.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL changes the default server address.
func (c *Client) SetBaseURL(raw string) error {
	base, err := normalizeBaseURL(raw)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.baseURL = base
	c.mu.Unlock()
	return nil
}

// Timeout returns the per-attempt timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// CancelAll aborts every in-flight request and returns how many were
// aborted. Aborted calls return an error wrapping ErrCancelled.
func (c *Client) CancelAll() int {
	n := c.inflight.cancelAll()
	c.metrics.ObserveCancelled(n)
	if n > 0 {
		c.logger.Debug("adk: cancelled in-flight requests", "count", n)
	}
	return n
}

// InFlight returns the number of requests currently outstanding.
func (c *Client) InFlight() int {
	return c.inflight.len()
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession creates the session named by cfg with the given initial
// state. A nil state is sent as an empty object.
func (c *Client) CreateSession(ctx context.Context, cfg model.ChatConfig, state map[string]any) (*model.Session, error) {
	endpoint, err := c.sessionURL(cfg)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = map[string]any{}
	}
	var sess model.Session
	if err := c.doJSON(ctx, OpCreateSession, http.MethodPost, endpoint, CreateSessionRequest{State: state}, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession fetches the session named by cfg.
func (c *Client) GetSession(ctx context.Context, cfg model.ChatConfig) (*model.Session, error) {
	endpoint, err := c.sessionURL(cfg)
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := c.doJSON(ctx, OpGetSession, http.MethodGet, endpoint, nil, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *Client) sessionURL(cfg model.ChatConfig) (string, error) {
	if err := requireIdentity(cfg); err != nil {
		return "", err
	}
	base, err := c.resolveBase(cfg)
	if err != nil {
		return "", err
	}
	// SECURITY: Every identifier is escaped as a single path segment.
	return fmt.Sprintf("%s/apps/%s/users/%s/sessions/%s", base,
		url.PathEscape(cfg.AppName),
		url.PathEscape(cfg.UserID),
		url.PathEscape(cfg.SessionID),
	), nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// SendMessage runs the agent once and returns every event it produced.
// The text is sanitized first; blank text yields a ValidationError.
func (c *Client) SendMessage(ctx context.Context, cfg model.ChatConfig, text string) ([]Event, error) {
	body, endpoint, err := c.runRequest(cfg, text, false)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.doJSON(ctx, OpRun, http.MethodPost, endpoint, body, &raw); err != nil {
		return nil, err
	}
	events, err := DecodeEvents(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: decode events: %w", OpRun, err)
	}
	return events, nil
}

// SendMessageStreaming runs the agent with a server-sent-event response.
//
// onEvent is called once per well-formed event, in arrival order, on the
// calling goroutine. Malformed payloads never reach onEvent; they are passed
// to onError (when non-nil) as *ParseError and the stream continues.
//
// Retries apply only until the response headers arrive. Once events have
// started flowing a failure is returned as is.
func (c *Client) SendMessageStreaming(ctx context.Context, cfg model.ChatConfig, text string, onEvent func(Event), onError func(error)) error {
	body, endpoint, err := c.runRequest(cfg, text, true)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", OpRunSSE, err)
	}

	ctx, release := c.inflight.track(ctx)
	defer release()
	c.metrics.InflightAdd(1)
	defer c.metrics.InflightAdd(-1)

	requestID := c.newRequestID()
	ctx = logging.WithRequestID(ctx, requestID)
	logger := logging.FromContext(ctx, c.logger).With("op", OpRunSSE)

	var (
		resp     *http.Response
		stopBody context.CancelFunc
	)
	err = c.execute(ctx, OpRunSSE, logger, func(ctx context.Context, attempt int) error {
		// STREAMING: The deadline covers connect and headers. The body is
		// read under a context that stays alive after the timer is stopped.
		sctx, cancel := context.WithCancel(ctx)
		var timedOut atomic.Bool
		timer := time.AfterFunc(c.timeout, func() {
			timedOut.Store(true)
			cancel()
		})

		req, err := c.newRequest(sctx, http.MethodPost, endpoint, payload, requestID)
		if err != nil {
			timer.Stop()
			cancel()
			return err
		}
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")

		logger.Debug("adk: request", "method", req.Method, "url", endpoint, "attempt", attempt+1)
		start := time.Now()
		r, err := c.httpClient.Do(req)
		fired := !timer.Stop()
		if err != nil {
			cancel()
			c.metrics.ObserveRequest(OpRunSSE, 0, time.Since(start))
			return c.classify(ctx, OpRunSSE, err, timedOut.Load())
		}
		if fired {
			r.Body.Close()
			cancel()
			c.metrics.ObserveRequest(OpRunSSE, 0, time.Since(start))
			return &TimeoutError{Op: OpRunSSE, Timeout: c.timeout}
		}
		c.metrics.ObserveRequest(OpRunSSE, r.StatusCode, time.Since(start))

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			data, _ := readBody(r.Body)
			r.Body.Close()
			cancel()
			return newAPIError(OpRunSSE, r, data, requestID)
		}
		resp, stopBody = r, cancel
		return nil
	})
	if err != nil {
		return err
	}
	defer stopBody()
	defer resp.Body.Close()

	handler := sse.JSONPayloads(logger,
		func(raw json.RawMessage) {
			c.metrics.IncStreamEvents()
			onEvent(DecodeEvent(raw))
		},
		func(err error) {
			c.metrics.IncParseErrors()
			if onError != nil {
				onError(err)
			}
		},
	)
	dec := sse.NewDecoder(handler, sse.WithLogger(logger))
	if err := sse.DecodeReader(ctx, resp.Body, dec); err != nil {
		if ctx.Err() != nil {
			return ctxError(ctx, OpRunSSE)
		}
		return &NetworkError{Op: OpRunSSE, Err: err}
	}

	lines, payloads := dec.Stats()
	logger.Debug("adk: stream finished", "lines", lines, "payloads", payloads, "done", dec.Done())
	return nil
}

func (c *Client) runRequest(cfg model.ChatConfig, text string, streaming bool) (RunRequest, string, error) {
	msg, err := PrepareMessage(text)
	if err != nil {
		return RunRequest{}, "", err
	}
	if err := requireIdentity(cfg); err != nil {
		return RunRequest{}, "", err
	}
	base, err := c.resolveBase(cfg)
	if err != nil {
		return RunRequest{}, "", err
	}

	path := "/run"
	if streaming {
		path = "/run_sse"
	}
	return RunRequest{
		AppName:   cfg.AppName,
		UserID:    cfg.UserID,
		SessionID: cfg.SessionID,
		NewMessage: Content{
			Role:  string(model.RoleUser),
			Parts: []TextPart{{Text: msg}},
		},
		Streaming: streaming,
	}, base + path, nil
}

// =============================================================================
// DISCOVERY
// =============================================================================

// ListApps returns the agent applications the server at cfg.APIBaseURL
// knows about, or the client's own server when that is empty.
func (c *Client) ListApps(ctx context.Context, cfg model.ChatConfig) ([]string, error) {
	base, err := c.resolveBase(cfg)
	if err != nil {
		return nil, err
	}
	var apps []string
	if err := c.doJSON(ctx, OpListApps, http.MethodGet, base+"/list-apps", nil, &apps); err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []string{}
	}
	return apps, nil
}

// HealthCheck reports whether the server answered /health with a 2xx.
// The server is chosen as in ListApps.
func (c *Client) HealthCheck(ctx context.Context, cfg model.ChatConfig) bool {
	base, err := c.resolveBase(cfg)
	if err == nil {
		err = c.doJSON(ctx, OpHealth, http.MethodGet, base+"/health", nil, nil)
	}
	if err != nil {
		c.logger.Debug("adk: health check failed", "error", err)
	}
	return err == nil
}

// =============================================================================
// REQUEST EXECUTION
// =============================================================================

// doJSON sends one logical request, retrying as needed, and decodes a 2xx
// body into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	ctx, release := c.inflight.track(ctx)
	defer release()
	c.metrics.InflightAdd(1)
	defer c.metrics.InflightAdd(-1)

	requestID := c.newRequestID()
	ctx = logging.WithRequestID(ctx, requestID)
	logger := logging.FromContext(ctx, c.logger).With("op", op)

	return c.execute(ctx, op, logger, func(ctx context.Context, attempt int) error {
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := c.newRequest(actx, method, endpoint, payload, requestID)
		if err != nil {
			return err
		}

		logger.Debug("adk: request", "method", method, "url", endpoint, "attempt", attempt+1)
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.ObserveRequest(op, 0, time.Since(start))
			return c.classify(ctx, op, err, errors.Is(actx.Err(), context.DeadlineExceeded))
		}
		defer resp.Body.Close()

		data, err := readBody(resp.Body)
		c.metrics.ObserveRequest(op, resp.StatusCode, time.Since(start))
		logger.Debug("adk: response", "status", resp.StatusCode, "duration", time.Since(start), "bytes", len(data))
		if err != nil {
			if errors.Is(err, errResponseTooLarge) {
				return fmt.Errorf("%s: %w", op, err)
			}
			return c.classify(ctx, op, err, errors.Is(actx.Err(), context.DeadlineExceeded))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(op, resp, data, requestID)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		return nil
	})
}

// execute runs attempt until it succeeds or the retry policy gives up.
// Attempts must return already-classified errors.
func (c *Client) execute(ctx context.Context, op string, logger *slog.Logger, attempt func(ctx context.Context, n int) error) error {
	for n := 0; ; n++ {
		err := attempt(ctx, n)
		if err == nil {
			return nil
		}

		delay, reason, ok := c.retry.next(err, n)
		if !ok {
			if n > 0 {
				logger.Warn("adk: request failed after retries", "attempts", n+1, "error", err)
			}
			return err
		}

		c.metrics.ObserveRetry(op, reason)
		logger.Info("adk: retrying request", "attempt", n+1, "reason", reason, "delay", delay, "error", err)
		if err := c.retry.sleep(ctx, delay); err != nil {
			return ctxError(ctx, op)
		}
	}
}

// classify maps a transport failure onto the error kinds callers see.
func (c *Client) classify(ctx context.Context, op string, err error, timedOut bool) error {
	if ctx.Err() != nil {
		return ctxError(ctx, op)
	}
	if timedOut {
		return &TimeoutError{Op: op, Timeout: c.timeout}
	}
	return &NetworkError{Op: op, Err: err}
}

// ctxError reports why ctx ended: a caller deadline is a TimeoutError,
// anything else is a cancellation.
func ctxError(ctx context.Context, op string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	return fmt.Errorf("%s: %w", op, ErrCancelled)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, payload []byte, requestID string) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &ValidationError{Field: "url", Message: err.Error(), Err: err}
	}
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

var errResponseTooLarge = fmt.Errorf("response exceeds %d bytes", MaxResponseSize)

func readBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxResponseSize {
		return nil, errResponseTooLarge
	}
	return data, nil
}

// resolveBase prefers the per-call configured address over the client's.
func (c *Client) resolveBase(cfg model.ChatConfig) (string, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return c.BaseURL(), nil
	}
	return normalizeBaseURL(cfg.APIBaseURL)
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := model.ParseBaseURL(raw)
	if err != nil {
		return "", &ValidationError{Field: "api_base_url", Message: err.Error(), Err: err}
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func requireIdentity(cfg model.ChatConfig) error {
	switch {
	case strings.TrimSpace(cfg.AppName) == "":
		return &ValidationError{Field: "app_name", Message: "app name is required"}
	case strings.TrimSpace(cfg.UserID) == "":
		return &ValidationError{Field: "user_id", Message: "user id is required"}
	case strings.TrimSpace(cfg.SessionID) == "":
		return &ValidationError{Field: "session_id", Message: "session id is required"}
	}
	return nil
}
