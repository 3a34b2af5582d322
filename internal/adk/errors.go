// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/sse"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotFound matches an APIError with status 404.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited matches an APIError with status 429 and refusals from
	// the client-side SendLimiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrCancelled indicates the request was aborted by the caller or by
	// CancelAll.
	ErrCancelled = errors.New("request cancelled")

	// ErrEmptyMessage is wrapped by the ValidationError returned for blank input.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError reports input rejected before any request was made.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response that survived every retry.
//
// Message is the server-provided message when the body could be parsed,
// otherwise a generic status-based message.
type APIError struct {
	Op         string
	Status     int
	Message    string
	RequestID  string
	RetryAfter time.Duration

	hasRetryAfter bool
	fromServer    bool
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is maps well-known status codes onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// ServerMessage reports whether Message came from the response body.
func (e *APIError) ServerMessage() bool {
	return e.fromServer
}

// Temporary reports whether the failure is worth retrying.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// TimeoutError is returned when a request exceeded its deadline. It is
// distinct from NetworkError and is never retried.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s: request timed out after %s", e.Op, e.Timeout)
	}
	return fmt.Sprintf("%s: request timed out", e.Op)
}

// Unwrap lets errors.Is(err, context.DeadlineExceeded) succeed.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// NetworkError is a connection-level failure with no HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError is a malformed stream payload. It is reported to the caller's
// error callback and never aborts the stream.
type ParseError = sse.ParseError

// SessionErrorMessage is the human-readable text shown when a session can
// be neither fetched nor created.
const SessionErrorMessage = "Failed to connect to ADK server"

// SessionError reports that get-session and create-session both failed.
type SessionError struct {
	GetErr    error
	CreateErr error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return SessionErrorMessage
}

// Unwrap returns the create error, which is the final cause.
func (e *SessionError) Unwrap() []error {
	var errs []error
	if e.GetErr != nil {
		errs = append(errs, e.GetErr)
	}
	if e.CreateErr != nil {
		errs = append(errs, e.CreateErr)
	}
	return errs
}

// Detail returns both underlying causes for logs.
func (e *SessionError) Detail() string {
	return fmt.Sprintf("get: %v; create: %v", e.GetErr, e.CreateErr)
}

// =============================================================================
// ERROR RESPONSE PARSING
// =============================================================================

// newAPIError builds an APIError from a failed response. Common server
// error body shapes are recognized: {"detail": ...}, {"error": {"message"}},
// {"error": "..."} and {"message": "..."}.
func newAPIError(op string, resp *http.Response, body []byte, requestID string) *APIError {
	e := &APIError{
		Op:        op,
		Status:    resp.StatusCode,
		RequestID: requestID,
	}
	if msg := serverMessage(body); msg != "" {
		e.Message = msg
		e.fromServer = true
	} else {
		e.Message = fmt.Sprintf("request failed with status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		e.RetryAfter, e.hasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return e
}

func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if s := jsonString(payload.Detail); s != "" {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	if s := jsonString(payload.Error); s != "" {
		return s
	}
	return jsonString(payload.Message)
}

// jsonString decodes raw as a string. FastAPI validation errors put a list
// under "detail"; those are re-encoded compactly.
func jsonString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		return trimmed
	}
	return ""
}
