// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// maxLoggedPayload caps how much of a bad payload ends up in logs.
const maxLoggedPayload = 200

// ErrNotStructured is reported for payloads that parse as JSON but are not
// an object or array (including null).
var ErrNotStructured = errors.New("payload is not a structured value")

// ParseError reports a payload that could not be turned into an event.
// It never stops the stream.
type ParseError struct {
	Payload string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse SSE event %q: %v", e.Payload, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// JSONPayloads adapts a PayloadHandler to structured JSON events. Payloads
// that fail to parse, or parse to something other than an object or array,
// are logged and reported to onError (when non-nil); onEvent is never
// called for them.
func JSONPayloads(logger *slog.Logger, onEvent func(json.RawMessage), onError func(error)) PayloadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(payload []byte) {
		var raw json.RawMessage
		err := json.Unmarshal(payload, &raw)
		if err == nil && !isStructured(raw) {
			err = ErrNotStructured
		}
		if err != nil {
			perr := &ParseError{Payload: truncate(payload), Err: err}
			logger.Warn("sse: skipping malformed event", "payload", perr.Payload, "error", err)
			if onError != nil {
				onError(perr)
			}
			return
		}
		onEvent(raw)
	}
}

func isStructured(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}

func truncate(b []byte) string {
	if len(b) <= maxLoggedPayload {
		return string(b)
	}
	return string(b[:maxLoggedPayload]) + "..."
}
