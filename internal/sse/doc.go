// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the server-sent-event subset used by the ADK
// streaming endpoint.
//
// The stream is a sequence of newline-delimited lines. Only lines that start
// with "data: " carry payloads; the payload "[DONE]" terminates the stream
// immediately. Everything else is ignored.
//
// # Key Types
//
//   - Decoder: Incremental line reassembly over arbitrarily split chunks
//   - PayloadHandler: Callback receiving each data payload in order
//   - ParseError: A payload that was not a structured JSON value
//
// # Usage
//
//	dec := sse.NewDecoder(sse.JSONPayloads(logger, onEvent, onError))
//	if err := sse.DecodeReader(ctx, resp.Body, dec); err != nil {
//	    return err
//	}
package sse
