// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
)

// STREAMING: Chunk-driven SSE decoding with malformed payload tolerance

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DataPrefix starts every payload line the decoder cares about.
	DataPrefix = "data: "

	// DoneSentinel is the payload that terminates a stream.
	DoneSentinel = "[DONE]"

	// readChunkSize is the read size used by DecodeReader.
	readChunkSize = 4 * 1024
)

// PayloadHandler receives the payload of each complete data line, in order.
// The slice is only valid for the duration of the call.
type PayloadHandler func(payload []byte)

// =============================================================================
// DECODER
// =============================================================================

// Decoder reassembles newline-delimited "data: " lines from arbitrarily
// split chunks. The last segment of every chunk is held back until its
// newline arrives, so the sequence of payloads does not depend on where the
// input was split.
type Decoder struct {
	buf       []byte
	done      bool
	onPayload PayloadHandler
	logger    *slog.Logger

	lines    int
	payloads int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDecoder creates a decoder that hands every payload to onPayload.
func NewDecoder(onPayload PayloadHandler, opts ...Option) *Decoder {
	d := &Decoder{
		onPayload: onPayload,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends chunk to the pending buffer and processes every complete
// line. It returns true once the [DONE] sentinel has been seen; after that
// all further input is ignored, including the rest of the current chunk.
func (d *Decoder) Feed(chunk []byte) bool {
	if d.done {
		return true
	}
	d.buf = append(d.buf, chunk...)

	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]

		if d.processLine(line) {
			d.done = true
			d.buf = nil
			return true
		}
	}

	// Reclaim the consumed prefix once the buffer drains.
	if len(d.buf) == 0 {
		d.buf = d.buf[:0:0]
	}
	return false
}

// Close marks the end of input. A held-back segment without a trailing
// newline is discarded.
func (d *Decoder) Close() bool {
	if len(d.buf) > 0 && !d.done {
		d.logger.Debug("sse: discarding unterminated line", "bytes", len(d.buf))
	}
	d.buf = nil
	return d.done
}

// Done reports whether the terminal sentinel has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

// Stats returns the number of lines and payloads processed so far.
func (d *Decoder) Stats() (lines, payloads int) {
	return d.lines, d.payloads
}

// processLine handles one complete line and reports whether it was the
// terminal sentinel.
func (d *Decoder) processLine(line []byte) bool {
	d.lines++
	line = bytes.TrimSuffix(line, []byte("\r"))

	// Other fields (event:, id:, retry:) and comments are ignored.
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return false
	}
	payload := line[len(DataPrefix):]
	if string(payload) == DoneSentinel {
		return true
	}

	d.payloads++
	if d.onPayload != nil {
		d.onPayload(payload)
	}
	return false
}

// =============================================================================
// READER ADAPTER
// =============================================================================

// DecodeReader feeds everything read from r into d until EOF, the [DONE]
// sentinel, a read error, or cancellation of ctx.
func DecodeReader(ctx context.Context, r io.Reader, d *Decoder) error {
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if d.Feed(buf[:n]) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.Close()
				return nil
			}
			// A cancelled request surfaces as a read error on the body.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}
