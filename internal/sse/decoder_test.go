// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collect feeds chunks into a fresh decoder and returns the payloads seen.
func collect(chunks []string) ([]string, bool) {
	var got []string
	dec := NewDecoder(func(p []byte) {
		got = append(got, string(p))
	}, WithLogger(discardLogger()))

	done := false
	for _, c := range chunks {
		if dec.Feed([]byte(c)) {
			done = true
			break
		}
	}
	if !done {
		done = dec.Close()
	}
	return got, done
}

// =============================================================================
// DECODER TESTS
// =============================================================================

func TestDecoder_BasicLines(t *testing.T) {
	got, done := collect([]string{
		"data: {\"a\":1}\n",
		"data: {\"a\":2}\n",
		"data: [DONE]\n",
	})
	want := []string{`{"a":1}`, `{"a":2}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payloads = %v, want %v", got, want)
	}
	if !done {
		t.Error("expected done after [DONE]")
	}
}

func TestDecoder_HoldsBackPartialLine(t *testing.T) {
	var got []string
	dec := NewDecoder(func(p []byte) { got = append(got, string(p)) })

	dec.Feed([]byte("data: {\"te"))
	if len(got) != 0 {
		t.Fatalf("partial line delivered early: %v", got)
	}
	dec.Feed([]byte("xt\":\"hi\"}\ndata: {\"x\""))
	if len(got) != 1 || got[0] != `{"text":"hi"}` {
		t.Fatalf("after second chunk got %v", got)
	}
	dec.Feed([]byte(":1}\n"))
	if len(got) != 2 || got[1] != `{"x":1}` {
		t.Fatalf("after third chunk got %v", got)
	}
}

func TestDecoder_DoneStopsWithinSameChunk(t *testing.T) {
	got, done := collect([]string{
		"data: {\"n\":1}\ndata: [DONE]\ndata: {\"n\":2}\ndata: {\"n\":3}\n",
	})
	if !done {
		t.Fatal("expected done")
	}
	if len(got) != 1 || got[0] != `{"n":1}` {
		t.Errorf("payloads after [DONE] leaked: %v", got)
	}
}

func TestDecoder_IgnoresInputAfterDone(t *testing.T) {
	var got []string
	dec := NewDecoder(func(p []byte) { got = append(got, string(p)) })
	if !dec.Feed([]byte("data: [DONE]\n")) {
		t.Fatal("expected done")
	}
	if !dec.Feed([]byte("data: {\"late\":true}\n")) {
		t.Error("Feed after done should keep reporting done")
	}
	if len(got) != 0 {
		t.Errorf("late payload delivered: %v", got)
	}
}

func TestDecoder_IgnoresNonDataLines(t *testing.T) {
	got, _ := collect([]string{
		": keep-alive\n",
		"event: message\n",
		"id: 7\n",
		"\n",
		"data:{\"no_space\":true}\n",
		"data: {\"ok\":true}\n",
	})
	want := []string{`{"ok":true}`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("payloads = %v, want %v", got, want)
	}
}

func TestDecoder_CRLF(t *testing.T) {
	got, done := collect([]string{"data: {\"a\":1}\r\ndata: [DONE]\r\n"})
	if !reflect.DeepEqual(got, []string{`{"a":1}`}) {
		t.Errorf("payloads = %v", got)
	}
	if !done {
		t.Error("[DONE] with CRLF should terminate")
	}
}

func TestDecoder_CloseDiscardsUnterminatedLine(t *testing.T) {
	got, done := collect([]string{"data: {\"a\":1}\ndata: {\"b\":2}"})
	if !reflect.DeepEqual(got, []string{`{"a":1}`}) {
		t.Errorf("payloads = %v", got)
	}
	if done {
		t.Error("stream without [DONE] should not report done")
	}
}

// TestDecoder_ChunkBoundaryIndependence re-splits one stream at every
// possible pair of split points and checks the payload sequence never changes.
func TestDecoder_ChunkBoundaryIndependence(t *testing.T) {
	stream := "data: {\"content\":{\"parts\":[{\"text\":\"Hel\"}]}}\n" +
		": comment\n" +
		"data: not json\n" +
		"data: {\"content\":\"flat ünïcode\"}\r\n" +
		"data: {\"data\":{\"content\":\"wrapped\"}}\n" +
		"data: [DONE]\n" +
		"data: {\"after\":true}\n"

	want, wantDone := collect([]string{stream})
	if len(want) != 4 || !wantDone {
		t.Fatalf("baseline payloads = %v, done = %v", want, wantDone)
	}

	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			chunks := []string{stream[:i], stream[i:j], stream[j:]}
			got, done := collect(chunks)
			if !reflect.DeepEqual(got, want) || done != wantDone {
				t.Fatalf("split at %d,%d: got %v (done=%v), want %v", i, j, got, done, want)
			}
		}
	}
}

func TestDecoder_Stats(t *testing.T) {
	dec := NewDecoder(nil)
	dec.Feed([]byte("event: x\ndata: {}\ndata: {}\n"))
	lines, payloads := dec.Stats()
	if lines != 3 || payloads != 2 {
		t.Errorf("Stats() = (%d, %d), want (3, 2)", lines, payloads)
	}
}

// =============================================================================
// READER TESTS
// =============================================================================

func TestDecodeReader_OneByteReads(t *testing.T) {
	stream := "data: {\"a\":1}\ndata: {\"b\":2}\ndata: [DONE]\n"
	var got []string
	dec := NewDecoder(func(p []byte) { got = append(got, string(p)) })

	err := DecodeReader(context.Background(), iotest.OneByteReader(strings.NewReader(stream)), dec)
	if err != nil {
		t.Fatalf("DecodeReader() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{`{"a":1}`, `{"b":2}`}) {
		t.Errorf("payloads = %v", got)
	}
	if !dec.Done() {
		t.Error("decoder should be done")
	}
}

func TestDecodeReader_EOFWithoutDone(t *testing.T) {
	dec := NewDecoder(nil)
	err := DecodeReader(context.Background(), strings.NewReader("data: {}\n"), dec)
	if err != nil {
		t.Fatalf("DecodeReader() error = %v", err)
	}
	if dec.Done() {
		t.Error("decoder should not be done without sentinel")
	}
}

func TestDecodeReader_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	dec := NewDecoder(nil)
	err := DecodeReader(context.Background(), iotest.ErrReader(boom), dec)
	if !errors.Is(err, boom) {
		t.Errorf("DecodeReader() error = %v, want %v", err, boom)
	}
}

func TestDecodeReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dec := NewDecoder(nil)
	err := DecodeReader(ctx, strings.NewReader("data: {}\n"), dec)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("DecodeReader() error = %v, want context.Canceled", err)
	}
}

// =============================================================================
// JSON ADAPTER TESTS
// =============================================================================

func TestJSONPayloads_SkipsMalformed(t *testing.T) {
	var events []string
	var errs []error
	handler := JSONPayloads(discardLogger(),
		func(raw json.RawMessage) { events = append(events, string(raw)) },
		func(err error) { errs = append(errs, err) },
	)
	dec := NewDecoder(handler)
	dec.Feed([]byte("data: {\"a\":1}\ndata: {oops\ndata: null\ndata: 42\ndata: [1,2]\ndata: {\"b\":2}\n"))

	want := []string{`{"a":1}`, `[1,2]`, `{"b":2}`}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	var perr *ParseError
	if !errors.As(errs[0], &perr) {
		t.Fatalf("error %T is not *ParseError", errs[0])
	}
	if perr.Payload != "{oops" {
		t.Errorf("Payload = %q", perr.Payload)
	}
	if !errors.Is(errs[1], ErrNotStructured) {
		t.Errorf("null payload error = %v, want ErrNotStructured", errs[1])
	}
}

func TestJSONPayloads_NilErrorHandler(t *testing.T) {
	count := 0
	handler := JSONPayloads(discardLogger(), func(json.RawMessage) { count++ }, nil)
	handler([]byte("not json"))
	handler([]byte(`{"ok":true}`))
	if count != 1 {
		t.Errorf("onEvent called %d times, want 1", count)
	}
}

func TestParseError_TruncatesPayload(t *testing.T) {
	var perr *ParseError
	handler := JSONPayloads(discardLogger(), func(json.RawMessage) {}, func(err error) {
		errors.As(err, &perr)
	})
	handler([]byte(strings.Repeat("x", 500)))
	if perr == nil {
		t.Fatal("expected ParseError")
	}
	if len(perr.Payload) != maxLoggedPayload+3 {
		t.Errorf("len(Payload) = %d", len(perr.Payload))
	}
}
