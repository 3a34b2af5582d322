// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Shape identifies which of the known event layouts carried the text.
type Shape int

const (
	// ShapeUnknown means no recognized text-bearing field was present.
	ShapeUnknown Shape = iota
	// ShapeParts is {"content": {"parts": [{"text": ...}, ...]}}.
	ShapeParts
	// ShapeDataContent is {"data": {"content": "..."}}.
	ShapeDataContent
	// ShapeFlatContent is {"content": "..."}.
	ShapeFlatContent
)

// String returns the shape name for logs.
func (s Shape) String() string {
	switch s {
	case ShapeParts:
		return "parts"
	case ShapeDataContent:
		return "data.content"
	case ShapeFlatContent:
		return "content"
	default:
		return "unknown"
	}
}

// Part is one entry of content.parts. HasText is false when "text" was
// missing or not a string.
type Part struct {
	Text    string
	HasText bool
}

// Event is one decoded agent event. Only the fields used for text extraction
// are lifted out; Raw keeps the full payload.
type Event struct {
	ID      string
	Author  string
	Partial bool

	Shape   Shape
	Parts   []Part
	Content string

	Raw json.RawMessage
}

// Text returns the displayable text of the event.
//
// STREAMING: Parts are concatenated without separators, in order.
func (e Event) Text() string {
	switch e.Shape {
	case ShapeParts:
		var sb strings.Builder
		for _, p := range e.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String()
	case ShapeDataContent, ShapeFlatContent:
		return e.Content
	default:
		return ""
	}
}

// ExtractText concatenates the text of every event in order.
func ExtractText(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		sb.WriteString(ev.Text())
	}
	return sb.String()
}

// =============================================================================
// DECODING
// =============================================================================

// envelope defers decoding of every field whose type varies between servers.
type envelope struct {
	ID      json.RawMessage `json:"id"`
	Author  json.RawMessage `json:"author"`
	Partial json.RawMessage `json:"partial"`
	Content json.RawMessage `json:"content"`
	Data    json.RawMessage `json:"data"`
}

// shapeMatcher inspects an envelope and fills ev when it recognizes the
// layout. Matchers run in priority order; the first match wins.
type shapeMatcher func(env *envelope, ev *Event) bool

var shapeMatchers = []shapeMatcher{
	matchParts,
	matchDataContent,
	matchFlatContent,
}

// DecodeEvent builds an Event from one raw JSON object. Arrays and
// unrecognized layouts yield an event with ShapeUnknown and empty text.
func DecodeEvent(raw json.RawMessage) Event {
	ev := Event{Raw: raw}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ev
	}
	_ = json.Unmarshal(env.ID, &ev.ID)
	_ = json.Unmarshal(env.Author, &ev.Author)
	_ = json.Unmarshal(env.Partial, &ev.Partial)

	for _, match := range shapeMatchers {
		if match(&env, &ev) {
			return ev
		}
	}
	return ev
}

// DecodeEvents decodes a JSON array of events. Non-object entries are
// skipped.
func DecodeEvents(body []byte) ([]Event, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		if !isObject(raw) {
			continue
		}
		events = append(events, DecodeEvent(raw))
	}
	return events, nil
}

func matchParts(env *envelope, ev *Event) bool {
	if !isObject(env.Content) {
		return false
	}
	var content struct {
		Parts json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil {
		return false
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(content.Parts, &parts); err != nil || parts == nil {
		return false
	}

	ev.Shape = ShapeParts
	ev.Parts = make([]Part, 0, len(parts))
	for _, raw := range parts {
		var p struct {
			Text json.RawMessage `json:"text"`
		}
		var part Part
		if isObject(raw) && json.Unmarshal(raw, &p) == nil {
			part.HasText = json.Unmarshal(p.Text, &part.Text) == nil && isString(p.Text)
			if !part.HasText {
				part.Text = ""
			}
		}
		ev.Parts = append(ev.Parts, part)
	}
	return true
}

func matchDataContent(env *envelope, ev *Event) bool {
	if !isObject(env.Data) {
		return false
	}
	var data struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || !isString(data.Content) {
		return false
	}
	if err := json.Unmarshal(data.Content, &ev.Content); err != nil {
		return false
	}
	ev.Shape = ShapeDataContent
	return true
}

func matchFlatContent(env *envelope, ev *Event) bool {
	if !isString(env.Content) {
		return false
	}
	if err := json.Unmarshal(env.Content, &ev.Content); err != nil {
		return false
	}
	ev.Shape = ShapeFlatContent
	return true
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

func isObject(raw json.RawMessage) bool { return firstByte(raw) == '{' }

func isString(raw json.RawMessage) bool { return firstByte(raw) == '"' }
