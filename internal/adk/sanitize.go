// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package adk

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/util"
)

// MaxMessageLength is the maximum number of characters sent in one message.
// Longer input is truncated, not rejected.
const MaxMessageLength = 10000

// SECURITY: C0 control characters other than tab, LF and CR, plus DEL.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// SanitizeInput prepares user text for sending: control characters are
// removed, the text is NFC-normalized and trimmed, then truncated to
// MaxMessageLength runes.
func SanitizeInput(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	return util.TruncateRunesNoEllipsis(s, MaxMessageLength)
}

// PrepareMessage sanitizes text and rejects it when nothing is left.
func PrepareMessage(text string) (string, error) {
	clean := SanitizeInput(text)
	if clean == "" {
		return "", &ValidationError{
			Field:   "message",
			Message: "message must not be empty",
			Err:     ErrEmptyMessage,
		}
	}
	return clean, nil
}

// SanitizeURL returns raw unchanged when it is an absolute http(s) URL and
// "" otherwise.
func SanitizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}
