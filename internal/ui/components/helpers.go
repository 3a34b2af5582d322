// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// =============================================================================
// SHARED HELPER FUNCTIONS
// =============================================================================

// wrapText wraps s at width display columns, breaking on spaces where it
// can and inside words where it must. Existing newlines are kept.
func wrapText(s string, width int) string {
	if width < 1 {
		return s
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	if runewidth.StringWidth(line) <= width {
		return []string{line}
	}

	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		lines = append(lines, strings.TrimRight(cur.String(), " "))
		cur.Reset()
		curW = 0
	}

	for _, word := range strings.SplitAfter(line, " ") {
		ww := runewidth.StringWidth(strings.TrimRight(word, " "))
		if curW > 0 && curW+ww > width {
			flush()
		}
		// Words longer than a line are split by runes.
		for ww > width {
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				break
			}
			cur.WriteString(head)
			flush()
			word = strings.TrimPrefix(word, head)
			ww = runewidth.StringWidth(strings.TrimRight(word, " "))
		}
		cur.WriteString(word)
		curW += runewidth.StringWidth(word)
	}
	if cur.Len() > 0 {
		flush()
	}
	return lines
}

// alignRight pads every line of s on the left to width columns.
func alignRight(s string, width int) string {
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, s)
}

// formatCount formats n with thousand separators.
func formatCount(n int) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := itoa(n)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		sb.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
