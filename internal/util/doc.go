// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared across adkchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes, TruncateRunesNoEllipsis: Rune-safe truncation
//   - TruncateWidth, StringWidth, PadRight: Terminal cell aware layout
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file replacement with fsync
//
// # Usage
//
//	title := util.TruncateWidth(cfg.Title, width-4)
//	err := util.AtomicWriteFile(path, data, 0o600)
package util
