// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to files.
//
// Two formats are supported: Markdown with a YAML front matter block, and
// JSON carrying every message field.
//
// # Usage
//
//	t := export.NewTranscript(snap.Title, snap.Config, snap.Messages)
//	exp, err := export.ForFormat("markdown", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ToFile(t, exp, "", nil)
package export
