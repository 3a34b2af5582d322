// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/util"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("conversation has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a finished conversation together with the session it ran
// in. Messages still streaming are left out.
type Transcript struct {
	Title      string          `json:"title"`
	APIURL     string          `json:"api_url"`
	AppName    string          `json:"app_name"`
	UserID     string          `json:"user_id"`
	SessionID  string          `json:"session_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []model.Message `json:"messages"`
}

// NewTranscript copies the finished messages of a conversation.
func NewTranscript(title string, cfg model.ChatConfig, msgs []model.Message) *Transcript {
	t := &Transcript{
		Title:      title,
		APIURL:     cfg.APIBaseURL,
		AppName:    cfg.AppName,
		UserID:     cfg.UserID,
		SessionID:  cfg.SessionID,
		ExportedAt: time.Now(),
	}
	for _, m := range msgs {
		if !m.IsStreaming {
			t.Messages = append(t.Messages, m)
		}
	}
	return t
}

// =============================================================================
// EXPORTERS
// =============================================================================

// Exporter renders a transcript in one format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)
	// FileExtension includes the dot.
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where ToFile writes. Default: the working directory.
	OutputDir         string
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{OutputDir: ".", IncludeTimestamps: true}
}

// Formats lists the names accepted by ForFormat.
func Formats() []string {
	return []string{"markdown", "json"}
}

// ForFormat returns the exporter for name: "markdown" (or "md") and "json".
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q (supported: %s)", name, strings.Join(Formats(), ", "))
}

// ToFile writes t with exporter. An empty path names the file after the
// title and time inside opts.OutputDir. Returns the path written.
func ToFile(t *Transcript, exporter Exporter, path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		name := fmt.Sprintf("conversation_%s_%s%s",
			sanitizeFilename(t.Title),
			t.ExportedAt.Format("20060102_150405"),
			exporter.FileExtension(),
		)
		path = filepath.Join(opts.OutputDir, name)
	}
	// SECURITY: transcripts may hold private conversation content.
	if err := util.AtomicWriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename keeps at most 50 runes and replaces characters invalid
// in file names on any platform.
func sanitizeFilename(s string) string {
	s = util.TruncateRunesNoEllipsis(strings.TrimSpace(s), 50)
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}
