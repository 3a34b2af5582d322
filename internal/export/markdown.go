// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

type frontMatter struct {
	Title     string `yaml:"title"`
	APIURL    string `yaml:"api_url"`
	AppName   string `yaml:"app_name"`
	UserID    string `yaml:"user_id"`
	SessionID string `yaml:"session_id"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
}

// MarkdownExporter renders a transcript as Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export renders t. Message content is copied as is; replies are already
// Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil || len(t.Messages) == 0 {
		return nil, ErrEmpty
	}

	front, err := yaml.Marshal(frontMatter{
		Title:     t.Title,
		APIURL:    t.APIURL,
		AppName:   t.AppName,
		UserID:    t.UserID,
		SessionID: t.SessionID,
		Messages:  len(t.Messages),
		Exported:  t.ExportedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(front)
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))

	for i, msg := range t.Messages {
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", roleLabel(msg.Role), msg.Timestamp.Format("15:04:05"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", roleLabel(msg.Role))
		}
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
		if i < len(t.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func roleLabel(r model.Role) string {
	if r == "" {
		return "Unknown"
	}
	return r.DisplayName()
}

// escapeMarkdown escapes characters that would change a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}
